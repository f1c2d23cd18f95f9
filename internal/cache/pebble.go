package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
)

var threadPrefix = []byte("thread:")

// PebbleStore keeps payloads in a pebble database. Values are an 8-byte
// big-endian update time in unix milliseconds followed by the payload.
type PebbleStore struct {
	db   *pebble.DB
	path string
}

var _ Store = (*PebbleStore)(nil)

// OpenPebble opens or creates the pebble database directory at path.
func OpenPebble(path string) (*PebbleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", filepath.Dir(path), err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("cache: opening pebble database failed: %w", err)
	}
	return &PebbleStore{db: db, path: path}, nil
}

func threadKey(id string) []byte {
	return append(append([]byte{}, threadPrefix...), id...)
}

func encodeValue(updatedAt time.Time, payload []byte) []byte {
	v := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(v, uint64(updatedAt.UnixMilli()))
	copy(v[8:], payload)
	return v
}

func decodeValue(v []byte) (time.Time, []byte, error) {
	if len(v) < 8 {
		return time.Time{}, nil, fmt.Errorf("cache: corrupt value of %d bytes", len(v))
	}
	ms := int64(binary.BigEndian.Uint64(v[:8]))
	return time.UnixMilli(ms), v[8:], nil
}

// Get implements Store.
func (s *PebbleStore) Get(_ context.Context, id string) (Entry, bool, error) {
	if id == "" {
		return Entry{}, false, ErrEmptyID
	}

	v, closer, err := s.db.Get(threadKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: reading thread %s: %w", id, err)
	}
	defer closer.Close()

	updatedAt, payload, err := decodeValue(v)
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: reading thread %s: %w", id, err)
	}
	return Entry{ThreadID: id, Payload: clone(payload), UpdatedAt: updatedAt}, true, nil
}

// Put implements Store. Writes are synced to disk.
func (s *PebbleStore) Put(_ context.Context, id string, payload json.RawMessage) error {
	if err := checkPut(id, payload); err != nil {
		return err
	}
	if err := s.db.Set(threadKey(id), encodeValue(time.Now(), payload), pebble.Sync); err != nil {
		return fmt.Errorf("cache: writing thread %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *PebbleStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := s.db.Delete(threadKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("cache: deleting thread %s: %w", id, err)
	}
	return nil
}

// Stats implements Store.
func (s *PebbleStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: BackendPebble, Path: s.path}

	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: threadPrefix,
		UpperBound: prefixEnd(threadPrefix),
	})
	if err != nil {
		return Stats{}, fmt.Errorf("cache: reading stats: %w", err)
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		if !bytes.HasPrefix(it.Key(), threadPrefix) {
			continue
		}
		updatedAt, payload, err := decodeValue(it.Value())
		if err != nil {
			return Stats{}, err
		}
		st.Entries++
		st.Bytes += int64(len(payload))
		if st.Oldest.IsZero() || updatedAt.Before(st.Oldest) {
			st.Oldest = updatedAt
		}
		if updatedAt.After(st.Newest) {
			st.Newest = updatedAt
		}
	}
	return st, it.Error()
}

// Close implements Store.
func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte{}, p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
