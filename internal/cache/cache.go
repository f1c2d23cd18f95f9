// Package cache persists raw thread payloads between runs.
//
// A Store maps a thread id to the JSON payload last fetched for it. Entries
// are replaced on conflict and every Put is durable before it returns.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

var (
	// ErrEmptyID is returned when a thread id is empty.
	ErrEmptyID = errors.New("cache: empty thread id")

	// ErrInvalidPayload is returned by Put for a payload that is not JSON.
	ErrInvalidPayload = errors.New("cache: payload is not valid JSON")
)

// Entry is one cached thread.
type Entry struct {
	ThreadID  string
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// Stats summarizes a store.
type Stats struct {
	Backend string
	Path    string
	Entries int
	Bytes   int64
	Oldest  time.Time
	Newest  time.Time
}

// Store is a durable thread payload cache.
type Store interface {
	// Get returns the entry for id. A miss is ok == false with a nil error.
	Get(ctx context.Context, id string) (entry Entry, ok bool, err error)
	// Put stores payload under id, replacing any previous entry.
	Put(ctx context.Context, id string, payload json.RawMessage) error
	// Delete removes the entry for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Open opens the store for backend at path, creating it when needed.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(path)
	case BackendPebble:
		return OpenPebble(path)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", backend)
	}
}

func checkPut(id string, payload json.RawMessage) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}

func clone(b []byte) json.RawMessage {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
