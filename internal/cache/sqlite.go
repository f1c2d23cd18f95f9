package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createThreadsTable = `CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	data JSON NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps payloads in a single sqlite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the sqlite database at path. A threads table
// left by older versions (no primary key, duplicate rows allowed) is migrated
// in place, keeping the first row stored for each id.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
		}
	}

	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: opening sqlite database failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: connecting to sqlite database failed: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	cols, err := s.columns(ctx)
	if err != nil {
		return err
	}

	if len(cols) == 0 {
		if _, err := s.db.ExecContext(ctx, createThreadsTable); err != nil {
			return fmt.Errorf("cache: creating threads table: %w", err)
		}
		return nil
	}
	if cols["updated_at"] {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: starting migration: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`ALTER TABLE threads RENAME TO threads_legacy`,
		createThreadsTable,
		`INSERT INTO threads (id, data, updated_at)
		 SELECT id, data, 0 FROM threads_legacy
		 WHERE rowid IN (
			SELECT MIN(rowid) FROM threads_legacy
			WHERE id IS NOT NULL AND data IS NOT NULL
			GROUP BY id
		 )`,
		`DROP TABLE threads_legacy`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("cache: migrating legacy threads table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: committing migration: %w", err)
	}
	return nil
}

// sqliteDSN renders path as a file URI so that characters such as '?', '#'
// and '%' stay part of the file name.
func sqliteDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cache: resolving %s: %w", path, err)
	}
	u := &url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: url.Values{"_busy_timeout": {"5000"}}.Encode(),
	}
	return u.String(), nil
}

// columns returns the column names of the threads table, empty when the
// table does not exist.
func (s *SQLiteStore) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(threads)`)
	if err != nil {
		return nil, fmt.Errorf("cache: inspecting threads table: %w", err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("cache: inspecting threads table: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	if id == "" {
		return Entry{}, false, ErrEmptyID
	}

	var (
		data      []byte
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM threads WHERE id = ?`, id,
	).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: reading thread %s: %w", id, err)
	}

	return Entry{
		ThreadID:  id,
		Payload:   clone(data),
		UpdatedAt: time.UnixMilli(updatedAt),
	}, true, nil
}

// Put implements Store. The write is committed before Put returns.
func (s *SQLiteStore) Put(ctx context.Context, id string, payload json.RawMessage) error {
	if err := checkPut(id, payload); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: writing thread %s: %w", id, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, id, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("cache: writing thread %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: committing thread %s: %w", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cache: deleting thread %s: %w", id, err)
	}
	return nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: BackendSQLite, Path: s.path}

	var (
		bytes          sql.NullInt64
		oldest, newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(LENGTH(data)), MIN(updated_at), MAX(updated_at) FROM threads
	`).Scan(&st.Entries, &bytes, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: reading stats: %w", err)
	}

	st.Bytes = bytes.Int64
	if oldest.Valid {
		st.Oldest = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		st.Newest = time.UnixMilli(newest.Int64)
	}
	return st, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
