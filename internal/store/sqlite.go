package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLite persists key-value pairs in a single SQLite table.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ KV = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	// busy_timeout is per connection, so it goes in the DSN where every
	// pooled connection picks it up.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma journal_mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

const upsertSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL, key, value, now()); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Update holds a write lock on the database (BEGIN IMMEDIATE) from the read
// of key until the new value is committed.
func (s *SQLite) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("update %q: acquire connection: %w", key, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("update %q: begin: %w", key, err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var current string
	ok := true
	scanErr := conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&current)
	switch {
	case errors.Is(scanErr, sql.ErrNoRows):
		ok = false
	case scanErr != nil:
		return fmt.Errorf("update %q: read: %w", key, scanErr)
	}

	next, err := fn(current, ok)
	if err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, upsertSQL, key, next, now()); err != nil {
		return fmt.Errorf("update %q: write: %w", key, err)
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("update %q: commit: %w", key, err)
	}
	committed = true
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
