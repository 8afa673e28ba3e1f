// Package sqlite implements the durable local target cache on a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// DefaultKey is the row key under which the target is stored.
const DefaultKey = "official_target"

// TargetCache implements storage.TargetCache using a key-value table.
type TargetCache struct {
	db  *sql.DB
	key string
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*TargetCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY on the file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &TargetCache{db: db, key: DefaultKey}, nil
}

// Close closes the database.
func (c *TargetCache) Close() error {
	return c.db.Close()
}

// Compile-time interface check.
var _ storage.TargetCache = (*TargetCache)(nil)

// Load returns the cached target. Returns ErrNotFound if nothing is cached.
func (c *TargetCache) Load(ctx context.Context) (*domain.OfficialTarget, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, c.key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load target: %w", err)
	}
	return storage.DecodeTarget(value)
}

// Save replaces the cached target.
func (c *TargetCache) Save(ctx context.Context, t *domain.OfficialTarget) error {
	value, err := storage.EncodeTarget(t)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, c.key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	return nil
}

// Clear removes the cached target.
func (c *TargetCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, c.key); err != nil {
		return fmt.Errorf("clear target: %w", err)
	}
	return nil
}
