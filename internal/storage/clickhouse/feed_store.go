package clickhouse

import (
	"context"
	"fmt"
	"time"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// FeedStore implements storage.FeedStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are detected with a lookup first.
type FeedStore struct {
	conn *Conn
}

// NewFeedStore creates a new FeedStore.
func NewFeedStore(conn *Conn) *FeedStore {
	return &FeedStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeedStore = (*FeedStore)(nil)

// Insert appends a record. Returns ErrDuplicateKey if the mint was already recorded.
func (s *FeedStore) Insert(ctx context.Context, rec *domain.FeedRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, rec.Mint)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO stream_feed (mint, name, symbol, uri, created_at)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	if err := batch.Append(rec.Mint, rec.Name, rec.Symbol, rec.URI, createdAt); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Count returns the number of distinct recorded mints.
func (s *FeedStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT uniqExact(mint) FROM stream_feed`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stream feed: %w", err)
	}
	return n, nil
}

func (s *FeedStore) exists(ctx context.Context, mint string) (bool, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM stream_feed WHERE mint = ?`, mint).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
