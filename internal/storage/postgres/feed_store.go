package postgres

import (
	"context"
	"fmt"
	"time"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// FeedStore implements storage.FeedStore using PostgreSQL.
type FeedStore struct {
	pool *Pool
}

// NewFeedStore creates a new FeedStore.
func NewFeedStore(pool *Pool) *FeedStore {
	return &FeedStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeedStore = (*FeedStore)(nil)

// Insert appends a record. Returns ErrDuplicateKey if the mint was already recorded.
func (s *FeedStore) Insert(ctx context.Context, rec *domain.FeedRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stream_feed (mint, name, symbol, uri, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, rec.Mint, rec.Name, rec.Symbol, rec.URI, createdAt); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert stream feed: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *FeedStore) Recent(ctx context.Context, limit int) ([]domain.FeedRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT mint, name, symbol, uri, created_at
		FROM stream_feed
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query stream feed: %w", err)
	}
	defer rows.Close()

	var out []domain.FeedRecord
	for rows.Next() {
		var r domain.FeedRecord
		if err := rows.Scan(&r.Mint, &r.Name, &r.Symbol, &r.URI, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stream feed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream feed: %w", err)
	}
	return out, nil
}
