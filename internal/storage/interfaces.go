package storage

import (
	"context"

	"trend-scout/internal/domain"
)

// OfficialStore provides access to the shared official_token table.
type OfficialStore interface {
	// Latest returns the most recently detected record. Returns ErrNotFound if the table is empty.
	Latest(ctx context.Context) (*domain.OfficialRecord, error)

	// Insert adds a record. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, rec *domain.OfficialRecord) error

	// ClaimIfEmpty writes rec only when no record exists, checking and writing atomically.
	// Returns the record in effect afterwards and whether rec was the one written.
	ClaimIfEmpty(ctx context.Context, rec *domain.OfficialRecord) (*domain.OfficialRecord, bool, error)

	// Subscribe delivers records inserted after the call. The channel is closed when
	// ctx is cancelled or the subscription is lost.
	Subscribe(ctx context.Context) (<-chan domain.OfficialRecord, error)
}

// FeedStore provides access to the append-only stream_feed history.
type FeedStore interface {
	// Insert appends a record. Returns ErrDuplicateKey if the mint was already recorded.
	Insert(ctx context.Context, rec *domain.FeedRecord) error
}

// TargetCache is the durable local copy of the session's official target.
type TargetCache interface {
	// Load returns the cached target. Returns ErrNotFound if nothing is cached.
	Load(ctx context.Context) (*domain.OfficialTarget, error)

	// Save replaces the cached target.
	Save(ctx context.Context, t *domain.OfficialTarget) error

	// Clear removes the cached target. Clearing an empty cache is not an error.
	Clear(ctx context.Context) error
}
