package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// NotifyChannel is the LISTEN channel fed by the official_token insert trigger.
const NotifyChannel = "official_token"

// claimLockKey serializes ClaimIfEmpty across every client of the database.
const claimLockKey int64 = 0x6f6666696369616c // "official"

// OfficialStore implements storage.OfficialStore using PostgreSQL.
type OfficialStore struct {
	pool *Pool
}

// NewOfficialStore creates a new OfficialStore.
func NewOfficialStore(pool *Pool) *OfficialStore {
	return &OfficialStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OfficialStore = (*OfficialStore)(nil)

const selectLatestOfficial = `
	SELECT mint, name, symbol, image_uri, detected_by, detected_at
	FROM official_token
	ORDER BY detected_at DESC
	LIMIT 1
`

// Latest returns the most recently detected record. Returns ErrNotFound if none.
func (s *OfficialStore) Latest(ctx context.Context) (*domain.OfficialRecord, error) {
	rec, err := scanOfficial(s.pool.QueryRow(ctx, selectLatestOfficial))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest official token: %w", err)
	}
	return rec, nil
}

const insertOfficial = `
	INSERT INTO official_token (mint, name, symbol, image_uri, detected_by, detected_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Insert adds a record. Returns ErrDuplicateKey if the mint exists.
func (s *OfficialStore) Insert(ctx context.Context, rec *domain.OfficialRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}
	if _, err := s.pool.Exec(ctx, insertOfficial, officialArgs(rec)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert official token: %w", err)
	}
	return nil
}

// ClaimIfEmpty writes rec only when the table is empty. The check and the write run in
// one transaction holding an advisory lock, so concurrent claimers serialize.
func (s *OfficialStore) ClaimIfEmpty(ctx context.Context, rec *domain.OfficialRecord) (*domain.OfficialRecord, bool, error) {
	if rec == nil || rec.Mint == "" {
		return nil, false, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", claimLockKey); err != nil {
		return nil, false, fmt.Errorf("acquire claim lock: %w", err)
	}

	existing, err := scanOfficial(tx.QueryRow(ctx, selectLatestOfficial))
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("commit claim: %w", err)
		}
		return existing, false, nil
	case !isNotFoundError(err):
		return nil, false, fmt.Errorf("check existing official token: %w", err)
	}

	if _, err := tx.Exec(ctx, insertOfficial, officialArgs(rec)...); err != nil {
		if isDuplicateKeyError(err) {
			return nil, false, storage.ErrDuplicateKey
		}
		return nil, false, fmt.Errorf("insert official token: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit claim: %w", err)
	}

	out := *rec
	return &out, true, nil
}

// Subscribe listens on NotifyChannel using a dedicated pooled connection.
// The connection is returned to the pool when ctx is cancelled.
func (s *OfficialStore) Subscribe(ctx context.Context) (<-chan domain.OfficialRecord, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	out := make(chan domain.OfficialRecord, 16)
	go func() {
		defer close(out)
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := conn.Exec(cleanupCtx, "UNLISTEN *"); err != nil {
				// Do not hand a connection in an unknown state back to the pool.
				_ = conn.Conn().Close(cleanupCtx)
			}
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			rec, err := decodeNotification(n.Payload)
			if err != nil {
				continue
			}
			select {
			case out <- *rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// decodeNotification parses the row_to_json payload of the insert trigger.
func decodeNotification(payload string) (*domain.OfficialRecord, error) {
	var rec domain.OfficialRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if rec.Mint == "" {
		return nil, fmt.Errorf("decode notification: %w", storage.ErrInvalidInput)
	}
	return &rec, nil
}

func officialArgs(rec *domain.OfficialRecord) []any {
	detectedAt := rec.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	return []any{rec.Mint, rec.Name, rec.Symbol, rec.ImageURI, rec.DetectedBy, detectedAt}
}

func scanOfficial(row pgx.Row) (*domain.OfficialRecord, error) {
	var rec domain.OfficialRecord
	if err := row.Scan(&rec.Mint, &rec.Name, &rec.Symbol, &rec.ImageURI, &rec.DetectedBy, &rec.DetectedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
