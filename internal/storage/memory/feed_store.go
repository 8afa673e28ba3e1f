package memory

import (
	"context"
	"sync"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// FeedStore is an in-memory implementation of storage.FeedStore.
type FeedStore struct {
	mu      sync.RWMutex
	records []domain.FeedRecord
	byMint  map[string]struct{}
}

// NewFeedStore creates a new in-memory feed store.
func NewFeedStore() *FeedStore {
	return &FeedStore{byMint: make(map[string]struct{})}
}

// Insert appends a record. Returns ErrDuplicateKey if the mint was already recorded.
func (s *FeedStore) Insert(_ context.Context, rec *domain.FeedRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byMint[rec.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	s.byMint[rec.Mint] = struct{}{}
	s.records = append(s.records, *rec)
	return nil
}

// All returns a copy of every record in insertion order.
func (s *FeedStore) All() []domain.FeedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.FeedRecord(nil), s.records...)
}

var _ storage.FeedStore = (*FeedStore)(nil)
