package memory

import (
	"context"
	"sync"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// OfficialStore is an in-memory implementation of storage.OfficialStore.
type OfficialStore struct {
	mu          sync.Mutex
	records     []domain.OfficialRecord // insertion order
	byMint      map[string]struct{}
	subscribers map[chan domain.OfficialRecord]struct{}
}

// NewOfficialStore creates a new in-memory official store.
func NewOfficialStore() *OfficialStore {
	return &OfficialStore{
		byMint:      make(map[string]struct{}),
		subscribers: make(map[chan domain.OfficialRecord]struct{}),
	}
}

// Latest returns the record with the greatest DetectedAt, later inserts winning ties.
func (s *OfficialStore) Latest(_ context.Context) (*domain.OfficialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestLocked()
}

func (s *OfficialStore) latestLocked() (*domain.OfficialRecord, error) {
	if len(s.records) == 0 {
		return nil, storage.ErrNotFound
	}
	best := s.records[0]
	for _, r := range s.records[1:] {
		if !r.DetectedAt.Before(best.DetectedAt) {
			best = r
		}
	}
	return &best, nil
}

// Insert adds a record and notifies subscribers.
func (s *OfficialStore) Insert(_ context.Context, rec *domain.OfficialRecord) error {
	if rec == nil || rec.Mint == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(*rec)
}

func (s *OfficialStore) insertLocked(rec domain.OfficialRecord) error {
	if _, exists := s.byMint[rec.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	s.byMint[rec.Mint] = struct{}{}
	s.records = append(s.records, rec)
	for ch := range s.subscribers {
		select {
		case ch <- rec:
		default:
		}
	}
	return nil
}

// ClaimIfEmpty writes rec only when the store is empty.
func (s *OfficialStore) ClaimIfEmpty(_ context.Context, rec *domain.OfficialRecord) (*domain.OfficialRecord, bool, error) {
	if rec == nil || rec.Mint == "" {
		return nil, false, storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.latestLocked(); err == nil {
		return existing, false, nil
	}
	if err := s.insertLocked(*rec); err != nil {
		return nil, false, err
	}
	out := *rec
	return &out, true, nil
}

// Subscribe delivers records inserted after the call until ctx is cancelled.
func (s *OfficialStore) Subscribe(ctx context.Context) (<-chan domain.OfficialRecord, error) {
	ch := make(chan domain.OfficialRecord, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// Len returns the number of stored records.
func (s *OfficialStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var _ storage.OfficialStore = (*OfficialStore)(nil)
