package memory

import (
	"context"
	"sync"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// TargetCache is an in-memory implementation of storage.TargetCache.
type TargetCache struct {
	mu     sync.Mutex
	target *domain.OfficialTarget
}

// NewTargetCache creates an empty cache.
func NewTargetCache() *TargetCache {
	return &TargetCache{}
}

// Load returns a copy of the cached target.
func (c *TargetCache) Load(_ context.Context) (*domain.OfficialTarget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return nil, storage.ErrNotFound
	}
	t := *c.target
	return &t, nil
}

// Save replaces the cached target.
func (c *TargetCache) Save(_ context.Context, t *domain.OfficialTarget) error {
	if t == nil || t.Token.ID == "" {
		return storage.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *t
	c.target = &cp
	return nil
}

// Clear removes the cached target.
func (c *TargetCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = nil
	return nil
}

var _ storage.TargetCache = (*TargetCache)(nil)
