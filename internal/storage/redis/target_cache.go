// Package redis implements the local target cache on a Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"trend-scout/internal/domain"
	"trend-scout/internal/storage"
)

// DefaultKey is the Redis key under which the target is stored.
const DefaultKey = "trend-scout:official_target"

// TargetCache implements storage.TargetCache with a single Redis string.
type TargetCache struct {
	client goredis.Cmdable
	key    string
}

// New wraps an existing client. Empty key uses DefaultKey.
func New(client goredis.Cmdable, key string) *TargetCache {
	if key == "" {
		key = DefaultKey
	}
	return &TargetCache{client: client, key: key}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*TargetCache, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return New(client, ""), client, nil
}

// Compile-time interface check.
var _ storage.TargetCache = (*TargetCache)(nil)

// Load returns the cached target. Returns ErrNotFound if the key is absent.
func (c *TargetCache) Load(ctx context.Context) (*domain.OfficialTarget, error) {
	b, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load target: %w", err)
	}
	return storage.DecodeTarget(b)
}

// Save replaces the cached target. The key does not expire.
func (c *TargetCache) Save(ctx context.Context, t *domain.OfficialTarget) error {
	b, err := storage.EncodeTarget(t)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, b, 0).Err(); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	return nil
}

// Clear removes the cached target.
func (c *TargetCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("clear target: %w", err)
	}
	return nil
}
