package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "acitrack:artifact:"

	// Redis entries outlive the TTL so they can still be served stale.
	redisRetention = 7 * 24 * time.Hour
)

// Entry is cached artifact content.
type Entry struct {
	Content  []byte    `json:"content"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache stores artifact content by file name.
type Cache interface {
	// Get returns the entry, or nil when absent.
	Get(ctx context.Context, name string) (*Entry, error)
	Set(ctx context.Context, name string, entry Entry) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get returns a copy of the entry for name.
func (c *MemoryCache) Get(_ context.Context, name string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, nil //nolint:nilnil
	}

	return &e, nil
}

// Set replaces the entry for name.
func (c *MemoryCache) Set(_ context.Context, name string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[name] = entry

	return nil
}

// RedisCache shares artifact content between API replicas.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisCacheFromURL parses a redis:// URL.
func NewRedisCacheFromURL(rawURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewRedisCache(redis.NewClient(opts)), nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get loads and decodes the entry for name.
func (c *RedisCache) Get(ctx context.Context, name string) (*Entry, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil //nolint:nilnil
		}

		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", name, err)
	}

	return &e, nil
}

// Set stores the entry for name.
func (c *RedisCache) Set(ctx context.Context, name string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", name, err)
	}

	if err := c.client.Set(ctx, redisKeyPrefix+name, data, redisRetention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}

	return nil
}
