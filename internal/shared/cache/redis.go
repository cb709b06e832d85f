// Package cache provides a small Redis-backed string cache used for
// department name resolution. When Redis is not configured the nil
// Cache is a no-op and callers fall through to the database.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/civicgrid/platform/internal/shared/config"
)

// Cache wraps a redis client with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection. Returns nil (and
// no error) when the cache is disabled in config.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Cache{client: client, ttl: cfg.TTL}, nil
}

// Get returns the cached value and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores a value under the configured TTL. Failures are ignored; the
// cache is advisory.
func (c *Cache) Set(ctx context.Context, key, value string) {
	if c == nil {
		return
	}
	c.client.Set(ctx, key, value, c.ttl)
}

// Delete removes a key, used on department mutations.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, key)
}

// Close releases the underlying connection.
func (c *Cache) Close() {
	if c != nil && c.client != nil {
		c.client.Close()
	}
}

// Health checks the Redis connection.
func (c *Cache) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
