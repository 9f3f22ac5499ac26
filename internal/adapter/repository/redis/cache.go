package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/marketledger/internal/usecase"
)

const cachePrefix = "billing:cache:"

// Cache implements usecase.Cache using Redis.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// NewCache creates a new Cache.
func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{
		client: client,
		prefix: cachePrefix,
	}
}

// Get retrieves a value by key. Absent keys yield usecase.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, usecase.ErrCacheMiss
	}
	return val, err
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete removes keys. Missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}

	return c.client.Del(ctx, full...).Err()
}
