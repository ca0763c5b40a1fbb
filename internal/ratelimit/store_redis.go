package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CounterStore shared across processes. INCR carries the
// atomicity; ExpireNX attaches the window ttl exactly once per key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

var _ CounterStore = (*RedisStore)(nil)

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	full := s.prefix + ":" + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, ttl)
	pttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	remaining := pttl.Val()
	if remaining < 0 {
		remaining = ttl
	}
	return incr.Val(), remaining, nil
}

// Get implements CounterStore.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	full := s.prefix + ":" + key
	pipe := s.client.TxPipeline()
	get := pipe.Get(ctx, full)
	pttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("ratelimit: redis get: %w", err)
	}
	count, err := get.Int64()
	if err != nil {
		// Key absent: zero usage in the current window.
		return 0, 0, nil
	}
	remaining := pttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining, nil
}
