package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts requests in fixed windows so limits hold across
// instances. INCR and the expiry run in one pipeline; the window boundary is
// coarser than the in-memory sliding window but cheap and contention-free.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed limiter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	redisKey := "veriflow:ratelimit:" + key

	pipe := s.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}

	n := int(count.Val())
	remaining := ttl.Val()
	if remaining < 0 {
		// First hit in this window; the key has no expiry yet.
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
		remaining = window
	}
	resetAt := time.Now().Add(remaining)

	if n > limit {
		return &Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - n,
		ResetAt:   resetAt,
	}, nil
}
