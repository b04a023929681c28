// Package reservation claims result request ids before the provider call is
// made. The result store's unique index is the hard guarantee; the
// reservation is a cheap early check that catches duplicate correlation ids
// before any network round trip.
package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"veriflow/pkg/platform/sentinel"
)

// Store claims a request id for exclusive use. Claim returns
// sentinel.ErrAlreadyUsed when the id was claimed before.
type Store interface {
	Claim(ctx context.Context, requestID string) error
	Release(ctx context.Context, requestID string) error
}

// InMemory reserves request ids in process memory.
type InMemory struct {
	mu      sync.Mutex
	claimed map[string]bool
}

// NewInMemory constructs an empty in-memory reservation store.
func NewInMemory() *InMemory {
	return &InMemory{claimed: make(map[string]bool)}
}

func (s *InMemory) Claim(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimed[requestID] {
		return fmt.Errorf("request id %q: %w", requestID, sentinel.ErrAlreadyUsed)
	}
	s.claimed[requestID] = true
	return nil
}

func (s *InMemory) Release(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claimed, requestID)
	return nil
}

// Redis reserves request ids with SET NX so claims are atomic across
// instances. Reservations carry a TTL; the result store's unique index
// remains authoritative after they lapse.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed reservation store.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Claim(ctx context.Context, requestID string) error {
	ok, err := s.client.SetNX(ctx, s.key(requestID), "1", s.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim request id: %w", err)
	}
	if !ok {
		return fmt.Errorf("request id %q: %w", requestID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *Redis) Release(ctx context.Context, requestID string) error {
	if err := s.client.Del(ctx, s.key(requestID)).Err(); err != nil {
		return fmt.Errorf("release request id: %w", err)
	}
	return nil
}

func (s *Redis) key(requestID string) string {
	return "veriflow:result-request:" + requestID
}
