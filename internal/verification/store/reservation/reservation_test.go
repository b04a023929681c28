package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"veriflow/pkg/platform/sentinel"
)

type ReservationSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ReservationSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestReservationSuite(t *testing.T) {
	suite.Run(t, new(ReservationSuite))
}

// assertStore runs the contract every reservation backend must honor.
func (s *ReservationSuite) assertStore(store Store) {
	s.Run("first claim succeeds", func() {
		s.NoError(store.Claim(s.ctx, "REQ_contract_1"))
	})

	s.Run("second claim reports already used", func() {
		err := store.Claim(s.ctx, "REQ_contract_1")
		s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
	})

	s.Run("distinct ids do not collide", func() {
		s.NoError(store.Claim(s.ctx, "REQ_contract_2"))
	})

	s.Run("released id can be claimed again", func() {
		s.NoError(store.Release(s.ctx, "REQ_contract_1"))
		s.NoError(store.Claim(s.ctx, "REQ_contract_1"))
	})

	s.Run("releasing an unclaimed id is a no-op", func() {
		s.NoError(store.Release(s.ctx, "REQ_never_claimed"))
	})
}

func (s *ReservationSuite) TestInMemory() {
	s.assertStore(NewInMemory())
}

func (s *ReservationSuite) TestInMemoryConcurrentClaims() {
	store := NewInMemory()

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Claim(s.ctx, "REQ_contended") == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	s.Len(wins, 1)
}

func (s *ReservationSuite) TestRedis() {
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { client.Close() })

	s.assertStore(NewRedis(client, time.Hour))
}

func (s *ReservationSuite) TestRedisClaimExpires() {
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { client.Close() })

	store := NewRedis(client, time.Minute)
	s.Require().NoError(store.Claim(s.ctx, "REQ_ttl"))

	err := store.Claim(s.ctx, "REQ_ttl")
	s.True(errors.Is(err, sentinel.ErrAlreadyUsed))

	// After the reservation lapses the unique index in the result store is
	// the remaining guard; the claim itself becomes available again.
	mr.FastForward(2 * time.Minute)
	s.NoError(store.Claim(s.ctx, "REQ_ttl"))
}

func (s *ReservationSuite) TestRedisDefaultTTL() {
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { client.Close() })

	store := NewRedis(client, 0)
	s.Require().NoError(store.Claim(s.ctx, "REQ_default_ttl"))

	ttl := mr.TTL("veriflow:result-request:REQ_default_ttl")
	s.Equal(24*time.Hour, ttl)
}
