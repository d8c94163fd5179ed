package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis tracks key states in redis so that all replicas share them.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a redis backed Idempotency.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, prefix: "idempotency:"}
}

// Exec implements Idempotency.
func (s *Redis) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	return exec(ctx, s, key, fn, opts...)
}

func (s *Redis) acquire(ctx context.Context, key string, lock time.Duration) (State, error) {
	fk := s.prefix + key

	acquired, err := s.client.SetNX(ctx, fk, StateInProgress.String(), lock).Result()
	if err != nil {
		return StateNone, err
	}
	if acquired {
		return StateNone, nil
	}

	result, err := s.client.Get(ctx, fk).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.acquire(ctx, key, lock)
	}
	if err != nil {
		return StateNone, err
	}

	switch State(result) {
	case StateInProgress, StateCompleted:
		return State(result), nil
	default:
		return StateNone, ErrInvalidState
	}
}

func (s *Redis) complete(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, StateCompleted.String(), ttl).Err()
}

func (s *Redis) release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
