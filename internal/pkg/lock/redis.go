package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX. The TTL bounds how long a crashed
// holder blocks others; it must exceed the longest critical section.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	base   time.Duration
	cap    time.Duration
}

// NewRedis returns a redis Locker whose locks expire after ttl.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Redis{
		client: client,
		prefix: "lock:",
		ttl:    ttl,
		base:   20 * time.Millisecond,
		cap:    500 * time.Millisecond,
	}
}

// Lock implements Locker. Acquisition is retried with a capped fibonacci
// backoff until ctx ends.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	fk := r.prefix + key
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	b := retry.WithCappedDuration(r.cap, retry.NewFibonacci(r.base))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		ok, err := r.client.SetNX(ctx, fk, token, r.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(ErrNotAcquired)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotAcquired, ctx.Err())
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(rctx, r.client, []string{fk}, token).Err(); err != nil {
				slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
