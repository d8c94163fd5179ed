package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedis_MutualExclusion(t *testing.T) {
	client := newRedisClient(t)
	l := NewRedis(client, 5*time.Second)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for range 8 {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			unlock, err := l.Lock(ctx, "alice")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, client.Exists(context.Background(), "lock:alice").Val())
}

func TestRedis_TimeoutAndForeignRelease(t *testing.T) {
	client := newRedisClient(t)
	l := NewRedis(client, 5*time.Second)

	unlock, err := l.Lock(context.Background(), "bob")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, client.Set(context.Background(), "lock:bob", "someone-else", time.Minute).Err())
	unlock()
	assert.Equal(t, "someone-else", client.Get(context.Background(), "lock:bob").Val())
}
