package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newCache(t *testing.T) *Cache {
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

	return NewCache(client, instrument.NewNoop())
}

func TestLedger(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	l := NewLedger(c, entity.LedgerPolicy{Limit: 5, Window: time.Hour, ConsumeTTL: 2 * time.Minute})
	base := time.Now().Truncate(time.Second)

	t.Run("sixth attempt is limited until the window rolls", func(t *testing.T) {
		for i := range 5 {
			at := base.Add(time.Duration(i) * time.Minute)
			limited, err := l.IsRateLimited(ctx, entity.ScopeVerify, "bob", at)
			require.NoError(t, err)
			assert.False(t, limited)
			require.NoError(t, l.RecordAttempt(ctx, entity.Attempt{Account: "bob", Scope: entity.ScopeVerify, Outcome: entity.OutcomeRejectedCode, At: at}))
		}

		sixth := base.Add(10 * time.Minute)
		limited, err := l.IsRateLimited(ctx, entity.ScopeVerify, "bob", sixth)
		require.NoError(t, err)
		assert.True(t, limited)
		require.NoError(t, l.RecordAttempt(ctx, entity.Attempt{Account: "bob", Scope: entity.ScopeVerify, Outcome: entity.OutcomeRateLimited, At: sixth}))

		limited, err = l.IsRateLimited(ctx, entity.ScopeEnroll, "bob", sixth)
		require.NoError(t, err)
		assert.False(t, limited)

		limited, err = l.IsRateLimited(ctx, entity.ScopeVerify, "bob", base.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, limited)
	})

	t.Run("try consume is exactly once", func(t *testing.T) {
		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 16 {
			wg.Go(func() {
				ok, err := l.TryConsume(ctx, "alice", 42, base)
				if assert.NoError(t, err) && ok {
					wins.Add(1)
				}
			})
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		ok, err := l.TryConsume(ctx, "alice", 43, base)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestSessionStore(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	st := NewSessionStore(c)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := st.GetSession(ctx, "alice")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	sess := entity.NewSession(1, "alice", now, time.Minute)
	require.NoError(t, sess.MarkVerified(now, time.Minute, "ref-1", 9))
	require.NoError(t, st.SaveSession(ctx, *sess, time.Minute))

	got, err := st.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStateOtpVerified, got.State)
	assert.Equal(t, int64(9), got.WindowID)
	assert.True(t, got.ExpiresAt.Equal(sess.ExpiresAt))

	account, err := st.GetSessionAccountByRef(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", account)

	next := entity.NewSession(2, "alice", now, time.Minute)
	require.NoError(t, next.MarkVerified(now, time.Minute, "ref-2", 10))
	require.NoError(t, st.SaveSession(ctx, *next, time.Minute))

	_, err = st.GetSessionAccountByRef(ctx, "ref-1")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	require.NoError(t, st.DeleteSessions(ctx, "alice"))
	_, err = st.GetSession(ctx, "alice")
	assert.ErrorIs(t, err, goerror.ErrNotFound)
	_, err = st.GetSessionAccountByRef(ctx, "ref-2")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	require.NoError(t, st.DeleteSessions(ctx, "nobody"))
}
