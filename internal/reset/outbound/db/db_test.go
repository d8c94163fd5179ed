package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpreset/internal/pkg/goerror"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/migration"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/db/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("otpreset"),
		tcpostgres.WithUsername("otpreset"),
		tcpostgres.WithPassword("otpreset"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migration.Up(ctx, pool, migrations.FS))

	return NewDB(pool, instrument.NewNoop())
}

func TestDB_Enrollment(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := db.GetEnrollment(ctx, "alice")
	assert.ErrorIs(t, err, goerror.ErrNotFound)

	alice := entity.Enrollment{
		Account: "alice", Contact: "alice@example.com", Secret: []byte{1, 2, 3},
		KeyVersion: 1, Digits: 6, Period: 30, Algorithm: "SHA1", EnrolledAt: at,
	}
	require.NoError(t, db.UpsertEnrollment(ctx, alice))

	got, err := db.GetEnrollment(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.Secret, got.Secret)
	assert.Equal(t, uint16(1), got.KeyVersion)
	assert.True(t, got.EnrolledAt.Equal(at))

	t.Run("contact bound to another account", func(t *testing.T) {
		err := db.UpsertEnrollment(ctx, entity.Enrollment{
			Account: "bob", Contact: "alice@example.com", Secret: []byte{9},
			KeyVersion: 1, Digits: 6, Period: 30, Algorithm: "SHA1", EnrolledAt: at,
		})
		assert.ErrorIs(t, err, goerror.ErrConflict)
	})

	t.Run("re-enrollment replaces the secret", func(t *testing.T) {
		alice.Secret = []byte{4, 5, 6}
		alice.KeyVersion = 2
		require.NoError(t, db.UpsertEnrollment(ctx, alice))

		got, err := db.GetEnrollmentByContact(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, []byte{4, 5, 6}, got.Secret)
		assert.Equal(t, uint16(2), got.KeyVersion)
	})

	list, err := db.ListEnrollments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Account)
	assert.Nil(t, list[0].Secret)
}

func TestDB_DirectoryAndApplier(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	_, err := db.conn.Exec(ctx, `INSERT INTO reset_accounts (username) VALUES ('alice'), ('mallory')`)
	require.NoError(t, err)
	_, err = db.conn.Exec(ctx, `UPDATE reset_accounts SET disabled = TRUE WHERE username = 'mallory'`)
	require.NoError(t, err)

	ok, err := db.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Exists(ctx, "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	hasher := hash.NewBcrypt(4, "")
	applier := NewCredentialApplier(db, hasher)

	require.NoError(t, applier.Apply(ctx, "alice", "Str0ngPass!"))

	var stored string
	require.NoError(t, db.conn.QueryRow(ctx, `SELECT password_hash FROM reset_accounts WHERE username = 'alice'`).Scan(&stored))
	assert.True(t, hasher.Verify(stored, "Str0ngPass!"))

	assert.ErrorIs(t, applier.Apply(ctx, "mallory", "Str0ngPass!"), goerror.ErrNotFound)
	assert.ErrorIs(t, applier.Apply(ctx, "nobody", "Str0ngPass!"), goerror.ErrNotFound)
}
