package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUp_UsesEmbeddedRoot(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}

	fsys := fstest.MapFS{"00001_init.sql": &fstest.MapFile{Data: []byte("-- +goose Up\nSELECT 1;\n")}}
	require.NoError(t, up(context.Background(), nil, fsys))
	assert.Equal(t, ".", gotDir)
}

func TestUp_WrapsError(t *testing.T) {
	orig := gooseUp
	defer func() { gooseUp = orig }()

	boom := errors.New("boom")
	gooseUp = func(context.Context, *sql.DB, string) error { return boom }

	err := up(context.Background(), nil, fstest.MapFS{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "migration: up")
}
