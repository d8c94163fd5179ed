package system

import (
	"context"
	"errors"
	"os/user"
	"testing"

	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_Exists(t *testing.T) {
	d := NewDirectory(1000, instrument.NewNoop())
	d.lookup = func(name string) (*user.User, error) {
		switch name {
		case "alice":
			return &user.User{Username: "alice", Uid: "1001"}, nil
		case "daemon":
			return &user.User{Username: "daemon", Uid: "2"}, nil
		case "broken":
			return nil, errors.New("nss unavailable")
		default:
			return nil, user.UnknownUserError(name)
		}
	}

	ctx := context.Background()

	ok, err := d.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists(ctx, "daemon")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.Exists(ctx, "nobody-here")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Exists(ctx, "broken")
	assert.Error(t, err)
}

func TestApplier_Apply(t *testing.T) {
	a := NewApplier("", instrument.NewNoop())

	var gotStdin, gotName string
	a.run = func(_ context.Context, stdin []byte, name string, _ ...string) error {
		gotStdin, gotName = string(stdin), name
		return nil
	}

	require.NoError(t, a.Apply(context.Background(), "alice", "Str0ngPass!"))
	assert.Equal(t, "chpasswd", gotName)
	assert.Equal(t, "alice:Str0ngPass!\n", gotStdin)

	assert.ErrorIs(t, a.Apply(context.Background(), "alice", "two\nlines"), ErrInvalidPassword)

	a.run = func(context.Context, []byte, string, ...string) error { return errors.New("exit status 1") }
	assert.Error(t, a.Apply(context.Background(), "alice", "Str0ngPass!"))
}
