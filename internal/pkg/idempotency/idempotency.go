// Package idempotency runs an operation at most once per key.
//
// A key moves from in_progress to completed. A failed operation releases its
// key so the caller may retry with the same key.
package idempotency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyInProgress is returned while another call holds the key.
	ErrAlreadyInProgress = errors.New("idempotency: operation already in progress")
	// ErrAlreadyCompleted is returned when the key already completed.
	ErrAlreadyCompleted = errors.New("idempotency: operation already completed")
	// ErrInvalidState is returned when the stored state is unreadable.
	ErrInvalidState = errors.New("idempotency: invalid state")
)

// State is the stored state of a key.
type State string

// Key states.
const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

func (s State) String() string {
	return string(s)
}

// Idempotency guards operations by key.
type Idempotency interface {
	// Exec runs fn unless key is in progress or completed.
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour
)

// Option configures Exec.
type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

func newExecOptions(opts ...Option) execOptions {
	o := execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}
	return o
}

// WithLockDuration bounds how long an in-progress key blocks other callers.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long a completed key is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// tracker is the storage a key state machine runs on.
type tracker interface {
	acquire(ctx context.Context, key string, lock time.Duration) (State, error)
	complete(ctx context.Context, key string, ttl time.Duration) error
	release(ctx context.Context, key string) error
}

func exec(ctx context.Context, t tracker, key string, fn func(context.Context) error, opts ...Option) error {
	o := newExecOptions(opts...)

	state, err := t.acquire(ctx, key, o.lockDuration)
	if err != nil {
		return err
	}

	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	}

	if err := fn(ctx); err != nil {
		return errors.Join(err, t.release(context.WithoutCancel(ctx), key))
	}

	return t.complete(context.WithoutCancel(ctx), key, o.stateTTL)
}
