// Package lock serializes work per key, either within one process or across
// replicas through redis.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be obtained before the
// context ended.
var ErrNotAcquired = errors.New("lock: not acquired")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires exclusive per-key locks.
type Locker interface {
	// Lock blocks until key is held or ctx ends.
	Lock(ctx context.Context, key string) (Unlock, error)
}
