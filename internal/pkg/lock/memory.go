package lock

import (
	"context"
	"fmt"
	"sync"
)

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

// Memory is a keyed mutex. Entries are reference counted and removed once no
// caller holds or waits on the key.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

// NewMemory returns an in-process Locker.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*keyedMutex)}
}

// Lock implements Locker.
func (m *Memory) Lock(ctx context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	km, ok := m.locks[key]
	if !ok {
		km = &keyedMutex{ch: make(chan struct{}, 1)}
		m.locks[key] = km
	}
	km.refs++
	m.mu.Unlock()

	select {
	case km.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, km)
		return nil, fmt.Errorf("%w: %w", ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-km.ch
			m.unref(key, km)
		})
	}, nil
}

func (m *Memory) unref(key string, km *keyedMutex) {
	m.mu.Lock()
	defer m.mu.Unlock()

	km.refs--
	if km.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
