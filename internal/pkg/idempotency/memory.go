package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// Memory tracks key states in process.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemory returns an in-process Idempotency.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now, entries: make(map[string]memoryEntry)}
}

// Exec implements Idempotency.
func (m *Memory) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	return exec(ctx, m, key, fn, opts...)
}

func (m *Memory) acquire(_ context.Context, key string, lock time.Duration) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		return e.state, nil
	}

	m.entries[key] = memoryEntry{state: StateInProgress, expiresAt: now.Add(lock)}
	return StateNone, nil
}

func (m *Memory) complete(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{state: StateCompleted, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Sweep drops expired keys.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}
