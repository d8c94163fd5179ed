// Package goroutine runs background tasks with a concurrency cap and waits for
// them on shutdown.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpreset/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by the CPU count when NewManager receives
// a non-positive limit.
const DefaultMaxGoroutine int = 100

// ErrLimitReached is recorded when a task is refused for lack of capacity.
var ErrLimitReached = errors.New("goroutine: maximum goroutine limit reached")

// Manager runs functions in goroutines with a configurable concurrency limit
// and collects the errors they return.
type Manager struct {
	mu     sync.Mutex
	errs   []error
	wg     sync.WaitGroup
	sema   chan struct{}
	closed bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go runs f in a goroutine unless the manager is closed or full. It reports
// whether f was scheduled. A panic in f is logged and recorded as an error.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager is closed, skipping new goroutine")
		return false
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "maximum goroutine limit reached, failed to start new goroutine")
		g.errs = append(g.errs, ErrLimitReached)
		return false
	}

	g.wg.Go(func() {
		defer func() { <-g.sema }()

		if err := g.run(ctx, f); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	})

	return true
}

func (g *Manager) run(ctx context.Context, f func(ctx context.Context) error) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}

		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic occurred in goroutine", "because", rvr, "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic occurred in goroutine", "because", rvr, "stack", string(stack))
		}
		err = errors.New("goroutine: task panicked")
	}()

	if ctx.Err() != nil {
		slog.WarnContext(ctx, "goroutine canceled before start", "because", ctx.Err())
		return nil
	}

	return f(ctx)
}

// Wait refuses new tasks, blocks until running ones finish and returns the
// collected errors. Context cancellation is not reported as an error.
func (g *Manager) Wait() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for _, err := range g.errs {
		if !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
