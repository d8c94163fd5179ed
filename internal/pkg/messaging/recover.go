package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/otpreset/internal/pkg/stacktrace"
)

// handle runs handler and turns a panic into an error.
func handle(ctx context.Context, driver string, handler Handler, d Delivery) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}

		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "topic", d.Topic, "panic", rvr, "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "topic", d.Topic, "panic", rvr, "stack", string(stack))
		}
		err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
	}()

	return handler(ctx, d)
}
