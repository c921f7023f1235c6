package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/secmon-lab/riskmap/pkg/utils/apperr"
)

// Dispatch runs handler in a new goroutine with a background context that
// keeps the caller's logger. The caller's cancellation does not reach the
// handler. Errors and panics are logged, never returned.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx, name)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(newCtx).Error("Panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()),
				)
			}
		}()

		start := time.Now()
		if err := handler(newCtx); err != nil {
			apperr.Handle(newCtx, err)
			return
		}
		ctxlog.From(newCtx).Debug("Async handler completed", "duration", time.Since(start))
	}()
}

func newBackgroundContext(ctx context.Context, name string) context.Context {
	logger := ctxlog.From(ctx).With("task", name)
	return ctxlog.With(context.Background(), logger)
}
