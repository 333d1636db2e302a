package async

import (
	"context"
	"time"

	"github.com/platinummonkey/workspaces/pkg/observability"
)

// SafeGo executes fn in a goroutine with a timeout, panic recovery and
// error logging. Use it instead of a bare `go func()` for background work
// that must never crash the process. The returned channel is closed when fn
// has returned.
//
// Example:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "hydrate user", func(ctx context.Context) error {
//	    return manager.Hydrate(ctx, userID)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	done := make(chan struct{})

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
		}
	}()

	return done
}
