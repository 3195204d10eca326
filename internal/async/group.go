package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single unit of background work.
const DefaultTimeout = 30 * time.Second

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Group runs tasks detached from the request that spawned them. Failures and
// panics are logged and dropped; nothing is retried.
type Group struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *zap.Logger
}

// NewGroup builds a Group. A non-positive timeout selects DefaultTimeout.
func NewGroup(timeout time.Duration, logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Group{timeout: timeout, logger: logger}
}

// Go starts task in its own goroutine. The task context keeps the values of
// parent but not its cancellation, so it outlives the HTTP request.
func (g *Group) Go(parent context.Context, name string, task Task) {
	g.wg.Add(1)

	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), g.timeout)
		defer cancel()

		start := time.Now()
		if err := g.run(ctx, task); err != nil {
			g.logger.Error("background task failed",
				zap.String("task", name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return
		}

		g.logger.Debug("background task finished",
			zap.String("task", name),
			zap.Duration("duration", time.Since(start)))
	}()
}

func (g *Group) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// Wait blocks until every started task has returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
