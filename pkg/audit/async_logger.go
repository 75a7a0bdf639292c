package audit

import (
	"context"
	"sync"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/async"
	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// AsyncLogger moves writes to the wrapped sink onto a worker pool. When
// the queue is full the event is written inline instead of being dropped.
type AsyncLogger struct {
	next   Logger
	pool   *async.WorkerPool
	logger *observability.Logger
	done   chan struct{}
	once   sync.Once
}

// NewAsyncLogger wraps next with a pool of workers
func NewAsyncLogger(next Logger, logger *observability.Logger, workers, queueSize int, timeout time.Duration) *AsyncLogger {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	a := &AsyncLogger{
		next:   next,
		logger: logger,
		done:   make(chan struct{}),
		pool:   async.NewWorkerPool(context.Background(), logger, workers, queueSize, "audit", timeout),
	}
	go a.drainErrors()
	return a
}

// Log queues the event. The request context is not propagated because
// the write usually outlives the request.
func (a *AsyncLogger) Log(ctx context.Context, event *Event) error {
	err := a.pool.TrySubmit(func(taskCtx context.Context) error {
		return a.next.Log(taskCtx, event)
	})
	if err != nil {
		return a.next.Log(context.WithoutCancel(ctx), event)
	}
	return nil
}

// Close drains queued events and closes the wrapped sink
func (a *AsyncLogger) Close() error {
	var err error
	a.once.Do(func() {
		if shutdownErr := a.pool.Shutdown(10 * time.Second); shutdownErr != nil {
			a.logger.WithError(shutdownErr).Warn("Audit queue did not drain")
		}
		close(a.done)
		err = a.next.Close()
	})
	return err
}

func (a *AsyncLogger) drainErrors() {
	for {
		select {
		case err := <-a.pool.Errors():
			a.logger.WithError(err).Warn("Failed to record audit event")
		case <-a.done:
			return
		}
	}
}
