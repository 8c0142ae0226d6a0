package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/nudge/internal/metrics"
)

// DefaultDismissTimeout bounds a single remote dismissal call.
const DefaultDismissTimeout = 10 * time.Second

// Sink durably marks a notification as dismissed. Dismissing twice is harmless.
type Sink interface {
	Dismiss(ctx context.Context, id string) error
}

// Coordinator issues fire-and-forget dismissals against a Sink.
// Failures are logged and counted; nothing is retried and nothing is
// resurfaced.
type Coordinator struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewCoordinator creates a Coordinator. A non-positive timeout uses
// DefaultDismissTimeout.
func NewCoordinator(sink Sink, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultDismissTimeout
	}
	return &Coordinator{
		sink:    sink,
		timeout: timeout,
		logger:  logger,
	}
}

// Dismiss returns immediately; the sink call runs in the background.
func (c *Coordinator) Dismiss(id string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		start := time.Now()
		err := c.sink.Dismiss(ctx, id)
		metrics.RecordSinkCall(err, time.Since(start))

		if err != nil {
			c.logger.Warn("remote dismissal failed", "id", id, "error", err)
			return
		}
		c.logger.Debug("remote dismissal complete", "id", id, "duration", time.Since(start))
	}()
}

// Wait blocks until in-flight dismissals have finished or timed out.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
