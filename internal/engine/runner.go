package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/jmylchreest/nudge/internal/metrics"
	"github.com/jmylchreest/nudge/internal/model"
)

// Feed is a live subscription delivering full snapshots of a user's
// undismissed, unread notifications. Watch blocks until ctx is cancelled or
// the subscription fails.
type Feed interface {
	Watch(ctx context.Context, userID string, fn func([]model.Notification)) error
}

// FeedOptions controls resubscription after a failed subscription.
type FeedOptions struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Factor     float64
	Jitter     bool
}

// DefaultFeedOptions returns the stock resubscription policy.
func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		MinBackoff: 500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		Factor:     2,
		Jitter:     true,
	}
}

// RunFeed subscribes s to feed and reconciles every snapshot until ctx is
// cancelled or the session is closed. A failed subscription keeps the last
// known state and is retried with exponential backoff.
func RunFeed(ctx context.Context, s *Session, feed Feed, opts FeedOptions, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultFeedOptions()
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaults.MinBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.Factor <= 0 {
		opts.Factor = defaults.Factor
	}

	b := &backoff.Backoff{
		Min:    opts.MinBackoff,
		Max:    opts.MaxBackoff,
		Factor: opts.Factor,
		Jitter: opts.Jitter,
	}

	var delivered, closed atomic.Bool
	for {
		err := feed.Watch(ctx, s.UserID(), func(snapshot []model.Notification) {
			res, err := s.Reconcile(snapshot)
			if errors.Is(err, ErrSessionClosed) {
				closed.Store(true)
				return
			}
			delivered.Store(true)
			logger.Debug("feed snapshot",
				"size", len(snapshot),
				"added", len(res.Added),
				"ineligible", res.Ineligible,
			)
		})

		if ctx.Err() != nil || closed.Load() {
			return nil
		}
		if delivered.Swap(false) {
			b.Reset()
		}

		metrics.RecordFeedError()
		wait := b.Duration()
		if err != nil {
			logger.Warn("feed subscription failed", "error", err, "retry_in", wait)
		} else {
			logger.Warn("feed subscription ended", "retry_in", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
