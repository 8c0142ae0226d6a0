// Package presenter renders session events as structured log lines for
// headless runs.
package presenter

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/nudge/internal/engine"
)

// Log writes one record per session event. Progress samples are logged at
// debug level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log presenter.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Run consumes events until ctx is done or events is closed.
func (l *Log) Run(ctx context.Context, events <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			l.Handle(ev)
		}
	}
}

// Handle logs a single event.
func (l *Log) Handle(ev engine.Event) {
	attrs := []any{"event", ev.Type.String(), "state", ev.State.String(), "pending", ev.Pending}
	if n := ev.Notification; n != nil {
		attrs = append(attrs,
			"id", n.ID,
			"type", string(n.Type),
			"title", n.Title,
			"age", humanize.Time(n.CreatedAt),
		)
		if reward := n.Reward.String(); reward != "" {
			attrs = append(attrs, "reward", reward)
		}
	}

	switch ev.Type {
	case engine.EventProgress:
		l.logger.Debug("countdown", append(attrs, "progress", ev.Progress)...)
	case engine.EventExiting:
		l.logger.Info("notification leaving", append(attrs, "reason", string(ev.Reason))...)
	case engine.EventShown:
		l.logger.Info("notification shown", attrs...)
	case engine.EventCelebrationStarted:
		l.logger.Info("celebration started", attrs...)
	default:
		l.logger.Debug("session event", attrs...)
	}
}
