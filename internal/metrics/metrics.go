// Package metrics exposes Prometheus instrumentation for the notification engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dismissal reasons.
const (
	ReasonTimeout   = "timeout"
	ReasonManual    = "manual"
	ReasonActivated = "activated"
)

var (
	notificationsShown = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_notifications_shown_total",
			Help: "Notifications promoted to the display slot by type",
		},
		[]string{"type"},
	)

	notificationsDismissed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_notifications_dismissed_total",
			Help: "Notifications dismissed locally by reason",
		},
		[]string{"reason"},
	)

	notificationsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_notifications_admitted_total",
			Help: "Notifications appended to the pending queue",
		},
	)

	snapshotsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_feed_snapshots_total",
			Help: "Feed snapshots reconciled",
		},
	)

	feedErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_feed_errors_total",
			Help: "Feed subscription failures",
		},
	)

	sinkCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_sink_dismiss_total",
			Help: "Remote dismissal calls by result",
		},
		[]string{"result"},
	)

	sinkLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nudge_sink_dismiss_duration_seconds",
			Help:    "Remote dismissal call latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		},
	)

	actionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_actions_dispatched_total",
			Help: "Activated notification actions by kind and result",
		},
		[]string{"kind", "result"},
	)

	pendingQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nudge_pending_queue_length",
			Help: "Notifications waiting for display",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordShown records a notification entering the display slot
func RecordShown(notificationType string) {
	notificationsShown.WithLabelValues(notificationType).Inc()
}

// RecordDismissed records a local dismissal
func RecordDismissed(reason string) {
	notificationsDismissed.WithLabelValues(reason).Inc()
}

// RecordAdmitted records notifications appended by a reconcile
func RecordAdmitted(count int) {
	notificationsAdmitted.Add(float64(count))
}

// RecordSnapshot records a reconciled feed snapshot
func RecordSnapshot() {
	snapshotsReceived.Inc()
}

// RecordFeedError records a failed or dropped subscription
func RecordFeedError() {
	feedErrors.Inc()
}

// RecordSinkCall records the outcome of a remote dismissal
func RecordSinkCall(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sinkCalls.WithLabelValues(result).Inc()
	sinkLatency.Observe(duration.Seconds())
}

// RecordAction records an action dispatch
func RecordAction(kind, result string) {
	actionsDispatched.WithLabelValues(kind, result).Inc()
}

// SetPending sets the pending queue length
func SetPending(count int) {
	pendingQueue.Set(float64(count))
}
