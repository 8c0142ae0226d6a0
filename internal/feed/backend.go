// Package feed defines the contract between the engine and the remote
// source of truth for engagement notifications.
package feed

import (
	"context"
	"errors"
	"sort"

	"github.com/jmylchreest/nudge/internal/model"
)

// Backend names.
const (
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Backends returns the supported backend names.
func Backends() []string {
	return []string{BackendFile, BackendRedis, BackendFirestore}
}

// ErrNotFound is returned when an operation names an unknown notification.
var ErrNotFound = errors.New("notification not found")

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("backend is closed")

// Backend is a remote notification store. It is the Event Feed, the
// Dismissal Sink, the Event Producer entry point and the reward claim
// hand-off in one.
type Backend interface {
	// Watch delivers full snapshots of userID's undismissed, unread
	// notifications ordered by creation time. It blocks until ctx is
	// cancelled or the subscription fails.
	Watch(ctx context.Context, userID string, fn func([]model.Notification)) error

	// List returns a single snapshot.
	List(ctx context.Context, userID string) ([]model.Notification, error)

	// Dismiss durably marks id as dismissed. Dismissing twice is harmless.
	Dismiss(ctx context.Context, id string) error

	// Create stores a new notification for userID and returns its id.
	Create(ctx context.Context, userID string, p model.Payload) (string, error)

	// Claim hands the reward carried by n to the gamification subsystem.
	Claim(ctx context.Context, n model.Notification) error

	// Close releases connections and watchers.
	Close() error
}

// BackendError wraps a failure from a specific backend operation.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return e.Backend + ": " + e.Op + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *BackendError, or nil if err is nil.
func Wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}

// Snapshot filters ns to userID's pending notifications, oldest first.
func Snapshot(ns []model.Notification, userID string) []model.Notification {
	out := make([]model.Notification, 0, len(ns))
	for i := range ns {
		if ns[i].UserID != userID || !ns[i].Pending() {
			continue
		}
		out = append(out, ns[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Claim is the record a backend stores when a reward is claimed.
type Claim struct {
	NotificationID string        `json:"notificationId" firestore:"notificationId"`
	UserID         string        `json:"userId" firestore:"userId"`
	Type           model.Type    `json:"type" firestore:"type"`
	Reward         *model.Reward `json:"reward,omitempty" firestore:"reward,omitempty"`
	ClaimedAt      int64         `json:"claimedAt" firestore:"claimedAt"`
}

// NewClaim builds the claim record for n.
func NewClaim(n model.Notification, claimedAt int64) Claim {
	return Claim{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Reward:         n.Reward,
		ClaimedAt:      claimedAt,
	}
}
