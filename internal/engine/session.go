// Package engine drives the presentation of queued engagement notifications:
// one displayed slot, an auto-dismiss countdown, an exit transition and the
// hand-off of dismissals and actions to remote collaborators.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/nudge/internal/metrics"
	"github.com/jmylchreest/nudge/internal/model"
	"github.com/jmylchreest/nudge/internal/queue"
)

// Default timings.
const (
	DefaultCountdown           = 5000 * time.Millisecond
	DefaultProgressInterval    = 50 * time.Millisecond
	DefaultExitDuration        = 500 * time.Millisecond
	DefaultCelebrationDuration = 3000 * time.Millisecond
	DefaultRecentDismissTTL    = 10 * time.Minute
)

// Session errors.
var (
	ErrSessionClosed = errors.New("session is closed")
	ErrEmptyUserID   = errors.New("session requires a user id")
	ErrNothingShown  = errors.New("no notification is being shown")
	ErrNotDisplayed  = errors.New("notification is neither displayed nor pending")
)

// Config holds the per-session timings.
type Config struct {
	UserID              string
	Countdown           time.Duration // Auto-dismiss deadline after a notification is shown
	ProgressInterval    time.Duration // Progress sampling interval, display only
	ExitDuration        time.Duration // Exit transition length
	CelebrationDuration time.Duration // Celebration effect length for achievements and rewards
	RecentDismissTTL    time.Duration // How long a dismissed id is refused if the feed keeps delivering it
}

// DefaultConfig returns the reference timings for userID.
func DefaultConfig(userID string) Config {
	return Config{
		UserID:              userID,
		Countdown:           DefaultCountdown,
		ProgressInterval:    DefaultProgressInterval,
		ExitDuration:        DefaultExitDuration,
		CelebrationDuration: DefaultCelebrationDuration,
		RecentDismissTTL:    DefaultRecentDismissTTL,
	}
}

func (c *Config) applyDefaults() {
	if c.Countdown <= 0 {
		c.Countdown = DefaultCountdown
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	if c.ExitDuration <= 0 {
		c.ExitDuration = DefaultExitDuration
	}
	if c.CelebrationDuration <= 0 {
		c.CelebrationDuration = DefaultCelebrationDuration
	}
	if c.RecentDismissTTL < 0 {
		c.RecentDismissTTL = DefaultRecentDismissTTL
	}
}

// Dismisser is handed every locally applied dismissal.
// Implementations must return without waiting on the network.
type Dismisser interface {
	Dismiss(id string)
}

// ActionHandler performs the action embedded in an activated notification.
type ActionHandler interface {
	Dispatch(ctx context.Context, n model.Notification)
}

// Options wires a session to its collaborators. All fields are optional.
type Options struct {
	Clock     Clock
	Dismisser Dismisser
	Actions   ActionHandler
	Logger    *slog.Logger
}

// Session owns the pending queue, the displayed slot and the timers for
// one authenticated user. Construct a new session per user and Close it on
// logout.
type Session struct {
	cfg       Config
	clock     Clock
	dismisser Dismisser
	actions   ActionHandler
	logger    *slog.Logger

	mu          sync.Mutex
	queue       *queue.Queue
	tombstones  *queue.Tombstones
	state       State
	current     *model.Notification
	deadline    time.Time
	celebrating bool
	gen         uint64 // bumped on every slot transition; stale timer callbacks compare against it

	countdown   Timer
	ticker      Timer
	celebration Timer
	exit        Timer

	subscribers []chan Event
	closed      bool
}

// NewSession creates an idle session for cfg.UserID.
func NewSession(cfg Config, opts Options) (*Session, error) {
	if cfg.UserID == "" {
		return nil, ErrEmptyUserID
	}
	cfg.applyDefaults()

	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Session{
		cfg:        cfg,
		clock:      opts.Clock,
		dismisser:  opts.Dismisser,
		actions:    opts.Actions,
		logger:     opts.Logger.With("user", cfg.UserID),
		queue:      queue.New(),
		tombstones: queue.NewTombstones(cfg.RecentDismissTTL),
		state:      StateIdle,
	}, nil
}

// UserID returns the user this session presents notifications for.
func (s *Session) UserID() string {
	return s.cfg.UserID
}

// Reconcile merges a full feed snapshot into the pending queue and, if
// nothing is on screen, promotes the oldest pending notification.
func (s *Session) Reconcile(snapshot []model.Notification) (queue.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return queue.Result{}, ErrSessionClosed
	}

	now := s.clock.Now()
	displayedID := ""
	if s.current != nil {
		displayedID = s.current.ID
	}

	res := queue.Reconcile(s.queue, snapshot, queue.Options{
		UserID:      s.cfg.UserID,
		DisplayedID: displayedID,
		Tombstones:  s.tombstones,
		Now:         now,
	})

	metrics.RecordSnapshot()
	if len(res.Added) > 0 {
		metrics.RecordAdmitted(len(res.Added))
		s.logger.Debug("queued notifications",
			"added", len(res.Added),
			"pending", s.queue.Len(),
			"state", s.state,
		)
		s.publishLocked(Event{Type: EventQueueChanged}, now)
	}
	metrics.SetPending(s.queue.Len())

	s.showNextLocked(now)
	return res, nil
}

// Dismiss dismisses id whether it is on screen or still pending.
// Dismissing the notification that is already exiting is a no-op.
func (s *Session) Dismiss(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	now := s.clock.Now()
	switch {
	case s.current != nil && s.current.ID == id && s.state == StateShowing:
		s.beginExitLocked(ReasonManual, now)
	case s.current != nil && s.current.ID == id:
		s.mu.Unlock()
		return nil
	case s.queue.Remove(id):
		s.tombstones.Add(id, now)
		metrics.RecordDismissed(string(ReasonManual))
		metrics.SetPending(s.queue.Len())
		s.publishLocked(Event{Type: EventQueueChanged}, now)
		s.logger.Debug("dismissed pending notification", "id", id)
	default:
		s.mu.Unlock()
		return ErrNotDisplayed
	}
	s.mu.Unlock()

	s.handOff(id)
	return nil
}

// Activate performs the action of the displayed notification id and then
// dismisses it exactly as a manual dismiss would. It returns ErrNotDisplayed
// when a different notification is showing.
func (s *Session) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateShowing || s.current == nil {
		s.mu.Unlock()
		return ErrNothingShown
	}
	if s.current.ID != id {
		s.mu.Unlock()
		return ErrNotDisplayed
	}
	n := s.current.Clone()
	s.beginExitLocked(ReasonActivated, s.clock.Now())
	s.mu.Unlock()

	if s.actions != nil {
		s.actions.Dispatch(ctx, n)
	}
	s.handOff(id)
	return nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := Status{
		State:       s.state,
		Progress:    s.progressLocked(now),
		Celebrating: s.celebrating,
		Pending:     s.queue.IDs(),
		Tombstones:  s.tombstones.Len(),
	}
	if s.current != nil {
		n := s.current.Clone()
		st.Current = &n
		if s.state == StateShowing {
			st.Deadline = s.deadline
		}
	}
	return st
}

// Subscribe returns a channel receiving session events. Events are dropped
// for subscribers that fall behind.
func (s *Session) Subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, 64)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Session) Unsubscribe(ch <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close cancels every timer, forgets all queued and displayed state and
// closes subscriber channels. Further calls return ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.gen++

	s.stopTimersLocked()
	s.queue.Clear()
	s.tombstones.Clear()
	s.current = nil
	s.celebrating = false
	s.state = StateIdle
	metrics.SetPending(0)

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil

	s.logger.Debug("session closed")
	return nil
}

// showNextLocked promotes the queue head when idle. Caller must hold the lock.
func (s *Session) showNextLocked(now time.Time) {
	if s.closed || s.state != StateIdle {
		return
	}
	n, ok := s.queue.PopFront()
	if !ok {
		return
	}

	s.gen++
	gen := s.gen
	s.current = &n
	s.state = StateShowing
	s.deadline = now.Add(s.cfg.Countdown)

	s.countdown = s.clock.AfterFunc(s.cfg.Countdown, func() { s.onDeadline(gen) })
	s.ticker = s.clock.AfterFunc(s.cfg.ProgressInterval, func() { s.onTick(gen) })

	metrics.RecordShown(string(n.Type))
	metrics.SetPending(s.queue.Len())
	s.logger.Debug("showing notification",
		"id", n.ID,
		"type", n.Type,
		"pending", s.queue.Len(),
	)

	s.publishLocked(Event{Type: EventShown}, now)

	if n.Celebrates() {
		s.celebrating = true
		s.celebration = s.clock.AfterFunc(s.cfg.CelebrationDuration, func() { s.onCelebrationEnd(gen) })
		s.publishLocked(Event{Type: EventCelebrationStarted}, now)
	}

	s.publishLocked(Event{Type: EventQueueChanged}, now)
}

// beginExitLocked moves Showing to Exiting, records the tombstone and
// invalidates the countdown. Caller must hold the lock and hand the
// returned id to the dismisser after releasing it.
func (s *Session) beginExitLocked(reason DismissReason, now time.Time) string {
	id := s.current.ID

	stopTimer(&s.countdown)
	stopTimer(&s.ticker)
	s.endCelebrationLocked(now)

	s.gen++
	gen := s.gen
	s.state = StateExiting
	s.tombstones.Add(id, now)
	s.exit = s.clock.AfterFunc(s.cfg.ExitDuration, func() { s.onExitDone(gen) })

	metrics.RecordDismissed(string(reason))
	s.logger.Debug("dismissing notification", "id", id, "reason", reason)

	s.publishLocked(Event{Type: EventExiting, Reason: reason}, now)
	return id
}

func (s *Session) endCelebrationLocked(now time.Time) {
	if !s.celebrating {
		return
	}
	stopTimer(&s.celebration)
	s.celebrating = false
	s.publishLocked(Event{Type: EventCelebrationEnded}, now)
}

func (s *Session) onDeadline(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != StateShowing {
		s.mu.Unlock()
		return
	}
	id := s.beginExitLocked(ReasonTimeout, s.clock.Now())
	s.mu.Unlock()

	s.handOff(id)
}

func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || s.state != StateShowing {
		return
	}
	now := s.clock.Now()
	s.publishLocked(Event{Type: EventProgress}, now)
	// The deadline timer alone ends the countdown.
	s.ticker = s.clock.AfterFunc(s.cfg.ProgressInterval, func() { s.onTick(gen) })
}

func (s *Session) onCelebrationEnd(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || !s.celebrating {
		return
	}
	s.celebration = nil
	s.endCelebrationLocked(s.clock.Now())
}

func (s *Session) onExitDone(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen || s.state != StateExiting {
		return
	}
	now := s.clock.Now()
	s.exit = nil
	s.current = nil
	s.state = StateIdle
	s.publishLocked(Event{Type: EventCleared}, now)

	s.showNextLocked(now)
}

// handOff passes a dismissal to the dismisser. Never called with the lock held.
func (s *Session) handOff(id string) {
	if s.dismisser != nil {
		s.dismisser.Dismiss(id)
	}
}

func (s *Session) progressLocked(now time.Time) float64 {
	if s.state != StateShowing {
		return 0
	}
	remaining := s.deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	p := 100 * float64(remaining) / float64(s.cfg.Countdown)
	if p > 100 {
		return 100
	}
	return p
}

func (s *Session) stopTimersLocked() {
	stopTimer(&s.countdown)
	stopTimer(&s.ticker)
	stopTimer(&s.celebration)
	stopTimer(&s.exit)
}

// publishLocked fills in the session view and sends ev without blocking.
func (s *Session) publishLocked(ev Event, now time.Time) {
	ev.State = s.state
	ev.Progress = s.progressLocked(now)
	ev.Pending = s.queue.Len()
	ev.At = now
	if s.current != nil {
		n := s.current.Clone()
		ev.Notification = &n
	}

	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber is behind, skip
		}
	}
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
