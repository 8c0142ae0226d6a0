package engine

import (
	"time"

	"github.com/jmylchreest/nudge/internal/model"
)

// State is the presentation state of a session.
type State int

const (
	// StateIdle means nothing is on screen.
	StateIdle State = iota
	// StateShowing means a notification is on screen and counting down.
	StateShowing
	// StateExiting means the displayed notification is playing its exit transition.
	StateExiting
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShowing:
		return "showing"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// EventType indicates what changed in a session.
type EventType int

const (
	// EventShown signals a notification entered the display slot.
	EventShown EventType = iota
	// EventProgress carries a countdown progress sample.
	EventProgress
	// EventCelebrationStarted signals the celebration effect began.
	EventCelebrationStarted
	// EventCelebrationEnded signals the celebration effect ended.
	EventCelebrationEnded
	// EventExiting signals the displayed notification started its exit transition.
	EventExiting
	// EventCleared signals the display slot was emptied.
	EventCleared
	// EventQueueChanged signals the pending queue length changed.
	EventQueueChanged
)

// String returns the string representation of EventType.
func (t EventType) String() string {
	switch t {
	case EventShown:
		return "shown"
	case EventProgress:
		return "progress"
	case EventCelebrationStarted:
		return "celebration_started"
	case EventCelebrationEnded:
		return "celebration_ended"
	case EventExiting:
		return "exiting"
	case EventCleared:
		return "cleared"
	case EventQueueChanged:
		return "queue_changed"
	default:
		return "unknown"
	}
}

// DismissReason records why a notification left the Showing state.
type DismissReason string

const (
	ReasonTimeout   DismissReason = "timeout"
	ReasonManual    DismissReason = "manual"
	ReasonActivated DismissReason = "activated"
)

// Event is published to session subscribers.
type Event struct {
	Type         EventType
	State        State
	Notification *model.Notification // Displayed notification, nil when none
	Progress     float64             // Remaining countdown, 100 down to 0
	Pending      int                 // Pending queue length
	Reason       DismissReason       // Set on EventExiting
	At           time.Time
}

// Status is a point-in-time view of a session.
type Status struct {
	State       State
	Current     *model.Notification
	Progress    float64
	Deadline    time.Time
	Celebrating bool
	Pending     []string
	Tombstones  int
}
