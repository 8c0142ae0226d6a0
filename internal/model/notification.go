// Package model defines the core data structures for nudge.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type is the engagement event variant.
type Type string

const (
	TypeAchievement Type = "achievement"
	TypeReward      Type = "reward"
	TypeStreak      Type = "streak"
	TypeReferral    Type = "referral"
	TypeSuggestion  Type = "suggestion"
	TypeMilestone   Type = "milestone"
	TypeChallenge   Type = "challenge"
)

// Types returns all known notification types.
func Types() []Type {
	return []Type{
		TypeAchievement,
		TypeReward,
		TypeStreak,
		TypeReferral,
		TypeSuggestion,
		TypeMilestone,
		TypeChallenge,
	}
}

// Known reports whether t is one of the closed set of types.
// Unknown types are still queued and shown with a generic presentation.
func (t Type) Known() bool {
	for _, k := range Types() {
		if t == k {
			return true
		}
	}
	return false
}

// Priority is informational only; the queue orders by creation time.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RewardKind identifies what a reward grants.
type RewardKind string

const (
	RewardXP      RewardKind = "xp"
	RewardPoints  RewardKind = "points"
	RewardFeature RewardKind = "feature"
	RewardBadge   RewardKind = "badge"
)

// Reward describes what the user earned.
type Reward struct {
	Kind   RewardKind `json:"kind" yaml:"kind" firestore:"kind"`
	Amount *float64   `json:"amount,omitempty" yaml:"amount,omitempty" firestore:"amount,omitempty"`
	Item   string     `json:"item,omitempty" yaml:"item,omitempty" firestore:"item,omitempty"`
}

// String renders the reward for display, e.g. "+50 xp" or "badge: Early Bird".
func (r *Reward) String() string {
	if r == nil {
		return ""
	}
	switch {
	case r.Amount != nil && r.Item != "":
		return fmt.Sprintf("+%g %s (%s)", *r.Amount, r.Kind, r.Item)
	case r.Amount != nil:
		return fmt.Sprintf("+%g %s", *r.Amount, r.Kind)
	case r.Item != "":
		return fmt.Sprintf("%s: %s", r.Kind, r.Item)
	default:
		return string(r.Kind)
	}
}

// ActionKind identifies what clicking a notification does.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionShare    ActionKind = "share"
	ActionTryTool  ActionKind = "try_tool"
	ActionInvite   ActionKind = "invite"
	ActionClaim    ActionKind = "claim"
)

// Action is the effect embedded in a notification.
type Action struct {
	Kind        ActionKind `json:"kind" yaml:"kind" firestore:"kind"`
	Destination string     `json:"destination,omitempty" yaml:"destination,omitempty" firestore:"destination,omitempty"`
	ToolID      string     `json:"toolId,omitempty" yaml:"toolId,omitempty" firestore:"toolId,omitempty"`
}

// Notification represents one engagement event.
// Read and Dismissed are owned by the remote source of truth.
type Notification struct {
	ID        string     `json:"id" yaml:"id" firestore:"-"`
	UserID    string     `json:"userId" yaml:"userId" firestore:"userId"`
	Type      Type       `json:"type" yaml:"type" firestore:"type"`
	Title     string     `json:"title" yaml:"title" firestore:"title"`
	Message   string     `json:"message" yaml:"message" firestore:"message"`
	Reward    *Reward    `json:"reward,omitempty" yaml:"reward,omitempty" firestore:"reward,omitempty"`
	Action    *Action    `json:"action,omitempty" yaml:"action,omitempty" firestore:"action,omitempty"`
	Priority  Priority   `json:"priority" yaml:"priority" firestore:"priority"`
	Read      bool       `json:"read" yaml:"read" firestore:"read"`
	Dismissed bool       `json:"dismissed" yaml:"dismissed" firestore:"dismissed"`
	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt" firestore:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty" firestore:"expiresAt,omitempty"`
}

// Payload is what an Event Producer supplies. The producer assigns
// the id, owner, read/dismissed flags and creation time.
type Payload struct {
	Type      Type       `json:"type" yaml:"type"`
	Title     string     `json:"title" yaml:"title"`
	Message   string     `json:"message" yaml:"message"`
	Reward    *Reward    `json:"reward,omitempty" yaml:"reward,omitempty"`
	Action    *Action    `json:"action,omitempty" yaml:"action,omitempty"`
	Priority  Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID       = errors.New("id cannot be empty")
	ErrEmptyUserID   = errors.New("userId cannot be empty")
	ErrEmptyTitle    = errors.New("title cannot be empty")
	ErrZeroCreatedAt = errors.New("createdAt must be set")
)

// NewID generates a new lexically sortable notification id.
func NewID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// Validate checks the fields every queued notification needs.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.UserID == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if n.CreatedAt.IsZero() {
		return ErrZeroCreatedAt
	}
	return nil
}

// Validate checks a producer payload.
func (p *Payload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Materialize turns a payload into a fresh, unread notification.
func (p Payload) Materialize(id, userID string, createdAt time.Time) Notification {
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	return Notification{
		ID:        id,
		UserID:    userID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Reward:    p.Reward,
		Action:    p.Action,
		Priority:  priority,
		CreatedAt: createdAt,
		ExpiresAt: p.ExpiresAt,
	}
}

// Pending reports whether the notification is still eligible for display.
func (n *Notification) Pending() bool {
	return !n.Read && !n.Dismissed
}

// Celebrates reports whether showing n attaches the celebration effect.
func (n *Notification) Celebrates() bool {
	return n.Type == TypeAchievement || n.Type == TypeReward
}

// Clone creates a deep copy of the notification.
func (n *Notification) Clone() Notification {
	clone := *n
	if n.Reward != nil {
		r := *n.Reward
		if n.Reward.Amount != nil {
			amount := *n.Reward.Amount
			r.Amount = &amount
		}
		clone.Reward = &r
	}
	if n.Action != nil {
		a := *n.Action
		clone.Action = &a
	}
	if n.ExpiresAt != nil {
		e := *n.ExpiresAt
		clone.ExpiresAt = &e
	}
	return clone
}

// MessageTruncated returns the message collapsed to one line and cut to maxLen.
func (n *Notification) MessageTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	msg := strings.Join(strings.Fields(n.Message), " ")

	if len(msg) <= maxLen {
		return msg
	}
	if maxLen <= 3 {
		return msg[:maxLen]
	}
	return msg[:maxLen-3] + "..."
}
