// Package desktop mirrors the displayed notification onto the
// org.freedesktop.Notifications D-Bus service.
package desktop

import (
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/nudge/internal/model"
)

// D-Bus names of the freedesktop notification service.
const (
	DBusName      = "org.freedesktop.Notifications"
	DBusPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	DBusInterface = "org.freedesktop.Notifications"

	signalActionInvoked      = DBusInterface + ".ActionInvoked"
	signalNotificationClosed = DBusInterface + ".NotificationClosed"
)

// Action keys attached to every request.
const (
	ActionKeyDefault = "default"
	ActionKeyDismiss = "dismiss"
)

// Urgency levels defined by the notification specification.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the notifications protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Request holds the arguments of a Notify call.
type Request struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Args returns the request in Notify argument order.
func (r Request) Args() []interface{} {
	actions := r.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := r.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	return []interface{}{
		r.AppName,
		r.ReplacesID,
		r.AppIcon,
		r.Summary,
		r.Body,
		actions,
		hints,
		r.ExpireTimeout,
	}
}

// Urgency returns the urgency hint, UrgencyNormal if absent.
func (r Request) Urgency() byte {
	if v, ok := r.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return UrgencyNormal
}

// Category returns the category hint.
func (r Request) Category() string {
	if v, ok := r.Hints["category"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// BuildRequest maps n onto a Notify call. The session owns timing, so the
// request never expires on its own.
func BuildRequest(n *model.Notification, appName, icon string) Request {
	body := n.Message
	if reward := n.Reward.String(); reward != "" {
		if body != "" {
			body += "\n"
		}
		body += reward
	}

	actions := []string{}
	if n.Action != nil {
		actions = append(actions, ActionKeyDefault, actionLabel(n.Action.Kind))
	}
	actions = append(actions, ActionKeyDismiss, "Dismiss")

	return Request{
		AppName: appName,
		AppIcon: icon,
		Summary: n.Title,
		Body:    body,
		Actions: actions,
		Hints: map[string]dbus.Variant{
			"urgency":   dbus.MakeVariant(urgency(n.Priority)),
			"category":  dbus.MakeVariant("x-nudge." + string(n.Type)),
			"transient": dbus.MakeVariant(true),
		},
		ExpireTimeout: 0,
	}
}

func urgency(p model.Priority) byte {
	switch p {
	case model.PriorityLow:
		return UrgencyLow
	case model.PriorityHigh:
		return UrgencyCritical
	default:
		return UrgencyNormal
	}
}

func actionLabel(kind model.ActionKind) string {
	switch kind {
	case model.ActionClaim:
		return "Claim"
	case model.ActionTryTool:
		return "Try it"
	case model.ActionInvite:
		return "Invite"
	case model.ActionShare:
		return "Share"
	default:
		return "Open"
	}
}

// signalEvent is a decoded notification service signal.
type signalEvent struct {
	ID        uint32
	ActionKey string      // Set for ActionInvoked
	Reason    CloseReason // Set for NotificationClosed
	Closed    bool
}

// parseSignal decodes ActionInvoked and NotificationClosed signals.
func parseSignal(sig *dbus.Signal) (signalEvent, bool) {
	if sig == nil || len(sig.Body) < 2 {
		return signalEvent{}, false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return signalEvent{}, false
	}

	switch {
	case strings.EqualFold(sig.Name, signalActionInvoked):
		key, ok := sig.Body[1].(string)
		if !ok {
			return signalEvent{}, false
		}
		return signalEvent{ID: id, ActionKey: key}, true
	case strings.EqualFold(sig.Name, signalNotificationClosed):
		reason, ok := sig.Body[1].(uint32)
		if !ok {
			return signalEvent{}, false
		}
		return signalEvent{ID: id, Reason: CloseReason(reason), Closed: true}, true
	default:
		return signalEvent{}, false
	}
}
