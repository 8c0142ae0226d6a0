package engine

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/nudge/internal/metrics"
	"github.com/jmylchreest/nudge/internal/model"
)

// Router navigates the host application to an in-app path.
type Router interface {
	Navigate(ctx context.Context, path string) error
}

// Claimer hands a reward claim off to the gamification subsystem.
type Claimer interface {
	Claim(ctx context.Context, n model.Notification) error
}

// RoutePaths maps action kinds without an explicit destination to paths.
type RoutePaths struct {
	ToolsPrefix string // Prefix joined with Action.ToolID for try_tool
	Referral    string // Destination for invite
}

// DefaultRoutePaths returns the stock routes.
func DefaultRoutePaths() RoutePaths {
	return RoutePaths{
		ToolsPrefix: "/tools/",
		Referral:    "/referrals",
	}
}

// Dispatcher translates an action kind into a Router or Claimer call.
// It never fails the caller: errors are logged and the dismissal that
// follows activation proceeds regardless.
type Dispatcher struct {
	router  Router
	claimer Claimer
	paths   RoutePaths
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. router and claimer may be nil, in
// which case the matching kinds become no-ops.
func NewDispatcher(router Router, claimer Claimer, paths RoutePaths, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRoutePaths()
	if paths.ToolsPrefix == "" {
		paths.ToolsPrefix = defaults.ToolsPrefix
	}
	if paths.Referral == "" {
		paths.Referral = defaults.Referral
	}
	return &Dispatcher{
		router:  router,
		claimer: claimer,
		paths:   paths,
		logger:  logger,
	}
}

// Resolve returns the path a navigating action leads to.
// ok is false for kinds that do not navigate and for empty targets.
func (d *Dispatcher) Resolve(a *model.Action) (string, bool) {
	if a == nil {
		return "", false
	}
	switch a.Kind {
	case model.ActionNavigate:
		return a.Destination, a.Destination != ""
	case model.ActionTryTool:
		if a.ToolID == "" {
			return "", false
		}
		return d.paths.ToolsPrefix + a.ToolID, true
	case model.ActionInvite:
		return d.paths.Referral, d.paths.Referral != ""
	default:
		return "", false
	}
}

// Dispatch performs n's action.
func (d *Dispatcher) Dispatch(ctx context.Context, n model.Notification) {
	if n.Action == nil {
		d.logger.Debug("notification has no action", "id", n.ID)
		return
	}
	kind := string(n.Action.Kind)

	switch n.Action.Kind {
	case model.ActionNavigate, model.ActionTryTool, model.ActionInvite:
		path, ok := d.Resolve(n.Action)
		if !ok || d.router == nil {
			d.logger.Debug("action has no route", "id", n.ID, "kind", kind)
			metrics.RecordAction(kind, "noop")
			return
		}
		if err := d.router.Navigate(ctx, path); err != nil {
			d.logger.Warn("navigation failed", "id", n.ID, "path", path, "error", err)
			metrics.RecordAction(kind, "error")
			return
		}
		d.logger.Debug("navigated", "id", n.ID, "path", path)
		metrics.RecordAction(kind, "ok")

	case model.ActionClaim:
		if d.claimer == nil {
			d.logger.Debug("no claimer configured", "id", n.ID)
			metrics.RecordAction(kind, "noop")
			return
		}
		if err := d.claimer.Claim(ctx, n); err != nil {
			d.logger.Warn("reward claim failed", "id", n.ID, "error", err)
			metrics.RecordAction(kind, "error")
			return
		}
		d.logger.Debug("reward claimed", "id", n.ID)
		metrics.RecordAction(kind, "ok")

	default:
		// share and unrecognised kinds only dismiss
		d.logger.Debug("action kind has no effect", "id", n.ID, "kind", kind)
		metrics.RecordAction(kind, "noop")
	}
}
