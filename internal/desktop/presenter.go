package desktop

import (
	"context"
	"errors"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/nudge/internal/engine"
)

// Controller is the session surface the presenter drives.
type Controller interface {
	Subscribe() <-chan engine.Event
	Unsubscribe(ch <-chan engine.Event)
	Dismiss(id string) error
	Activate(ctx context.Context, id string) error
}

// Presenter mirrors session events onto desktop notifications and turns
// clicks and closes back into session calls.
type Presenter struct {
	notifier Notifier
	appName  string
	icon     string
	logger   *slog.Logger

	current uint32            // Desktop id of the displayed notification
	shown   map[uint32]string // Desktop id -> notification id
}

// NewPresenter creates a Presenter.
func NewPresenter(n Notifier, appName, icon string, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		notifier: n,
		appName:  appName,
		icon:     icon,
		logger:   logger,
		shown:    make(map[uint32]string),
	}
}

// Run presents until ctx is done or the session closes its event channel.
// signals may be nil.
func (p *Presenter) Run(ctx context.Context, ctl Controller, signals <-chan *dbus.Signal) error {
	events := ctl.Subscribe()
	defer ctl.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			p.closeCurrent()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				p.closeCurrent()
				return nil
			}
			p.handleEvent(ev)
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			p.handleSignal(ctx, ctl, sig)
		}
	}
}

func (p *Presenter) handleEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventShown:
		if ev.Notification == nil {
			return
		}
		p.closeCurrent()
		id, err := p.notifier.Notify(BuildRequest(ev.Notification, p.appName, p.icon))
		if err != nil {
			p.logger.Warn("desktop notify failed", "id", ev.Notification.ID, "error", err)
			return
		}
		p.current = id
		p.shown[id] = ev.Notification.ID
		p.logger.Debug("desktop notification shown", "id", ev.Notification.ID, "desktop_id", id)
	case engine.EventExiting, engine.EventCleared:
		p.closeCurrent()
	}
}

func (p *Presenter) handleSignal(ctx context.Context, ctl Controller, sig *dbus.Signal) {
	se, ok := parseSignal(sig)
	if !ok {
		return
	}
	nid, ok := p.shown[se.ID]
	if !ok {
		return
	}

	if se.Closed {
		delete(p.shown, se.ID)
		if p.current == se.ID {
			p.current = 0
		}
		if se.Reason != CloseReasonDismissed {
			return
		}
		p.dismiss(ctl, nid)
		return
	}

	switch se.ActionKey {
	case ActionKeyDefault:
		err := ctl.Activate(ctx, nid)
		if err != nil && !errors.Is(err, engine.ErrNothingShown) && !errors.Is(err, engine.ErrNotDisplayed) {
			p.logger.Warn("activate failed", "id", nid, "error", err)
		}
	case ActionKeyDismiss:
		p.dismiss(ctl, nid)
	}
}

func (p *Presenter) dismiss(ctl Controller, id string) {
	err := ctl.Dismiss(id)
	if err != nil && !errors.Is(err, engine.ErrNotDisplayed) {
		p.logger.Warn("dismiss failed", "id", id, "error", err)
	}
}

// closeCurrent withdraws the displayed desktop notification, if any.
func (p *Presenter) closeCurrent() {
	if p.current == 0 {
		return
	}
	id := p.current
	p.current = 0
	delete(p.shown, id)
	if err := p.notifier.CloseNotification(id); err != nil {
		p.logger.Debug("desktop close failed", "desktop_id", id, "error", err)
	}
}
