package desktop

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Notifier sends requests to a notification server.
type Notifier interface {
	Notify(req Request) (uint32, error)
	CloseNotification(id uint32) error
}

// Bus is a Notifier over the session bus that also delivers the server's signals.
type Bus struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
	logger  *slog.Logger
}

var _ Notifier = (*Bus)(nil)

// Connect opens a private session bus connection and subscribes to the
// notification server's signals.
func Connect(logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(DBusInterface),
		dbus.WithMatchObjectPath(DBusPath),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to add signal match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	logger.Debug("connected to notification service", "name", DBusName)
	return &Bus{
		conn:    conn,
		obj:     conn.Object(DBusName, DBusPath),
		signals: signals,
		logger:  logger,
	}, nil
}

// Signals returns the channel of notification server signals.
func (b *Bus) Signals() <-chan *dbus.Signal {
	return b.signals
}

// Notify shows req and returns the server-assigned id.
func (b *Bus) Notify(req Request) (uint32, error) {
	var id uint32
	if err := b.obj.Call(DBusInterface+".Notify", 0, req.Args()...).Store(&id); err != nil {
		return 0, fmt.Errorf("notify failed: %w", err)
	}
	return id, nil
}

// CloseNotification closes id.
func (b *Bus) CloseNotification(id uint32) error {
	if err := b.obj.Call(DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d failed: %w", id, err)
	}
	return nil
}

// Close closes the bus connection.
func (b *Bus) Close() error {
	b.conn.RemoveSignal(b.signals)
	return b.conn.Close()
}
