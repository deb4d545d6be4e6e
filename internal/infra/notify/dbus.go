package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/godbus/dbus/v5"
)

// D-Bus identity the status monitor listens on.
const (
	DefaultDBusPath      = "/org/purefox/statusmonitor"
	DefaultDBusInterface = "org.purefox.StatusMonitor"
)

// SignalEmitter emits D-Bus signals. *dbus.Conn satisfies it; tests supply
// their own.
type SignalEmitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// DBusNotifier emits `<interface>.<kind>(payload)` signals on the system bus.
// The connection is opened on first use and reopened after a failed emit.
type DBusNotifier struct {
	path      dbus.ObjectPath
	iface     string
	connect   func() (SignalEmitter, error)
	retry     time.Duration
	connTries uint

	mu   sync.Mutex
	conn SignalEmitter
}

// NewDBusNotifier creates a notifier on the system bus.
func NewDBusNotifier(path, iface string) *DBusNotifier {
	return NewDBusNotifierWith(path, iface, func() (SignalEmitter, error) {
		conn, err := dbus.SystemBus()
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// NewDBusNotifierWith creates a notifier using connect to open the bus.
func NewDBusNotifierWith(path, iface string, connect func() (SignalEmitter, error)) *DBusNotifier {
	if path == "" {
		path = DefaultDBusPath
	}
	if iface == "" {
		iface = DefaultDBusInterface
	}
	return &DBusNotifier{
		path:      dbus.ObjectPath(path),
		iface:     iface,
		connect:   connect,
		retry:     200 * time.Millisecond,
		connTries: 3,
	}
}

// Notify emits the signal.
func (n *DBusNotifier) Notify(ctx context.Context, kind, payload string) error {
	if !n.path.IsValid() {
		return fmt.Errorf("invalid D-Bus object path %q", n.path)
	}

	conn, err := n.connection(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.Emit(n.path, n.iface+"."+kind, payload); err != nil {
		n.mu.Lock()
		n.conn = nil
		n.mu.Unlock()
		return fmt.Errorf("failed to emit %s: %w", kind, err)
	}
	return nil
}

func (n *DBusNotifier) connection(ctx context.Context) (SignalEmitter, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return n.conn, nil
	}

	conn, err := backoff.Retry(ctx, func() (SignalEmitter, error) {
		return n.connect()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(n.retry)),
		backoff.WithMaxTries(n.connTries),
	)
	if err != nil {
		return nil, err
	}
	n.conn = conn
	return conn, nil
}
