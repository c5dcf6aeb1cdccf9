// Package session wraps the systemd-logind (login1) D-Bus manager: active
// user enumeration for the Enforcer's enforce_for_active_users, and the
// "new user" signal subscription that drives the Event Loop.
package session

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/godbus/dbus/v5"

	"github.com/dylangardner/userctl/internal/logger"
)

const (
	login1BusName    = "org.freedesktop.login1"
	login1ObjectPath = "/org/freedesktop/login1"
	login1Interface  = "org.freedesktop.login1.Manager"
)

// NewUserEvent is the payload of a logind "UserNew" signal: the new user's
// uid and the bus path of their login1 User object.
type NewUserEvent struct {
	UID  uint32
	Path dbus.ObjectPath
}

// Manager is the session-manager contract the Event Loop and Enforcer
// depend on: active-user enumeration plus new-user notification.
type Manager struct {
	conn *login1.Conn
	bus  *dbus.Conn
}

// Connect dials the system bus and the logind manager object.
func Connect() (*Manager, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("session: connect to logind: %w", err)
	}

	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: connect to system bus: %w", err)
	}

	return &Manager{conn: conn, bus: bus}, nil
}

// Close releases the underlying bus connections.
func (m *Manager) Close() {
	if m.bus != nil {
		_ = m.bus.Close()
	}
	if m.conn != nil {
		m.conn.Close()
	}
}

// ActiveUIDs returns the uids of all currently logged-in users, the
// session-manager contract's active-user listing.
func (m *Manager) ActiveUIDs(ctx context.Context) ([]uint32, error) {
	users, err := m.conn.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("session: list users: %w", err)
	}

	uids := make([]uint32, 0, len(users))
	for _, u := range users {
		uids = append(uids, u.UID)
	}
	return uids, nil
}

// Subscribe registers a match on logind's UserNew signal and returns a
// channel of NewUserEvent. The channel is closed when ctx is cancelled.
func (m *Manager) Subscribe(ctx context.Context) (<-chan NewUserEvent, error) {
	call := m.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		fmt.Sprintf("type='signal',interface='%s',member='UserNew'", login1Interface))
	if call.Err != nil {
		return nil, fmt.Errorf("session: add match: %w", call.Err)
	}

	signals := make(chan *dbus.Signal, 16)
	m.bus.Signal(signals)

	events := make(chan NewUserEvent, 16)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				m.bus.RemoveSignal(signals)
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Name != login1Interface+".UserNew" {
					continue
				}
				event, err := parseUserNew(sig)
				if err != nil {
					logger.Warn("malformed UserNew signal", logger.Err(err))
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

func parseUserNew(sig *dbus.Signal) (NewUserEvent, error) {
	if len(sig.Body) < 2 {
		return NewUserEvent{}, fmt.Errorf("expected 2 body fields, got %d", len(sig.Body))
	}
	uid, ok := sig.Body[0].(uint32)
	if !ok {
		return NewUserEvent{}, fmt.Errorf("expected uid as uint32, got %T", sig.Body[0])
	}
	path, ok := sig.Body[1].(dbus.ObjectPath)
	if !ok {
		return NewUserEvent{}, fmt.Errorf("expected object path, got %T", sig.Body[1])
	}
	return NewUserEvent{UID: uid, Path: path}, nil
}
