// Package rpc exports a daemon.Context over D-Bus, the RPC Surface
// component. Every exported method logs its outcome with the method name,
// the class argument where there is one, the call duration and the resulting
// error (if any), and records it in the RPC metrics.
package rpc

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/daemon"
	"github.com/dylangardner/userctl/pkg/metrics"
)

// InterfaceName is the D-Bus interface the daemon's Manager methods are
// exported under.
const InterfaceName = "org.dylangardner.userctl.Manager"

// errorPrefix namespaces the daemon's stable error names as D-Bus error
// names, e.g. "NoSuchClass" -> "org.dylangardner.userctl.Error.NoSuchClass".
const errorPrefix = "org.dylangardner.userctl.Error."

// Server exports a daemon.Context's RPC surface on a D-Bus connection.
type Server struct {
	conn       *dbus.Conn
	props      *prop.Properties
	objectPath dbus.ObjectPath
	busName    string
}

// NewServer connects to the system bus (or the session bus, for local
// development and tests), requests busName, and exports ctx's methods and
// properties at objectPath under InterfaceName.
func NewServer(ctx *daemon.Context, m *metrics.DaemonMetrics, busName string, objectPath dbus.ObjectPath, sessionBus bool) (*Server, error) {
	var conn *dbus.Conn
	var err error
	if sessionBus {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return nil, fmt.Errorf("rpc: connect to bus: %w", err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rpc: request name %s: %w", busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("rpc: name %s already owned", busName)
	}

	methods := &manager{ctx: ctx, metrics: m}
	if err := conn.ExportMethodTable(methodTable(methods), objectPath, InterfaceName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rpc: export method table: %w", err)
	}

	propSpec := map[string]map[string]*prop.Prop{
		InterfaceName: {
			"DefaultExtension": {
				Value:    ctx.DefaultExtension(),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	}
	props, err := prop.Export(conn, objectPath, propSpec)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rpc: export properties: %w", err)
	}

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       InterfaceName,
				Methods:    introspect.Methods(methods),
				Properties: props.Introspection(InterfaceName),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rpc: export introspection: %w", err)
	}

	return &Server{conn: conn, props: props, objectPath: objectPath, busName: busName}, nil
}

// Close releases the bus name and closes the underlying connection.
func (s *Server) Close() error {
	_, _ = s.conn.ReleaseName(s.busName)
	return s.conn.Close()
}

// manager adapts daemon.Context's Go method signatures to the
// (results..., *dbus.Error) convention ExportMethodTable requires.
type manager struct {
	ctx     *daemon.Context
	metrics *metrics.DaemonMetrics
}

func methodTable(m *manager) map[string]interface{} {
	return map[string]interface{}{
		"ListClasses":  m.ListClasses,
		"GetClass":     m.GetClass,
		"Evaluate":     m.Evaluate,
		"Reload":       m.Reload,
		"DaemonReload": m.DaemonReload,
		"SetProperty":  m.SetProperty,
	}
}

func (m *manager) ListClasses() ([]string, *dbus.Error) {
	lc := logger.NewLogContext("ListClasses")
	defer m.logCall(lc, nil)
	return m.ctx.ListClasses(), nil
}

func (m *manager) GetClass(name string) (string, bool, float64, []uint32, []uint32, *dbus.Error) {
	lc := logger.NewLogContext("GetClass").WithClass(name)

	info, err := m.ctx.GetClass(name)
	defer m.logCall(lc, err)
	if err != nil {
		return "", false, 0, nil, nil, toDBusError(err)
	}
	return info.Filepath, info.Shared, info.Priority, info.Users, info.Groups, nil
}

func (m *manager) Evaluate(uid uint32) (string, *dbus.Error) {
	lc := logger.NewLogContext("Evaluate").WithUser(uid, 0)

	path, err := m.ctx.Evaluate(uid)
	defer m.logCall(lc, err)
	if err != nil {
		return "", toDBusError(err)
	}
	return path, nil
}

func (m *manager) Reload(name string) *dbus.Error {
	lc := logger.NewLogContext("Reload").WithClass(name)

	err := m.ctx.Reload(context.Background(), name)
	defer m.logCall(lc, err)
	return toDBusError(err)
}

func (m *manager) DaemonReload() *dbus.Error {
	lc := logger.NewLogContext("DaemonReload")

	err := m.ctx.DaemonReload(context.Background())
	defer m.logCall(lc, err)
	return toDBusError(err)
}

func (m *manager) SetProperty(name, key, value string) *dbus.Error {
	lc := logger.NewLogContext("SetProperty").WithClass(name)

	err := m.ctx.SetProperty(context.Background(), name, key, value)
	defer m.logCall(lc, err)
	return toDBusError(err)
}

// logCall logs the outcome of an RPC call and records it in m.metrics (a nil
// metrics is a no-op, per the zero-overhead-when-disabled contract).
func (m *manager) logCall(lc *logger.LogContext, err error) {
	name := errName(err)
	m.metrics.RecordRPCCall(lc.Method, name, lc.DurationMs()/1000.0)

	if err != nil {
		logger.Warn("rpc call failed", logger.Method(lc.Method), logger.Class(lc.Class), logger.Err(err), "duration_ms", lc.DurationMs())
		return
	}
	logger.Debug("rpc call completed", logger.Method(lc.Method), logger.Class(lc.Class), "duration_ms", lc.DurationMs())
}

// errName derives the stable error name recorded alongside RPC metrics; the
// empty string marks success.
func errName(err error) string {
	switch err {
	case nil:
		return ""
	case daemon.ErrNoSuchClass:
		return daemon.ErrNameNoSuchClass
	case daemon.ErrNoClassForUser:
		return daemon.ErrNameNoClassForUser
	case daemon.ErrClassFailure:
		return daemon.ErrNameClassFailure
	case daemon.ErrDaemonFailure:
		return daemon.ErrNameDaemonFailure
	default:
		return daemon.ErrNameDaemonFailure
	}
}

// toDBusError maps a daemon sentinel error to its stable D-Bus error name.
// nil passes through as nil so callers can return it directly.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	switch err {
	case daemon.ErrNoSuchClass:
		return dbus.NewError(errorPrefix+daemon.ErrNameNoSuchClass, []interface{}{err.Error()})
	case daemon.ErrNoClassForUser:
		return dbus.NewError(errorPrefix+daemon.ErrNameNoClassForUser, []interface{}{err.Error()})
	case daemon.ErrClassFailure:
		return dbus.NewError(errorPrefix+daemon.ErrNameClassFailure, []interface{}{err.Error()})
	case daemon.ErrDaemonFailure:
		return dbus.NewError(errorPrefix+daemon.ErrNameDaemonFailure, []interface{}{err.Error()})
	default:
		return dbus.NewError(errorPrefix+daemon.ErrNameDaemonFailure, []interface{}{err.Error()})
	}
}
