package rpc

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Client is a thin D-Bus caller for userctlctl: one method per RPC surface
// operation, translating bus errors back into the daemon's stable error
// names so the CLI can match on them without importing pkg/daemon.
type Client struct {
	obj dbus.BusObject
}

// NewClient connects to the bus (system, unless sessionBus is set) and
// binds to busName/objectPath.
func NewClient(busName string, objectPath dbus.ObjectPath, sessionBus bool) (*Client, error) {
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
	return &Client{obj: conn.Object(busName, objectPath)}, nil
}

// ClassInfo mirrors daemon.ClassInfo for clients that don't import pkg/daemon.
type ClassInfo struct {
	Filepath string
	Shared   bool
	Priority float64
	Users    []uint32
	Groups   []uint32
}

// DefaultExtension reads the daemon's configured class-file extension.
func (c *Client) DefaultExtension() (string, error) {
	v, err := c.obj.GetProperty(InterfaceName + ".DefaultExtension")
	if err != nil {
		return "", unwrap(err)
	}
	return v.Value().(string), nil
}

// ListClasses returns every loaded class's filepath.
func (c *Client) ListClasses() ([]string, error) {
	var paths []string
	if err := c.obj.Call(InterfaceName+".ListClasses", 0).Store(&paths); err != nil {
		return nil, unwrap(err)
	}
	return paths, nil
}

// GetClass fetches one class's RPC payload.
func (c *Client) GetClass(name string) (ClassInfo, error) {
	var info ClassInfo
	call := c.obj.Call(InterfaceName+".GetClass", 0, name)
	if call.Err != nil {
		return ClassInfo{}, unwrap(call.Err)
	}
	if err := call.Store(&info.Filepath, &info.Shared, &info.Priority, &info.Users, &info.Groups); err != nil {
		return ClassInfo{}, unwrap(err)
	}
	return info, nil
}

// Evaluate resolves uid's winning class filepath.
func (c *Client) Evaluate(uid uint32) (string, error) {
	var path string
	if err := c.obj.Call(InterfaceName+".Evaluate", 0, uid).Store(&path); err != nil {
		return "", unwrap(err)
	}
	return path, nil
}

// Reload re-parses one class file.
func (c *Client) Reload(name string) error {
	return unwrap(c.obj.Call(InterfaceName+".Reload", 0, name).Err)
}

// DaemonReload rebuilds the entire registry from disk.
func (c *Client) DaemonReload() error {
	return unwrap(c.obj.Call(InterfaceName+".DaemonReload", 0).Err)
}

// SetProperty adds or replaces a control on a class, in memory only.
func (c *Client) SetProperty(name, key, value string) error {
	return unwrap(c.obj.Call(InterfaceName+".SetProperty", 0, name, key, value).Err)
}

// unwrap strips the D-Bus error-name namespace off the daemon's stable
// error names, so callers can compare against daemon.ErrName* constants
// without a dbus import. Non-daemon errors (transport failures, bus not
// reachable) pass through unchanged.
func unwrap(err error) error {
	if err == nil {
		return nil
	}
	dbusErr, ok := err.(dbus.Error)
	if !ok || !strings.HasPrefix(dbusErr.Name, errorPrefix) {
		return err
	}
	name := strings.TrimPrefix(dbusErr.Name, errorPrefix)
	msg := name
	if len(dbusErr.Body) > 0 {
		if s, ok := dbusErr.Body[0].(string); ok {
			msg = s
		}
	}
	return &DaemonError{Name: name, Message: msg}
}

// DaemonError is a client-side view of one of the daemon's stable RPC
// errors (NoSuchClass, NoClassForUser, ClassFailure, DaemonFailure).
type DaemonError struct {
	Name    string
	Message string
}

func (e *DaemonError) Error() string { return e.Message }
