// Package bluez talks to the BlueZ daemon over the system D-Bus.
package bluez

import (
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"

	"bluetooth-scanner/internal/domain"
)

const (
	service          = "org.bluez"
	adapterInterface = "org.bluez.Adapter1"

	methodGetManagedObjects = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	methodGetAll            = "org.freedesktop.DBus.Properties.GetAll"
)

// Ensure *Adapter satisfies domain.Adapter.
var _ domain.Adapter = (*Adapter)(nil)

// Adapter is a handle to one local BlueZ adapter (e.g. /org/bluez/hci0).
type Adapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

// Open connects to the system bus and checks that the adapter object exists.
func Open(adapterPath string) (*Adapter, error) {
	if !dbus.ObjectPath(adapterPath).IsValid() {
		return nil, fmt.Errorf("%w: invalid object path %q", domain.ErrAdapterInit, adapterPath)
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect system bus: %v", domain.ErrAdapterInit, err)
	}

	path := dbus.ObjectPath(adapterPath)
	if _, err := conn.Object(service, path).GetProperty(adapterInterface + ".Address"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrAdapterInit, adapterPath, err)
	}
	return &Adapter{conn: conn, path: path}, nil
}

// Close releases the bus connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

func (a *Adapter) StartDiscovery() error {
	return a.callAdapter("StartDiscovery")
}

func (a *Adapter) StopDiscovery() error {
	return a.callAdapter("StopDiscovery")
}

func (a *Adapter) callAdapter(method string) error {
	call := a.conn.Object(service, a.path).Call(adapterInterface+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrAdapterCall, method, call.Err)
	}
	return nil
}

// ManagedObjects lists every object exported by BlueZ with its interfaces.
func (a *Adapter) ManagedObjects() (map[string][]string, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := a.conn.Object(service, "/").Call(methodGetManagedObjects, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("%w: GetManagedObjects: %v", domain.ErrAdapterCall, err)
	}

	out := make(map[string][]string, len(objects))
	for path, ifaces := range objects {
		names := make([]string, 0, len(ifaces))
		for name := range ifaces {
			names = append(names, name)
		}
		sort.Strings(names)
		out[string(path)] = names
	}
	return out, nil
}

// DeviceProperties fetches all org.bluez.Device1 properties of path.
func (a *Adapter) DeviceProperties(path string) (map[string]any, error) {
	var props map[string]dbus.Variant
	err := a.conn.Object(service, dbus.ObjectPath(path)).
		Call(methodGetAll, 0, domain.DeviceInterface).
		Store(&props)
	if err != nil {
		return nil, fmt.Errorf("%w: GetAll %s: %v", domain.ErrAdapterCall, path, err)
	}
	return plainProperties(props), nil
}

// plainProperties unwraps D-Bus variants, including the a{qv} manufacturer
// data dictionary, into plain Go values.
func plainProperties(props map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = plainValue(v.Value())
	}
	return out
}

func plainValue(v any) any {
	switch val := v.(type) {
	case dbus.Variant:
		return plainValue(val.Value())
	case map[uint16]dbus.Variant:
		m := make(map[uint16][]byte, len(val))
		for id, data := range val {
			if b, ok := data.Value().([]byte); ok {
				m[id] = b
			}
		}
		return m
	case dbus.ObjectPath:
		return string(val)
	default:
		return val
	}
}
