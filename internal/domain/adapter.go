package domain

// DeviceInterface is the bus interface implemented by remote device objects.
const DeviceInterface = "org.bluez.Device1"

// Adapter is the local radio collaborator. Property maps use the bus
// property names (Address, Name, Class, ManufacturerData, RSSI) with values
// already converted to plain Go types.
type Adapter interface {
	StartDiscovery() error
	StopDiscovery() error
	// ManagedObjects maps each object path to the interfaces it implements.
	ManagedObjects() (map[string][]string, error)
	DeviceProperties(path string) (map[string]any, error)
}
