package domain

import "time"

// Device type labels assigned by the classifier.
const (
	DeviceTypeUnknown     = "unknown"
	DeviceTypeMobilePhone = "mobile_phone"
)

// Device is a remote Bluetooth device keyed by its hardware address.
type Device struct {
	Address      string
	Name         string
	Class        string
	Manufacturer string
	FirstSeen    time.Time
	LastSeen     time.Time
}

// Observation is one detection of a device during one scan cycle.
type Observation struct {
	ID             int64
	DeviceAddress  string
	ScanTime       time.Time
	SignalStrength int // dBm
	DeviceType     string
	IsMobile       bool
	Properties     map[string]string // populated on read only
}

// DeviceInfo is the attribute set read from the adapter for one device.
type DeviceInfo struct {
	Address        string
	Name           string
	Class          string
	Manufacturer   string
	SignalStrength int
	LastSeen       time.Time
}

// Classification is the classifier verdict for a device.
type Classification struct {
	IsMobile   bool
	DeviceType string
	Confidence float64 // 0..1
}

// NormalizedProperties is the trimmed property subset handed downstream.
type NormalizedProperties struct {
	Name           string
	Class          string
	Manufacturer   string
	SignalStrength int
	Address        string
	LastSeen       time.Time
}

// DeviceSnapshot joins a device with its most recent observation.
type DeviceSnapshot struct {
	Device
	SignalStrength int
	DeviceType     string
	IsMobile       bool
	ScanTime       time.Time
}

// DeviceCounts summarizes the stored population.
type DeviceCounts struct {
	Total  int
	Mobile int
}

// Other returns the number of devices never observed as mobile.
func (c DeviceCounts) Other() int {
	return c.Total - c.Mobile
}
