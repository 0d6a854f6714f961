package scanner

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"bluetooth-scanner/internal/domain"
)

// manufacturerSlot is the ManufacturerData key read as free text.
const manufacturerSlot uint16 = 0x0000

// deviceInfoFromProperties builds a DeviceInfo from a Device1 property map.
// Missing or unexpected values become zero values.
func deviceInfoFromProperties(props map[string]any, now time.Time) domain.DeviceInfo {
	return domain.DeviceInfo{
		Address:        stringProp(props["Address"]),
		Name:           stringProp(props["Name"]),
		Class:          classProp(props["Class"]),
		Manufacturer:   manufacturerProp(props["ManufacturerData"]),
		SignalStrength: intProp(props["RSSI"]),
		LastSeen:       now,
	}
}

func stringProp(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return ""
	}
}

func classProp(v any) string {
	switch val := v.(type) {
	case uint32:
		return fmt.Sprintf("0x%06x", val)
	case int:
		return fmt.Sprintf("0x%06x", val)
	case string:
		return val
	default:
		return ""
	}
}

func intProp(v any) int {
	switch val := v.(type) {
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case int:
		return val
	default:
		return 0
	}
}

func manufacturerProp(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[uint16][]byte:
		return manufacturerFromData(val)
	default:
		return ""
	}
}

// manufacturerFromData reads the fixed slot as text. Other company
// identifiers are ignored.
func manufacturerFromData(data map[uint16][]byte) string {
	return printable(data[manufacturerSlot])
}

// printable returns b as text when every byte is printable ASCII,
// ignoring NUL padding.
func printable(b []byte) string {
	s := strings.TrimRight(string(b), "\x00")
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return ""
		}
	}
	return s
}
