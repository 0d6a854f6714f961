package dashboard

import (
	"sort"
	"strings"

	"bluetooth-scanner/internal/domain"
)

// SortKey selects the device table ordering.
type SortKey int

const (
	SortLastSeen SortKey = iota
	SortName
	SortSignal
	SortFirstSeen
	SortAddress
	sortKeyCount
)

func (k SortKey) String() string {
	switch k {
	case SortName:
		return "Name"
	case SortSignal:
		return "Signal"
	case SortFirstSeen:
		return "First Seen"
	case SortAddress:
		return "MAC"
	default:
		return "Last Seen"
	}
}

// Next cycles to the following key.
func (k SortKey) Next() SortKey {
	return (k + 1) % sortKeyCount
}

// sortDevices orders devices in place. Time and signal keys put the newest
// or strongest first; name and address keys are alphabetical. reverse flips
// the order. Ties fall back to the address so rows never jump between
// refreshes.
func sortDevices(devices []domain.DeviceSnapshot, key SortKey, reverse bool) {
	less := func(a, b domain.DeviceSnapshot) bool {
		switch key {
		case SortName:
			an, bn := strings.ToLower(displayName(a.Name)), strings.ToLower(displayName(b.Name))
			if an != bn {
				return an < bn
			}
		case SortSignal:
			if a.SignalStrength != b.SignalStrength {
				return a.SignalStrength > b.SignalStrength
			}
		case SortFirstSeen:
			if !a.FirstSeen.Equal(b.FirstSeen) {
				return a.FirstSeen.After(b.FirstSeen)
			}
		case SortAddress:
		default:
			if !a.LastSeen.Equal(b.LastSeen) {
				return a.LastSeen.After(b.LastSeen)
			}
		}
		return a.Address < b.Address
	}

	sort.SliceStable(devices, func(i, j int) bool {
		if reverse {
			return less(devices[j], devices[i])
		}
		return less(devices[i], devices[j])
	})
}
