// Package dashboard implements the live Bubble Tea view over the device store.
package dashboard

import (
	"time"

	"bluetooth-scanner/internal/domain"
)

// tickMsg fires once per refresh interval.
type tickMsg time.Time

// SnapshotMsg carries one fresh read of the store.
type SnapshotMsg struct {
	Devices []domain.DeviceSnapshot
	Counts  domain.DeviceCounts
	At      time.Time
	Err     error
}
