package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// queryTimeout bounds one refresh so a locked database cannot stall the view.
const queryTimeout = 5 * time.Second

// tickCmd schedules the next refresh.
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// querySnapshotCmd reads recent devices and counts asynchronously.
func querySnapshotCmd(src Source, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		devices, err := src.RecentDevices(ctx)
		if err != nil {
			return SnapshotMsg{At: now(), Err: err}
		}
		counts, err := src.DeviceCounts(ctx)
		if err != nil {
			return SnapshotMsg{At: now(), Err: err}
		}
		return SnapshotMsg{Devices: devices, Counts: counts, At: now()}
	}
}
