package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"bluetooth-scanner/internal/adapter/tui/theme"
)

const (
	seenLayout    = "2006-01-02 15:04:05"
	unknownName   = "Unknown"
	neverSeenText = "Never"
)

func (m *Model) tableView() string {
	if len(m.devices) == 0 {
		msg := "  No devices observed yet. Start the scanner to populate the database."
		return theme.BorderNormal.Render(theme.TextMuted.Render(msg))
	}
	return theme.BorderNormal.Render(m.table.View())
}

func (m *Model) statsView() string {
	card := func(label, value string, style lipgloss.Style) string {
		return theme.StatCard.Render(theme.StatLabel.Render(label) + " " + style.Render(value))
	}

	updated := neverSeenText
	if !m.updated.IsZero() {
		updated = m.updated.Local().Format(seenLayout)
	}

	cards := []string{
		card("Total Devices:", fmt.Sprint(m.counts.Total), theme.StatValue),
		card("Mobile Devices:", fmt.Sprint(m.counts.Mobile), theme.StatMobile),
		card("Other Devices:", fmt.Sprint(m.counts.Other()), theme.StatOther),
		card("Last Updated:", updated, theme.TextAccent),
	}
	stats := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	if m.err != nil {
		errLine := theme.TextError.Render("  " + theme.SymbolError + " " + m.err.Error())
		return lipgloss.JoinVertical(lipgloss.Left, stats, errLine)
	}
	return stats
}

func (m *Model) statusView() string {
	hints := []struct{ key, desc string }{
		{"s", "Sort (" + m.sortKey.String() + ")"},
		{"r", "Reverse"},
		{"↑/↓", "Scroll"},
		{"q", "Quit"},
	}
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, theme.StatusKey.Render(h.key)+": "+h.desc)
	}
	bar := strings.Join(parts, "  "+theme.Dim.Render("|")+"  ")
	return theme.StatusBar.Width(m.width).Render(bar)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return unknownName
	}
	return name
}

func typeLabel(mobile bool) string {
	if mobile {
		return theme.SymbolMobile + " Mobile"
	}
	return theme.SymbolOther + " Other"
}

// isWeak reports whether rssi is below the configured floor.
func isWeak(rssi, minStrength int) bool {
	return rssi < minStrength
}

func signalCell(rssi, minStrength int) string {
	text := fmt.Sprintf("%d dBm", rssi)
	if isWeak(rssi, minStrength) {
		return theme.WeakSignal.Render(text)
	}
	return text
}

func formatSeen(t time.Time) string {
	if t.IsZero() {
		return neverSeenText
	}
	return t.Local().Format(seenLayout)
}
