package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bluetooth-scanner/internal/adapter/tui/theme"
	"bluetooth-scanner/internal/domain"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// DefaultRefresh is the interval between store reads.
const DefaultRefresh = time.Second

// Source is the read side of the device store.
type Source interface {
	RecentDevices(ctx context.Context) ([]domain.DeviceSnapshot, error)
	DeviceCounts(ctx context.Context) (domain.DeviceCounts, error)
}

// Options configure a dashboard Model.
type Options struct {
	// MinSignalStrength dims readings weaker than this many dBm.
	MinSignalStrength int
	Refresh           time.Duration
	Now               func() time.Time
}

// Model is the root Bubble Tea model for the live device dashboard.
type Model struct {
	src  Source
	opts Options

	devices []domain.DeviceSnapshot
	counts  domain.DeviceCounts
	updated time.Time
	err     error

	sortKey SortKey
	reverse bool

	table  table.Model
	width  int
	height int
}

// New creates the dashboard model.
func New(src Source, opts Options) *Model {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Model{src: src, opts: opts}
	m.rebuildTable()
	return m
}

// Init runs the first query and starts the refresh tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(querySnapshotCmd(m.src, m.opts.Now), tickCmd(m.opts.Refresh))
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuildTable()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyRunes:
			switch string(msg.Runes) {
			case "q":
				return m, tea.Quit
			case "s":
				m.sortKey = m.sortKey.Next()
				m.rebuildTable()
				return m, nil
			case "r":
				m.reverse = !m.reverse
				m.rebuildTable()
				return m, nil
			}
		}

	case tickMsg:
		return m, tea.Batch(querySnapshotCmd(m.src, m.opts.Now), tickCmd(m.opts.Refresh))

	case SnapshotMsg:
		m.updated = msg.At
		m.err = msg.Err
		if msg.Err == nil {
			m.devices = msg.Devices
			m.counts = msg.Counts
		}
		m.rebuildTable()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	header := theme.Header.Width(theme.Clamp(m.width-2, 20, m.width)).
		Render("Bluetooth Device Scanner - Real-time Monitor")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.tableView(),
		m.statsView(),
		m.statusView(),
	)
}

// SortKey returns the active ordering.
func (m *Model) SortKey() SortKey { return m.sortKey }

// Reversed reports whether the ordering is flipped.
func (m *Model) Reversed() bool { return m.reverse }

// Rows returns the rendered table rows in display order.
func (m *Model) Rows() []table.Row { return m.table.Rows() }

func (m *Model) rebuildTable() {
	sortDevices(m.devices, m.sortKey, m.reverse)

	nameW := theme.Clamp(m.width-2-17-10-12-20-20-14, 12, 32)
	columns := []table.Column{
		{Title: m.columnTitle("Name", SortName), Width: nameW},
		{Title: m.columnTitle("MAC", SortAddress), Width: 17},
		{Title: "Type", Width: 10},
		{Title: m.columnTitle("Signal", SortSignal), Width: 12},
		{Title: m.columnTitle("Last Seen", SortLastSeen), Width: 20},
		{Title: m.columnTitle("First Seen", SortFirstSeen), Width: 20},
	}

	rows := make([]table.Row, 0, len(m.devices))
	for _, d := range m.devices {
		rows = append(rows, table.Row{
			displayName(d.Name),
			d.Address,
			typeLabel(d.IsMobile),
			signalCell(d.SignalStrength, m.opts.MinSignalStrength),
			formatSeen(d.LastSeen),
			formatSeen(d.FirstSeen),
		})
	}

	// header, bordered table chrome, stats panel and status bar
	tableH := theme.Clamp(m.height-3-3-4-1, 3, 1000)

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(tableH),
	)
	if len(rows) > 0 {
		t.SetCursor(theme.Clamp(m.table.Cursor(), 0, len(rows)-1))
	}

	s := table.DefaultStyles()
	s.Header = s.Header.
		Inherit(theme.TableHeader).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true)
	s.Selected = s.Selected.
		Foreground(theme.TableSelectedFg).
		Background(theme.TableSelectedBg)
	t.SetStyles(s)

	m.table = t
}

func (m *Model) columnTitle(title string, key SortKey) string {
	if key != m.sortKey {
		return title
	}
	// Time and signal keys list the largest value first by default.
	arrow := theme.SymbolSortDesc
	if key == SortName || key == SortAddress {
		arrow = theme.SymbolSortAsc
	}
	if m.reverse {
		if arrow == theme.SymbolSortDesc {
			arrow = theme.SymbolSortAsc
		} else {
			arrow = theme.SymbolSortDesc
		}
	}
	return title + " " + arrow
}
