package monitor

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tkarls/arrmon/internal/config"
	"github.com/tkarls/arrmon/internal/feed"
	"github.com/tkarls/arrmon/internal/metrics"
)

// Source is the metrics feed as the dashboard sees it.
type Source interface {
	All() []*metrics.Snapshot
	Get(id int64) (*metrics.Snapshot, bool)
	State() feed.State
	ToggleMode() error
	ManualRefresh()
	Stale(window time.Duration) bool
}

// renderInterval is the dashboard redraw cadence. Data arrives on the feed's
// own schedule; the tick only re-reads it.
const renderInterval = time.Second

// noticeTTL is how long a transient notice (toggle refused, channel error)
// stays in the header.
const noticeTTL = 5 * time.Second

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	source  Source
	servers []config.Server
	order   []int64 // config order, the default sort

	selected   int
	sortOrder  SortOrder
	viewMode   ViewMode
	showHelp   bool
	quitting   bool
	width      int
	height     int
	history    *History
	staleAfter time.Duration

	snapshots map[int64]*metrics.Snapshot
	feedState feed.State

	notice      string
	noticeUntil time.Time

	detailViewport viewport.Model
	viewportReady  bool
}

// tickMsg signals a periodic redraw.
type tickMsg time.Time

// Options tune the dashboard.
type Options struct {
	// StaleAfter is how long without data before the warning shows.
	StaleAfter time.Duration

	// HistorySize is the sparkline sample count per server.
	HistorySize int
}

// NewModel creates a dashboard model over the given feed and server list.
func NewModel(source Source, servers []config.Server, opts Options) Model {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Second
	}

	order := make([]int64, len(servers))
	sorted := make([]config.Server, len(servers))
	copy(sorted, servers)
	for i, s := range servers {
		order[i] = s.ID
	}

	m := Model{
		source:     source,
		servers:    sorted,
		order:      order,
		selected:   -1,
		history:    NewHistory(opts.HistorySize),
		staleAfter: opts.StaleAfter,
		snapshots:  make(map[int64]*metrics.Snapshot),
		sortOrder:  SortByDefault,
	}
	if len(m.servers) > 0 {
		m.selected = 0
	}
	return m
}

// Init starts the redraw ticker and primes the first read.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), func() tea.Msg { return tickMsg(time.Now()) })
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 2
		viewportHeight := m.height - headerHeight - footerHeight
		if viewportHeight < 1 {
			viewportHeight = 1
		}

		if !m.viewportReady {
			m.detailViewport = viewport.New(m.width, viewportHeight)
			m.detailViewport.YPosition = headerHeight
			m.viewportReady = true
		} else {
			m.detailViewport.Width = m.width
			m.detailViewport.Height = viewportHeight
		}

		if m.viewMode == ViewDetail {
			m.updateDetailViewportContent()
		}

	case tickMsg:
		m.readFeed()
		if m.viewMode == ViewDetail {
			m.updateDetailViewportContent()
		}
		return m, m.tickCmd()
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// readFeed pulls the latest state out of the feed and records history for
// servers whose snapshot actually advanced.
func (m *Model) readFeed() {
	m.feedState = m.source.State()

	latest := make(map[int64]*metrics.Snapshot)
	for _, s := range m.source.All() {
		latest[s.ServerID] = s
		if prev, ok := m.snapshots[s.ServerID]; !ok || prev != s {
			m.history.Push(s)
		}
	}
	m.snapshots = latest

	if m.feedState.LastError != nil {
		m.setNotice(m.feedState.LastError.Error())
	}
	m.sortServers()
}

// setNotice shows a transient message in the header.
func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeUntil = time.Now().Add(noticeTTL)
}

// Notice returns the current transient message, or "" once it expired.
func (m Model) Notice() string {
	if m.notice == "" || time.Now().After(m.noticeUntil) {
		return ""
	}
	return m.notice
}

// SelectedServer returns the currently selected server record.
func (m Model) SelectedServer() (config.Server, bool) {
	if m.selected >= 0 && m.selected < len(m.servers) {
		return m.servers[m.selected], true
	}
	return config.Server{}, false
}

// LiveCount returns how many servers currently have data.
func (m Model) LiveCount() int {
	return len(m.snapshots)
}

// SecondsSinceUpdate returns seconds since the feed last delivered data.
func (m Model) SecondsSinceUpdate() int {
	if m.feedState.LastUpdate.IsZero() {
		return 0
	}
	return int(time.Since(m.feedState.LastUpdate).Seconds())
}

// IsStale reports whether the staleness warning should show.
func (m Model) IsStale() bool {
	return m.source.Stale(m.staleAfter)
}

// twoColumns reports whether cards render side by side.
func (m Model) twoColumns() bool {
	return m.width >= 100
}

// sortServers orders the server list per the current sort, keeping the
// selection on the same server.
func (m *Model) sortServers() {
	if len(m.servers) == 0 {
		return
	}

	var selectedID int64
	if m.selected >= 0 && m.selected < len(m.servers) {
		selectedID = m.servers[m.selected].ID
	}

	switch m.sortOrder {
	case SortByDefault:
		orderIndex := make(map[int64]int, len(m.order))
		for i, id := range m.order {
			orderIndex[id] = i
		}
		sort.SliceStable(m.servers, func(i, j int) bool {
			// Servers with data first, then config order.
			_, okI := m.snapshots[m.servers[i].ID]
			_, okJ := m.snapshots[m.servers[j].ID]
			if okI != okJ {
				return okI
			}
			return orderIndex[m.servers[i].ID] < orderIndex[m.servers[j].ID]
		})

	case SortByName:
		sort.Slice(m.servers, func(i, j int) bool {
			return m.servers[i].Name < m.servers[j].Name
		})

	case SortByCPU:
		m.sortByMetric(func(s *metrics.Snapshot) (float64, bool) {
			return s.CPUUsage, true
		})

	case SortByMemory:
		m.sortByMetric(func(s *metrics.Snapshot) (float64, bool) {
			return s.MemoryPercent()
		})

	case SortByGPU:
		m.sortByMetric(func(s *metrics.Snapshot) (float64, bool) {
			if !s.GPUAvailable() || len(s.GPU.Utilizations) == 0 {
				return 0, false
			}
			return s.GPU.Utilizations[0], true
		})
	}

	if selectedID != 0 {
		for i, s := range m.servers {
			if s.ID == selectedID {
				m.selected = i
				break
			}
		}
	}
}

// sortByMetric sorts descending by the extracted value; servers without the
// metric go last, in name order.
func (m *Model) sortByMetric(value func(*metrics.Snapshot) (float64, bool)) {
	sort.SliceStable(m.servers, func(i, j int) bool {
		snapI, okI := m.snapshots[m.servers[i].ID]
		snapJ, okJ := m.snapshots[m.servers[j].ID]

		var valI, valJ float64
		if okI {
			valI, okI = value(snapI)
		}
		if okJ {
			valJ, okJ = value(snapJ)
		}

		if okI != okJ {
			return okI
		}
		if !okI {
			return m.servers[i].Name < m.servers[j].Name
		}
		return valI > valJ
	})
}
