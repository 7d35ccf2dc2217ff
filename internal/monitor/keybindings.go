package monitor

import tea "github.com/charmbracelet/bubbletea"

// SortOrder defines how servers are ordered in the dashboard.
type SortOrder int

const (
	SortByDefault SortOrder = iota
	SortByName
	SortByCPU
	SortByMemory
	SortByGPU
)

// String returns a human-readable label for the sort order.
func (s SortOrder) String() string {
	switch s {
	case SortByDefault:
		return "default"
	case SortByName:
		return "name"
	case SortByCPU:
		return "CPU"
	case SortByMemory:
		return "MEM"
	case SortByGPU:
		return "GPU"
	default:
		return "default"
	}
}

// Next cycles to the next sort order.
func (s SortOrder) Next() SortOrder {
	return SortOrder((int(s) + 1) % 5)
}

// ViewMode defines the current display mode of the dashboard.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyToggleMode  = "t"
	KeyRefresh     = "r"
	KeyCycleSort   = "s"
	KeySelectPrev  = "up"
	KeySelectPrevK = "k"
	KeySelectNext  = "down"
	KeySelectNextJ = "j"
	KeySelectFirst = "home"
	KeySelectLast  = "end"
	KeyExpand      = "enter"
	KeyCollapse    = "esc"
	KeyToggleHelp  = "?"
)

// HandleKeyMsg processes keyboard input. Returns true if the key was handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}
	if m.viewMode == ViewDetail && key == KeyCollapse {
		m.viewMode = ViewList
		return true, nil
	}

	// Detail view: let the viewport handle scrolling keys first.
	if m.viewMode == ViewDetail {
		switch key {
		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.detailViewport, cmd = m.detailViewport.Update(msg)
			return true, cmd
		}
	}

	switch key {
	case KeyQuit, KeyQuitAlt:
		m.quitting = true
		return true, tea.Quit

	case KeyToggleMode:
		// The feed decides; a refused switch shows up as a notice, not a
		// mode change.
		if err := m.source.ToggleMode(); err != nil {
			m.setNotice(err.Error())
		}
		m.feedState = m.source.State()
		return true, nil

	case KeyRefresh:
		m.source.ManualRefresh()
		return true, nil

	case KeyCycleSort:
		m.sortOrder = m.sortOrder.Next()
		m.sortServers()
		return true, nil

	case KeySelectPrev, KeySelectPrevK:
		if m.selected > 0 {
			m.selected--
		}
		if m.viewMode == ViewDetail {
			m.updateDetailViewportContent()
		}
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		if m.selected < len(m.servers)-1 {
			m.selected++
		}
		if m.viewMode == ViewDetail {
			m.updateDetailViewportContent()
		}
		return true, nil

	case KeySelectFirst:
		m.selected = 0
		return true, nil

	case KeySelectLast:
		if len(m.servers) > 0 {
			m.selected = len(m.servers) - 1
		}
		return true, nil

	case KeyExpand:
		if m.viewMode == ViewList && len(m.servers) > 0 {
			m.viewMode = ViewDetail
			m.updateDetailViewportContent()
		}
		return true, nil

	case KeyCollapse:
		m.viewMode = ViewList
		return true, nil
	}

	return false, nil
}
