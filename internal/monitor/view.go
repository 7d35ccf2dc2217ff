package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tkarls/arrmon/internal/feed"
	"github.com/tkarls/arrmon/internal/transport"
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if notice := m.Notice(); notice != "" {
		b.WriteString(NoticeStyle.Render("⚠ " + notice))
		b.WriteString("\n")
	}

	switch m.viewMode {
	case ViewDetail:
		b.WriteString(m.detailViewport.View())
	default:
		b.WriteString(m.renderCards())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows the channel mode, health, and data freshness.
func (m Model) renderHeader() string {
	title := HeaderStyle.Render("arrmon")

	mode := m.renderModeBadge()

	freshness := MutedStyle.Render("waiting for data")
	if !m.feedState.LastUpdate.IsZero() {
		freshness = MutedStyle.Render(fmt.Sprintf("updated %ds ago", m.SecondsSinceUpdate()))
	}
	if m.IsStale() {
		freshness = DegradedStyle.Render(fmt.Sprintf("stale: no data for %ds", m.SecondsSinceUpdate()))
	}

	count := MutedStyle.Render(fmt.Sprintf("%d/%d reporting", m.LiveCount(), len(m.servers)))

	return lipgloss.JoinHorizontal(lipgloss.Top,
		title, "  ", mode, "  ", count, "  ", freshness)
}

// renderModeBadge shows the active delivery channel and its health.
func (m Model) renderModeBadge() string {
	if m.feedState.Switching {
		return MutedStyle.Render(GlyphWaiting + " switching")
	}

	switch m.feedState.Mode {
	case transport.ModePush:
		switch m.feedState.Health {
		case feed.HealthConnected:
			return LiveStyle.Render(GlyphLive + " live")
		case feed.HealthConnecting:
			return MutedStyle.Render(GlyphWaiting + " connecting")
		case feed.HealthFailed:
			return DegradedStyle.Render(GlyphDegraded + " live (down, press r)")
		default:
			return MutedStyle.Render(GlyphDegraded + " live (off)")
		}
	default:
		return LabelStyle.Render(GlyphPolling + " polling")
	}
}

// renderCards lays out the server cards, two columns on wide terminals.
func (m Model) renderCards() string {
	if len(m.servers) == 0 {
		return MutedStyle.Render("No servers configured. Add one with 'arrmon server add'.")
	}

	cards := make([]string, len(m.servers))
	for i, server := range m.servers {
		cards[i] = m.renderCard(server, i == m.selected)
	}

	if !m.twoColumns() {
		return strings.Join(cards, "\n")
	}

	var rows []string
	for i := 0; i < len(cards); i += 2 {
		if i+1 < len(cards) {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i], cards[i+1]))
		} else {
			rows = append(rows, cards[i])
		}
	}
	return strings.Join(rows, "\n")
}

// renderFooter shows the key hints.
func (m Model) renderFooter() string {
	toggleHint := "t polling"
	if m.feedState.Mode == transport.ModePull {
		toggleHint = "t live"
	}

	hints := []string{
		"↑/↓ select",
		"enter detail",
		toggleHint,
		"r refresh",
		"s sort: " + m.sortOrder.String(),
		"? help",
		"q quit",
	}
	return FooterStyle.Render(strings.Join(hints, "  ·  "))
}
