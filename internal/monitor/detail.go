package monitor

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tkarls/arrmon/internal/ui"
)

// sparkWidth is the sparkline width in the detail view.
const sparkWidth = 60

// updateDetailViewportContent refreshes the detail viewport for the selected
// server.
func (m *Model) updateDetailViewportContent() {
	if !m.viewportReady {
		return
	}
	m.detailViewport.SetContent(m.renderDetail())
}

// renderDetail renders the expanded view of the selected server.
func (m Model) renderDetail() string {
	server, ok := m.SelectedServer()
	if !ok {
		return MutedStyle.Render("nothing selected")
	}

	var b strings.Builder
	b.WriteString(ServerNameStyle.Render(server.Name))
	b.WriteString(MutedStyle.Render("  " + server.Kind))
	if server.URL != "" {
		b.WriteString(MutedStyle.Render("  " + server.URL))
	}
	b.WriteString("\n\n")

	snap := m.snapshots[server.ID]
	if snap == nil {
		b.WriteString(MutedStyle.Render("No data received for this server yet."))
		return b.String()
	}

	if snap.Container != "" {
		b.WriteString(LabelStyle.Render("container  "))
		b.WriteString(ValueStyle.Render(snap.Container))
		b.WriteString("\n")
	}
	if !snap.CapturedAt.IsZero() {
		b.WriteString(LabelStyle.Render("captured   "))
		b.WriteString(ValueStyle.Render(humanize.Time(snap.CapturedAt)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if !snap.Mapped() {
		// Unmapped servers report no meaningful utilization.
		b.WriteString(MutedStyle.Render("Not mapped to a container; no utilization to show."))
		return b.String()
	}

	b.WriteString(renderMetricLine("CPU", snap.CPUUsage))
	b.WriteString("\n")
	if spark := ui.RenderSparkline(m.history.CPU(server.ID, sparkWidth), sparkWidth); spark != "" {
		b.WriteString("    " + spark + "\n")
	}
	b.WriteString("\n")

	b.WriteString(renderMemoryLine(snap))
	b.WriteString("\n")
	if spark := ui.RenderSparkline(m.history.Memory(server.ID, sparkWidth), sparkWidth); spark != "" {
		b.WriteString("    " + spark + "\n")
	}

	if snap.GPUAvailable() {
		b.WriteString("\n")
		b.WriteString(renderGPULine(snap.GPU))
		b.WriteString("\n")
		if spark := ui.RenderSparkline(m.history.GPU(server.ID, sparkWidth), sparkWidth); spark != "" {
			b.WriteString("    " + spark + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%d samples of history", m.history.Count(server.ID))))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("esc back  ·  j/k switch server  ·  pgup/pgdn scroll"))

	return b.String()
}
