package monitor

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tkarls/arrmon/internal/config"
	"github.com/tkarls/arrmon/internal/metrics"
	"github.com/tkarls/arrmon/internal/ui"
)

// cardWidth is the inner content width of a server card.
const cardWidth = 44

// barWidth is the metric bar width inside cards.
const barWidth = 18

// renderCard renders one server card.
func (m Model) renderCard(server config.Server, selected bool) string {
	snap := m.snapshots[server.ID]

	var b strings.Builder
	b.WriteString(m.renderCardTitle(server, snap))
	b.WriteString("\n")

	if snap == nil {
		b.WriteString(MutedStyle.Render("no data yet"))
	} else if !snap.Mapped() {
		// Unmapped servers report no meaningful utilization.
		b.WriteString(MutedStyle.Render("not mapped"))
	} else {
		b.WriteString(renderMetricLine("CPU", snap.CPUUsage))
		b.WriteString("\n")
		b.WriteString(renderMemoryLine(snap))
		if snap.GPUAvailable() {
			b.WriteString("\n")
			b.WriteString(renderGPULine(snap.GPU))
		}
		if spark := ui.RenderSparkline(m.history.CPU(server.ID, barWidth), barWidth); spark != "" {
			b.WriteString("\n")
			b.WriteString(LabelStyle.Render("cpu ") + spark)
		}
	}

	style := CardStyle
	if selected {
		style = CardSelectedStyle
	}
	return style.Width(cardWidth).Render(b.String())
}

// renderCardTitle renders "name (kind)" with a data indicator.
func (m Model) renderCardTitle(server config.Server, snap *metrics.Snapshot) string {
	glyph := MutedStyle.Render(GlyphWaiting)
	if snap != nil {
		glyph = LiveStyle.Render(GlyphLive)
	}

	title := ServerNameStyle.Render(server.Name)
	kind := MutedStyle.Render(" " + server.Kind)
	container := ""
	if snap != nil && snap.Container != "" {
		container = MutedStyle.Render("  [" + snap.Container + "]")
	}
	return glyph + " " + title + kind + container
}

// renderMetricLine renders a labeled percentage bar: "CPU ▰▰▱... 42.0%".
func renderMetricLine(label string, percent float64) string {
	return fmt.Sprintf("%s %s %s",
		LabelStyle.Render(fmt.Sprintf("%-3s", label)),
		ProgressBar(barWidth, percent),
		MetricStyle(percent).Render(fmt.Sprintf("%5.1f%%", percent)))
}

// renderMemoryLine renders the memory bar with absolute usage. A container
// without a memory limit has no percentage; show usage only.
func renderMemoryLine(snap *metrics.Snapshot) string {
	used := humanize.FtoaWithDigits(snap.MemoryUsedGB, 1) + "G"

	pct, ok := snap.MemoryPercent()
	if !ok {
		return fmt.Sprintf("%s %s %s",
			LabelStyle.Render("MEM"),
			MutedStyle.Render(strings.Repeat("·", barWidth)),
			ValueStyle.Render(used+" (no limit)"))
	}

	total := humanize.FtoaWithDigits(snap.MemoryTotalGB, 1) + "G"
	return fmt.Sprintf("%s %s %s %s",
		LabelStyle.Render("MEM"),
		ProgressBar(barWidth, pct),
		MetricStyle(pct).Render(fmt.Sprintf("%5.1f%%", pct)),
		MutedStyle.Render(used+"/"+total))
}

// renderGPULine renders up to three GPU utilizations on one line.
func renderGPULine(gpu *metrics.GPUReading) string {
	if len(gpu.Utilizations) == 0 {
		return LabelStyle.Render("GPU") + " " + MutedStyle.Render("present, no reading")
	}

	parts := make([]string, 0, len(gpu.Utilizations))
	for _, u := range gpu.Utilizations {
		parts = append(parts, MetricStyle(u).Render(fmt.Sprintf("%.0f%%", u)))
	}
	return LabelStyle.Render("GPU") + " " + strings.Join(parts, MutedStyle.Render(" / "))
}
