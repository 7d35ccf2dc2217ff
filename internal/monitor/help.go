package monitor

import "strings"

// helpEntries are the key bindings shown on the help screen.
var helpEntries = []struct {
	key  string
	desc string
}{
	{"↑/k, ↓/j", "select server"},
	{"home/end", "first / last server"},
	{"enter", "open detail view"},
	{"esc", "back to the list"},
	{"t", "toggle live updates / polling"},
	{"r", "refresh now (reconnects a dead live channel)"},
	{"s", "cycle sort order"},
	{"?", "toggle this help"},
	{"q", "quit"},
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("arrmon · keys"))
	b.WriteString("\n\n")

	for _, e := range helpEntries {
		b.WriteString("  ")
		b.WriteString(ValueStyle.Render(padRight(e.key, 12)))
		b.WriteString(LabelStyle.Render(e.desc))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("Live updates need the dashboard to be reached through the reverse proxy;"))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("on a direct backend port the dashboard stays in polling mode."))
	return b.String()
}

func padRight(s string, width int) string {
	// Arrow glyphs are wider in bytes than cells; count runes.
	n := len([]rune(s))
	if n >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-n)
}
