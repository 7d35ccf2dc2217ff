package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderServerTable(t *testing.T) {
	out := RenderServerTable([]ServerTableRow{
		{Reporting: true, ID: "1", Name: "tv", Kind: "sonarr", URL: "http://nas:8989"},
		{Reporting: false, ID: "2", Name: "movies", Kind: "radarr"},
	})

	assert.Contains(t, out, "tv")
	assert.Contains(t, out, "sonarr")
	assert.Contains(t, out, "http://nas:8989")
	assert.Contains(t, out, "movies")
	assert.Contains(t, out, SymbolSuccess)
	assert.Contains(t, out, SymbolPending)
}

func TestRenderServerTableEmpty(t *testing.T) {
	assert.Equal(t, "No servers configured", RenderServerTable(nil))
}

func TestRenderSimpleTable(t *testing.T) {
	out := RenderSimpleTable(
		[]TableColumn{{Title: "A", Width: 5}, {Title: "B", Width: 5}},
		[][]string{{"one", "two"}},
	)
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "one")
}

func TestRenderSimpleTableEmpty(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 5}}, nil))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
