package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"dev", "dev"},
		{"", ""},
		{"1.2.3", "v1.2.3"},
		{"v1.2.3", "v1.2.3"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatVersion(tt.input))
	}
}

func TestRenderBuildInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer SetVersionInfo(origVersion, origCommit, origDate)

	SetVersionInfo("1.4.0", "deadbeef", "2026-08-01")
	out := renderBuildInfo()

	assert.Contains(t, out, "arrmon v1.4.0")
	assert.Contains(t, out, "deadbeef")
	assert.Contains(t, out, "2026-08-01")
	assert.Contains(t, out, "platform")
}

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer SetVersionInfo(origVersion, origCommit, origDate)

	SetVersionInfo("2.0.0", "abc123", "2026-01-01")

	assert.Equal(t, "2.0.0", GetVersion())
	assert.Equal(t, "abc123", commit)
	assert.Equal(t, "2026-01-01", date)
}
