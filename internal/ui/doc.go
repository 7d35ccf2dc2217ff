// Package ui holds the shared terminal rendering pieces: the color palette,
// status symbols, sparklines, and table formatting used by both the CLI
// commands and the dashboard.
package ui
