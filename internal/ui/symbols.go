package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // healthy / reporting
	SymbolFail     = "✗" // failed / unreachable
	SymbolPending  = "○" // no data yet
	SymbolProgress = "◐" // in progress
)
