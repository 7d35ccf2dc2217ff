// Package monitor implements the live dashboard TUI.
//
// The dashboard renders one card per configured media server with CPU,
// memory, and GPU readings, driven by whatever delivery channel the feed
// currently runs (websocket push or HTTP polling). The model never talks to
// the network itself: it reads the feed's latest snapshots on a render tick
// and forwards mode toggles and refresh requests back to it.
//
// Layout follows the terminal size: cards flow into two columns on wide
// terminals and a single column below 100 columns. Enter opens a scrollable
// detail view for the selected server with usage history sparklines.
package monitor
