package feed

import (
	"time"

	"github.com/tkarls/arrmon/internal/transport"
)

// Health summarizes the delivery path without exposing which transport
// backs it.
type Health int

const (
	// HealthDisconnected: no channel active (startup, or explicit teardown).
	HealthDisconnected Health = iota
	// HealthConnecting: a channel is being established.
	HealthConnecting
	// HealthConnected: data has been flowing on the active channel.
	HealthConnected
	// HealthFailed: the active channel died and nothing replaced it yet.
	HealthFailed
)

func (h Health) String() string {
	switch h {
	case HealthDisconnected:
		return "disconnected"
	case HealthConnecting:
		return "connecting"
	case HealthConnected:
		return "connected"
	case HealthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a point-in-time view of the feed for rendering.
type State struct {
	Mode       transport.Mode
	Health     Health
	Switching  bool
	LastUpdate time.Time
	LastError  error
}
