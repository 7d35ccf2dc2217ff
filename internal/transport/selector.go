// Package transport implements the two delivery channels for live metrics —
// a persistent WebSocket push channel and a timed HTTP pull channel — plus
// the policy that decides which of them a session may use.
package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tkarls/arrmon/internal/errors"
)

// Mode identifies the active metrics transport.
type Mode string

const (
	// ModePush is the persistent WebSocket channel.
	ModePush Mode = "push"
	// ModePull is the timed HTTP polling channel.
	ModePull Mode = "pull"
)

// Opposite returns the other transport mode.
func (m Mode) Opposite() Mode {
	if m == ModePush {
		return ModePull
	}
	return ModePush
}

// Stored preference values. The on-disk names predate the push/pull
// terminology and are kept for compatibility with existing preference files.
const (
	prefWebSocket = "websocket"
	prefPolling   = "polling"
)

// PreferenceKey is the fixed key the resolved mode is persisted under.
const PreferenceKey = "transport_mode"

// PreferenceValue returns the persisted encoding of the mode.
func (m Mode) PreferenceValue() string {
	if m == ModePush {
		return prefWebSocket
	}
	return prefPolling
}

// ModeFromPreference decodes a stored preference value. Anything other than
// the explicit websocket value, including an absent entry, means polling.
func ModeFromPreference(v string) Mode {
	if strings.TrimSpace(v) == prefWebSocket {
		return ModePush
	}
	return ModePull
}

// PreferenceStore is the persisted user preference collaborator. It is a
// plain key-value surface; the dashboard owns no logic inside it.
type PreferenceStore interface {
	Get(key string) string
	Set(key, value string) error
}

// DefaultProxyPort is the reverse-proxy entry point that carries WebSocket
// upgrades. Push is only eligible when the dashboard is reached through it
// (or through a default-port origin the proxy also serves).
const DefaultProxyPort = "8443"

// Selector decides whether the push transport is eligible for a session.
// The zero value uses DefaultProxyPort.
type Selector struct {
	ProxyPort string
}

// EligibleForPush reports whether the given serving origin can carry the
// push channel. The origin must be reachable through the reverse proxy:
// its port has to be the proxy port, the default HTTP port, or absent.
func (s Selector) EligibleForPush(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	proxyPort := s.ProxyPort
	if proxyPort == "" {
		proxyPort = DefaultProxyPort
	}

	switch u.Port() {
	case "", "80", proxyPort:
		return true
	default:
		return false
	}
}

// ResolveMode returns the transport mode for a new session: the stored
// preference is honored only while push is still eligible from this origin,
// otherwise polling is the default. The stored value is never rewritten
// here; an ineligible origin silently falls back for this session only.
func (s Selector) ResolveMode(store PreferenceStore, origin string) Mode {
	mode := ModeFromPreference(store.Get(PreferenceKey))
	if mode == ModePush && !s.EligibleForPush(origin) {
		return ModePull
	}
	return mode
}

// RequestMode validates and persists a user-initiated mode change. An
// ineligible push request is refused with an ELIGIBLE error and leaves the
// stored preference untouched.
func (s Selector) RequestMode(store PreferenceStore, origin string, mode Mode) error {
	if mode == ModePush && !s.EligibleForPush(origin) {
		return errors.New(errors.ErrEligible,
			fmt.Sprintf("Live updates are not available from %s", origin),
			"Access the dashboard through the reverse proxy to enable live updates.")
	}

	if err := store.Set(PreferenceKey, mode.PreferenceValue()); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Could not save the transport preference",
			"Check that the preference file is writable.")
	}
	return nil
}
