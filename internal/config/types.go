package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// KnownKinds are the media server types the dashboard understands. The kind
// only affects display (icon, grouping); an unknown kind is a config error
// to catch typos early.
var KnownKinds = map[string]bool{
	"sonarr":   true,
	"radarr":   true,
	"lidarr":   true,
	"readarr":  true,
	"prowlarr": true,
	"bazarr":   true,
	"plex":     true,
	"jellyfin": true,
	"other":    true,
}

// Config represents the complete .arrmon.yaml configuration file.
type Config struct {
	Version   int       `yaml:"version" mapstructure:"version"`
	Dashboard Dashboard `yaml:"dashboard" mapstructure:"dashboard"`
	Servers   []Server  `yaml:"servers" mapstructure:"servers"`
	Monitor   Monitor   `yaml:"monitor" mapstructure:"monitor"`
}

// Dashboard holds the endpoints the feed talks to.
type Dashboard struct {
	// BaseURL is the management API root metrics are polled from,
	// e.g. "https://nas.local:8443".
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// SocketURL is the websocket endpoint for live updates. When empty it is
	// derived from BaseURL (scheme swapped to ws/wss, path /ws/metrics).
	SocketURL string `yaml:"socket_url" mapstructure:"socket_url"`

	// Origin is the address this dashboard is reached on. Its port decides
	// whether live updates are available: traffic through the reverse proxy
	// qualifies, a direct backend port does not.
	Origin string `yaml:"origin" mapstructure:"origin"`

	// ProxyPort overrides the default reverse-proxy port (8443).
	ProxyPort string `yaml:"proxy_port" mapstructure:"proxy_port"`
}

// Server is one monitored media server.
type Server struct {
	// ID is the backend identifier metrics are keyed by. Must be positive;
	// the backend uses 0 for "no server".
	ID int64 `yaml:"id" mapstructure:"id"`

	// Name is the display name, unique within the config.
	Name string `yaml:"name" mapstructure:"name"`

	// Kind is one of KnownKinds. Defaults to "other".
	Kind string `yaml:"kind" mapstructure:"kind"`

	// URL is the server's own web UI, used for the open-in-browser action.
	URL string `yaml:"url" mapstructure:"url"`

	// Tags for filtering with --tag.
	Tags []string `yaml:"tags" mapstructure:"tags"`
}

// Monitor controls dashboard refresh behavior.
type Monitor struct {
	// PollInterval is the pull channel cadence.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// StaleAfter is how long without data before the staleness warning shows.
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`

	// HistorySize is how many samples the sparklines keep per server.
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`
}

// ServerIDs returns the configured identifiers in declaration order.
func (c *Config) ServerIDs() []int64 {
	ids := make([]int64, 0, len(c.Servers))
	for _, s := range c.Servers {
		ids = append(ids, s.ID)
	}
	return ids
}

// ServerByID returns the server record for id.
func (c *Config) ServerByID(id int64) (Server, bool) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s, true
		}
	}
	return Server{}, false
}

// ServerByName returns the server record with the given display name.
func (c *Config) ServerByName(name string) (Server, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return Server{}, false
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Monitor: Monitor{
			PollInterval: 2 * time.Second,
			StaleAfter:   15 * time.Second,
			HistorySize:  120,
		},
	}
}
