package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tkarls/arrmon/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but arrmon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest arrmon: https://github.com/tkarls/arrmon/releases")
	}

	if err := validateDashboard(cfg.Dashboard); err != nil {
		return err
	}

	seenIDs := make(map[int64]string)
	seenNames := make(map[string]bool)
	for _, s := range cfg.Servers {
		if err := validateServer(s); err != nil {
			return err
		}
		if prev, dup := seenIDs[s.ID]; dup {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Servers '%s' and '%s' share id %d", prev, s.Name, s.ID),
				"Every server needs the id the backend assigned it. Check the dashboard's server list.")
		}
		seenIDs[s.ID] = s.Name
		if seenNames[s.Name] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Duplicate server name '%s'", s.Name),
				"Server names are how you refer to them on the command line, so they must be unique.")
		}
		seenNames[s.Name] = true
	}

	if err := validateMonitor(cfg.Monitor); err != nil {
		return err
	}

	return nil
}

func validateDashboard(d Dashboard) error {
	if d.BaseURL == "" {
		return errors.New(errors.ErrConfig,
			"No dashboard base_url configured",
			"Set dashboard.base_url to your management API root, e.g. https://nas.local:8443")
	}
	if err := validateHTTPURL("dashboard.base_url", d.BaseURL); err != nil {
		return err
	}

	if d.SocketURL != "" {
		u, err := url.Parse(d.SocketURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("dashboard.socket_url '%s' is not a ws:// or wss:// URL", d.SocketURL),
				"Leave it empty to derive the endpoint from base_url.")
		}
	}

	if d.Origin != "" {
		if err := validateHTTPURL("dashboard.origin", d.Origin); err != nil {
			return err
		}
	}
	return nil
}

func validateServer(s Server) error {
	if s.Name == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server with id %d has no name", s.ID),
			"Give every server a display name.")
	}
	if s.ID <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' has id %d; ids must be positive", s.Name, s.ID),
			"Use the id the backend assigned. A zero id would silently never be polled.")
	}
	if s.Kind != "" && !KnownKinds[s.Kind] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' has unknown kind '%s'", s.Name, s.Kind),
			"Known kinds: "+strings.Join(sortedKinds(), ", "))
	}
	if s.URL != "" {
		if err := validateHTTPURL(fmt.Sprintf("server '%s' url", s.Name), s.URL); err != nil {
			return err
		}
	}
	return nil
}

func validateMonitor(m Monitor) error {
	if m.PollInterval < 0 {
		return errors.New(errors.ErrConfig,
			"monitor.poll_interval cannot be negative",
			"Use a duration like 2s, or leave it unset for the default.")
	}
	if m.StaleAfter < 0 {
		return errors.New(errors.ErrConfig,
			"monitor.stale_after cannot be negative",
			"Use a duration like 15s, or leave it unset for the default.")
	}
	if m.HistorySize < 0 {
		return errors.New(errors.ErrConfig,
			"monitor.history_size cannot be negative",
			"Use a sample count like 120, or leave it unset for the default.")
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s '%s' is not a valid http(s) URL", field, raw),
			"Include the scheme, e.g. https://nas.local:8443")
	}
	return nil
}

func sortedKinds() []string {
	kinds := make([]string, 0, len(KnownKinds))
	for k := range KnownKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
