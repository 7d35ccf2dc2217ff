package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/tkarls/arrmon/internal/config"
	"github.com/tkarls/arrmon/internal/errors"
	"github.com/tkarls/arrmon/internal/ui"
)

// initCommand creates a new .arrmon.yaml in the current directory.
func initCommand(force bool) error {
	configPath := filepath.Join(".", config.ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !force {
		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(config.ConfigFileName + " already exists. Overwrite?").
					Description("The existing config will be replaced").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your input",
				"Try again or use --force to overwrite.")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	baseURL := ""
	origin := ""
	proxyPort := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Metrics API base URL").
				Description("Where metrics are fetched from, e.g. https://nas.local:8443").
				Value(&baseURL).
				Validate(validateHTTPInput),
			huh.NewInput().
				Title("Dashboard origin").
				Description("The address you reach the dashboard on; decides live-update availability").
				Value(&origin).
				Validate(validateHTTPInput),
			huh.NewInput().
				Title("Reverse proxy port").
				Description("Leave empty for the default (8443)").
				Value(&proxyPort),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			fmt.Println("Cancelled.")
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your input",
			"Try again, or create "+config.ConfigFileName+" by hand.")
	}

	cfg := config.DefaultConfig()
	cfg.Dashboard = config.Dashboard{
		BaseURL:   strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		Origin:    strings.TrimSpace(origin),
		ProxyPort: strings.TrimSpace(proxyPort),
	}
	cfg.Dashboard.SocketURL = config.DeriveSocketURL(cfg.Dashboard.BaseURL)

	if err := writeConfigFile(configPath, cfg); err != nil {
		return err
	}

	fmt.Printf("%s Created %s\n", ui.SymbolSuccess, configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  arrmon server add    Register a server")
	fmt.Println("  arrmon monitor       Open the dashboard")
	if token := config.LoadToken(configPath); token == "" {
		fmt.Printf("\nSet %s (or put it in a .env file next to the config)\n", config.TokenEnvVar)
		fmt.Println("to enable live updates over WebSocket.")
	}
	return nil
}

// validateHTTPInput accepts only http(s) URLs with a host.
func validateHTTPInput(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http:// or https:// URL")
	}
	return nil
}

// writeConfigFile renders the config with a help header. Durations are
// written in their human form (2s, not nanoseconds), so the body is built
// by hand rather than marshaled.
func writeConfigFile(configPath string, cfg *config.Config) error {
	var b strings.Builder
	b.WriteString(`# arrmon configuration
# Run 'arrmon monitor' to open the dashboard
# See: https://github.com/tkarls/arrmon for documentation

`)
	fmt.Fprintf(&b, "version: %d\n", cfg.Version)
	b.WriteString("dashboard:\n")
	fmt.Fprintf(&b, "  base_url: %s\n", cfg.Dashboard.BaseURL)
	if cfg.Dashboard.SocketURL != "" {
		fmt.Fprintf(&b, "  socket_url: %s\n", cfg.Dashboard.SocketURL)
	}
	fmt.Fprintf(&b, "  origin: %s\n", cfg.Dashboard.Origin)
	if cfg.Dashboard.ProxyPort != "" {
		fmt.Fprintf(&b, "  proxy_port: %q\n", cfg.Dashboard.ProxyPort)
	}
	b.WriteString("monitor:\n")
	fmt.Fprintf(&b, "  poll_interval: %s\n", cfg.Monitor.PollInterval)
	fmt.Fprintf(&b, "  stale_after: %s\n", cfg.Monitor.StaleAfter)
	fmt.Fprintf(&b, "  history_size: %d\n", cfg.Monitor.HistorySize)

	if err := os.WriteFile(configPath, []byte(b.String()), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write config file to %s", configPath),
			"Check that you have write permissions.")
	}

	return nil
}
