package cli

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tkarls/arrmon/internal/config"
	"github.com/tkarls/arrmon/internal/errors"
	"github.com/tkarls/arrmon/internal/feed"
	"github.com/tkarls/arrmon/internal/monitor"
	"github.com/tkarls/arrmon/internal/prefs"
	"github.com/tkarls/arrmon/internal/transport"
)

// monitorCommand starts the TUI metrics dashboard. A non-zero interval
// overrides the configured polling cadence.
func monitorCommand(interval time.Duration) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Servers) == 0 {
		return errors.New(errors.ErrConfig,
			"No servers configured",
			"Add one with 'arrmon server add' first.")
	}

	store, err := openPrefs()
	if err != nil {
		return err
	}

	pollInterval := cfg.Monitor.PollInterval
	if interval > 0 {
		pollInterval = interval
	}

	f := feed.New(feed.Config{
		BaseURL:      cfg.Dashboard.BaseURL,
		SocketURL:    cfg.Dashboard.SocketURL,
		Token:        config.LoadToken(configPath),
		Origin:       cfg.Dashboard.Origin,
		Store:        store,
		Selector:     transport.Selector{ProxyPort: cfg.Dashboard.ProxyPort},
		PollInterval: pollInterval,
	})

	f.SetServers(cfg.ServerIDs())
	f.Start()

	model := monitor.NewModel(f, cfg.Servers, monitor.Options{
		StaleAfter:  cfg.Monitor.StaleAfter,
		HistorySize: cfg.Monitor.HistorySize,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()

	// Graceful shutdown: tear down the active channel
	f.Close()

	return err
}

// loadConfig loads and validates the config, honoring the --config flag.
func loadConfig() (*config.Config, string, error) {
	path, err := config.Find(configFlag)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", errors.New(errors.ErrConfig,
			"No config file found",
			"Run 'arrmon init' first to create one.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// openPrefs opens the preference store at its default location.
func openPrefs() (*prefs.Store, error) {
	path, err := prefs.DefaultPath()
	if err != nil {
		return nil, err
	}
	return prefs.Open(path)
}
