package cli

import (
	"fmt"

	"github.com/tkarls/arrmon/internal/transport"
	"github.com/tkarls/arrmon/internal/ui"
)

// modeLabel is the user-facing name for a transport mode.
func modeLabel(m transport.Mode) string {
	if m == transport.ModePush {
		return "live"
	}
	return "polling"
}

// parseModeArg maps the CLI argument to a transport mode. Cobra has already
// restricted the argument to the valid values.
func parseModeArg(arg string) transport.Mode {
	if arg == "live" {
		return transport.ModePush
	}
	return transport.ModePull
}

// modeCommand shows the current transport, or persists a new preference
// when an argument is given.
func modeCommand(arg string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openPrefs()
	if err != nil {
		return err
	}

	selector := transport.Selector{ProxyPort: cfg.Dashboard.ProxyPort}
	origin := cfg.Dashboard.Origin

	if arg == "" {
		stored := transport.ModeFromPreference(store.Get(transport.PreferenceKey))
		effective := selector.ResolveMode(store, origin)

		fmt.Printf("Transport: %s\n", modeLabel(effective))
		if stored != effective {
			// Preference is live but this origin can't carry it
			fmt.Printf("  (preference is %s, but live updates are not available from %s)\n",
				modeLabel(stored), origin)
		}
		if !selector.EligibleForPush(origin) {
			fmt.Println("\nLive updates need the dashboard to be reached through the reverse proxy.")
		}
		return nil
	}

	mode := parseModeArg(arg)
	if err := selector.RequestMode(store, origin, mode); err != nil {
		return err
	}

	fmt.Printf("%s Transport set to %s\n", ui.SymbolSuccess, modeLabel(mode))
	return nil
}
