package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tkarls/arrmon/internal/errors"
)

// Command-specific flags
var (
	monitorIntervalFlag string
	initForce           bool
	serverAddID         int64
	serverAddName       string
	serverAddKind       string
	serverAddURL        string
)

// monitorCmd starts the TUI metrics dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Open the live metrics dashboard",
	Long: `Start an interactive TUI dashboard showing live metrics for every
configured server.

Displays CPU, memory, and GPU (when available) with sparklines and
color-coded thresholds. Metrics arrive over WebSocket push when the
dashboard origin goes through the reverse proxy, or HTTP polling otherwise.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  t           Toggle live updates / polling
  r           Refresh now (or reconnect when live updates are down)
  s           Cycle sort order
  up/k        Select previous server
  down/j      Select next server
  Enter       Expand selected server details
  Esc         Collapse / go back
  ?           Show help

Examples:
  arrmon monitor
  arrmon monitor --interval 5s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Parse interval override
		var interval time.Duration
		if monitorIntervalFlag != "" {
			parsed, err := time.ParseDuration(monitorIntervalFlag)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					fmt.Sprintf("Invalid interval: %s", monitorIntervalFlag),
					"Use a valid duration like 2s, 5s, or 1m")
			}
			if parsed < 500*time.Millisecond {
				return errors.New(errors.ErrConfig,
					"Interval too short",
					"Minimum interval is 500ms to avoid overwhelming servers")
			}
			interval = parsed
		}

		return monitorCommand(interval)
	},
}

// serverCmd groups the server management subcommands
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage monitored servers",
	Long: `Add, remove, and list the servers the dashboard monitors.

Examples:
  arrmon server add
  arrmon server add --id 4 --name music --kind lidarr --url http://nas:8686
  arrmon server remove 4
  arrmon server list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverList()
	},
}

// serverAddCmd registers a new server in the config
var serverAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a server to the config",
	Long: `Register a new server for monitoring.

Without flags, prompts interactively for the details. The server id must
match the backend identifier the metrics API reports.

Examples:
  arrmon server add
  arrmon server add --id 4 --name music --kind lidarr --url http://nas:8686`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverAdd(ServerAddOptions{
			ID:   serverAddID,
			Name: serverAddName,
			Kind: serverAddKind,
			URL:  serverAddURL,
		})
	},
}

// serverRemoveCmd removes a server from the config
var serverRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a server from the config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		return serverRemove(arg)
	},
}

// serverListCmd lists configured servers
var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverList()
	},
}

// modeCmd shows or sets the transport preference
var modeCmd = &cobra.Command{
	Use:   "mode [live|polling]",
	Short: "Show or set the metrics transport",
	Long: `Show the current metrics transport, or set the preference.

"live" keeps a WebSocket open for pushed updates; it is only available
when the dashboard origin goes through the reverse proxy. "polling" fetches
metrics over HTTP on a fixed cadence and works from any origin.

Examples:
  arrmon mode
  arrmon mode live
  arrmon mode polling`,
	ValidArgs: []string{"live", "polling"},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		return modeCommand(arg)
	},
}

// initCmd creates a new .arrmon.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .arrmon.yaml configuration",
	Long: `Initialize a new arrmon configuration file.

Creates a .arrmon.yaml file in the current directory and guides you
through the dashboard endpoints with interactive prompts.

Examples:
  arrmon init
  arrmon init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initForce)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for arrmon.

Examples:
  # Bash
  arrmon completion bash > /etc/bash_completion.d/arrmon

  # Zsh
  arrmon completion zsh > "${fpath[1]}/_arrmon"

  # Fish
  arrmon completion fish > ~/.config/fish/completions/arrmon.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// monitor command flags
	monitorCmd.Flags().StringVar(&monitorIntervalFlag, "interval", "", "polling interval override (e.g., 2s, 5s, 1m)")

	// server add command flags
	serverAddCmd.Flags().Int64Var(&serverAddID, "id", 0, "backend server identifier")
	serverAddCmd.Flags().StringVar(&serverAddName, "name", "", "display name")
	serverAddCmd.Flags().StringVar(&serverAddKind, "kind", "", "server kind (sonarr, radarr, plex, ...)")
	serverAddCmd.Flags().StringVar(&serverAddURL, "url", "", "management URL")

	// init command flags
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")

	// Register all commands
	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverListCmd)

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
