package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tkarls/arrmon/internal/ui"
)

// Persistent flags shared by every command.
var (
	configFlag string
	colorFlag  string
)

// rootCmd is the base command for arrmon.
var rootCmd = &cobra.Command{
	Use:   "arrmon",
	Short: "Live metrics dashboard for self-hosted media servers",
	Long: `arrmon watches the media servers behind your reverse proxy and shows
their CPU, memory, and GPU load in a terminal dashboard.

Metrics arrive over a WebSocket push channel when the dashboard is reached
through the reverse proxy, and fall back to HTTP polling everywhere else.

Get started:
  arrmon init            Create a config file
  arrmon server add      Register a server
  arrmon monitor         Open the dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.ConfigureColor(colorFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file (default: .arrmon.yaml, then ~/.config/arrmon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "color output: auto, always, never")
}

// Execute runs the root command and exits non-zero on failure. Errors are
// already formatted for the terminal by the errors package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
