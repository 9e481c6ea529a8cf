package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/config"
)

var (
	dbPath string

	// RootCmd is the root command for unitreplay
	RootCmd = &cobra.Command{
		Use:   "unitreplay",
		Short: "Record and replay Juju charm events for offline debugging",
		Long: `unitreplay captures everything a charm sees while handling an event on a
live unit (the environment, every hook-tool call and its result, the
contents of tracked files) and stores it as an immutable event record.
Any recorded event can later be re-fired against the charm code with the
exact captured data, with no controller or unit in sight.

Quick Start:
  1. unitreplay install <unit>     # push the recording layer to a unit
  2. trigger some events (juju config, relation changes, update-status...)
  3. unitreplay fetch <unit>       # pull the recorded database back
  4. unitreplay list
  5. unitreplay replay <index> --charm-dir ./my-charm

Examples:
  # See what was recorded
  unitreplay list
  unitreplay show 2 --verbose

  # Re-fire event 2 against a local charm checkout
  unitreplay replay 2 --charm-dir ./my-charm

  # What if the same payload had arrived as a different event?
  unitreplay replay 2 --charm-dir ./my-charm --event config-changed

  # Clear a recording that was interrupted mid-event
  unitreplay abort`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("unitreplay: record and replay Juju charm events")
			fmt.Println()
			fmt.Println("Run 'unitreplay list' to see recorded events.")
			fmt.Println("Run 'unitreplay --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.unitreplay/unitreplay.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// getDBPath returns the database path: the --db flag if set, then the
// config file, then the default under the home directory (created on
// demand).
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	if dir, err := config.Dir(); err == nil {
		if settings, err := config.LoadSettings(dir); err == nil && settings.DBPath != "" {
			return settings.DBPath, nil
		}
	}

	defaultPath, err := config.DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(defaultPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create unitreplay directory: %w", err)
	}
	return defaultPath, nil
}
