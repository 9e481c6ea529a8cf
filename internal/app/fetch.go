package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/output"
	"github.com/blackwell-systems/unitreplay/internal/remote"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <unit>",
	Short: "Pull the recorded database from a unit",
	Long: `Copy the event database from a unit to the local machine and print a
summary of what it contains. The copy is a plain SQLite file; 'list',
'show', and 'replay' operate on it via --db (or place it at the default
database path).`,
	Example: `  # Fetch to ./app-0.db
  unitreplay fetch app/0

  # Fetch to an explicit path
  unitreplay fetch app/0 -o /tmp/events.db`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Local path for the fetched database (default: ./<unit>.db)")
	RootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	unit := args[0]

	localPath := fetchOutput
	if localPath == "" {
		localPath = strings.ReplaceAll(unit, "/", "-") + ".db"
	}

	spinner := output.NewSpinner(fmt.Sprintf("Fetching database from %s", unit))
	spinner.Start()

	client := remote.NewClient(nil, nil)
	if err := client.Fetch(cmd.Context(), unit, localPath); err != nil {
		spinner.Stop()
		return err
	}
	spinner.Stop()

	st, err := store.Open(localPath)
	if err != nil {
		return fmt.Errorf("fetched database is unreadable: %w", err)
	}
	defer st.Close()

	count, err := st.Count()
	if err != nil {
		return fmt.Errorf("fetched database is unreadable: %w", err)
	}

	fmt.Printf("Fetched %d recorded events to %s.\n", count, localPath)
	fmt.Printf("Run 'unitreplay list --db %s' to inspect them.\n", localPath)
	return nil
}
