package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events",
	Long: `List every committed event record in the database, oldest first.

The index column is what 'show' and 'replay' take: the position of the
event in recording order. An event being recorded right now does not
appear until it commits.`,
	Example: `  # List events from the default database
  unitreplay list

  # List events from a fetched database
  unitreplay list --db ./app-0.db`,
	RunE: runList,
}

func init() {
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	fmt.Print(output.RenderEventList(events))
	return nil
}
