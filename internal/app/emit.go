package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/output"
	"github.com/blackwell-systems/unitreplay/internal/remote"
)

var emitCmd = &cobra.Command{
	Use:   "emit <unit> <index>",
	Short: "Re-fire a recorded event on the live unit",
	Long: `Re-fire a recorded event on the unit it was captured on. The charm's
deployed dispatch runs with the recorded environment restored and every
hook-tool call answered from the record, so the event plays out exactly
as captured even if the unit's live state has moved on since.

The index refers to the unit's own database ('fetch' it and run 'list'
against the copy to see what is there).`,
	Example: `  # Re-fire the third recorded event on app/0
  unitreplay emit app/0 2`,
	Args: cobra.ExactArgs(2),
	RunE: runEmit,
}

func init() {
	RootCmd.AddCommand(emitCmd)
}

func runEmit(cmd *cobra.Command, args []string) error {
	unit := args[0]
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}

	spinner := output.NewSpinner(fmt.Sprintf("Re-firing event %d on %s", index, unit))
	spinner.Start()

	client := remote.NewClient(nil, nil)
	if err := client.Emit(cmd.Context(), unit, index); err != nil {
		spinner.Stop()
		return err
	}
	spinner.StopWithMessage(fmt.Sprintf("Re-fired event %d on %s.", index, unit))
	return nil
}
