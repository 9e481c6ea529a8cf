package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/output"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

var showVerbose bool

var showCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Show one recorded event in detail",
	Long: `Show the captured data of one event record: the hook-tool calls in the
order the charm made them, the snapshotted file paths, and (with
--verbose) the recorded results and the captured environment.`,
	Example: `  # Show the call sequence of event 2
  unitreplay show 2

  # Include recorded results and the environment
  unitreplay show 2 --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVarP(&showVerbose, "verbose", "v", false, "Include recorded results and environment")
	RootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Get(index)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no event at index %d (run 'unitreplay list')", index)
		}
		return err
	}

	fmt.Print(output.RenderEventDetail(rec, showVerbose))
	return nil
}
