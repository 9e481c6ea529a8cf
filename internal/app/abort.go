package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/recorder"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Discard an in-progress recording",
	Long: `Discard the event recording currently in progress, if any.

Only one event can be recorded at a time; a recording that was
interrupted (a crashed dispatch, a lost connection) blocks the next one
until it is aborted. Committed records are never touched.`,
	Example: `  # Clear a stuck recording in a fetched database
  unitreplay abort --db ./app-0.db`,
	RunE: runAbort,
}

func init() {
	RootCmd.AddCommand(abortCmd)
}

func runAbort(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec := recorder.New(st, hook.Default())
	sess, err := rec.Resume()
	if err != nil {
		if errors.Is(err, store.ErrNoDraft) {
			fmt.Println("No recording in progress.")
			return nil
		}
		return err
	}

	name := sess.Name()
	if err := sess.Abort(); err != nil {
		return fmt.Errorf("failed to abort recording: %w", err)
	}
	fmt.Printf("Discarded in-progress recording of %q.\n", name)
	return nil
}
