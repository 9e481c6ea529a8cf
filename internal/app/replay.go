package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/unitreplay/internal/intercept"
	"github.com/blackwell-systems/unitreplay/internal/output"
	"github.com/blackwell-systems/unitreplay/internal/replay"
	"github.com/blackwell-systems/unitreplay/internal/shim"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

var (
	replayCharmDir     string
	replayDispatch     string
	replayEventName    string
	replayRejectWrites bool
	replayMockRoot     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <index>",
	Short: "Re-fire a recorded event against local charm code",
	Long: `Re-fire one recorded event against a local charm checkout. The charm's
dispatch executable runs with the captured environment, and every
hook-tool call it makes is answered with the recorded result for that
position in the call sequence. Calls that diverge from the recording
fail with a mismatch error instead of inventing data.

Mutating calls (status-set, relation-set, ...) are diverted to a
per-session scratch and reported afterwards; with --reject-writes they
fail instead. The stored record is never modified, so the same event can
be replayed any number of times.`,
	Example: `  # Replay event 2 against ./my-charm/dispatch
  unitreplay replay 2 --charm-dir ./my-charm

  # Re-fire the same payload under a different event name
  unitreplay replay 2 --charm-dir ./my-charm --event config-changed

  # Fail on any write instead of diverting it
  unitreplay replay 2 --charm-dir ./my-charm --reject-writes

  # Point JUJU_CHARM_DIR at a synthetic root built from the checkout's
  # metadata, instead of the checkout itself
  unitreplay replay 2 --charm-dir ./my-charm --mock-root`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayCharmDir, "charm-dir", ".", "Charm root containing the dispatch executable")
	replayCmd.Flags().StringVar(&replayDispatch, "dispatch", "", "Dispatch executable (default: <charm-dir>/dispatch)")
	replayCmd.Flags().StringVar(&replayEventName, "event", "", "Substitute event name")
	replayCmd.Flags().BoolVar(&replayRejectWrites, "reject-writes", false, "Fail on mutating calls instead of diverting them")
	replayCmd.Flags().BoolVar(&replayMockRoot, "mock-root", false, "Run dispatch against a temporary charm root built from the checkout's metadata")
	RootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}

	storePath, err := getDBPath()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	charmDir, err := filepath.Abs(replayCharmDir)
	if err != nil {
		return err
	}
	dispatch := replayDispatch
	if dispatch == "" {
		dispatch = filepath.Join(charmDir, "dispatch")
	}
	if _, err := os.Stat(dispatch); err != nil {
		return fmt.Errorf("dispatch executable not found at %s", dispatch)
	}

	// Lay out the shim symlinks the dispatch process will resolve
	// hook-tool names to.
	shimDir, err := shim.DefaultDir()
	if err != nil {
		return err
	}
	if err := shim.EnsureBinary(shimDir); err != nil {
		return err
	}
	if _, _, err := shim.Sync(shimDir, registry); err != nil {
		return err
	}

	opts := []replay.Option{}
	if replayEventName != "" {
		opts = append(opts, replay.WithEventName(replayEventName))
	}
	if replayRejectWrites {
		opts = append(opts, replay.WithWritePolicy(intercept.WritesRejected))
	}

	entry := &replay.ExecEntrypoint{
		Command:      []string{dispatch},
		Dir:          charmDir,
		ShimDir:      shimDir,
		DBPath:       storePath,
		Index:        index,
		RejectWrites: replayRejectWrites,
	}

	// The framework reads metadata from JUJU_CHARM_DIR before dispatching.
	// With --mock-root that directory is a throwaway built from the
	// checkout's metadata, so the recorded unit's deployed charm dir is
	// not needed on this machine.
	if replayMockRoot {
		meta, err := replay.LoadCharmMeta(charmDir)
		if err != nil {
			return fmt.Errorf("cannot mock charm root from %s: %w", charmDir, err)
		}
		tmp, err := os.MkdirTemp("", "unitreplay-charm-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		root, err := replay.MockCharmRoot(tmp, meta)
		if err != nil {
			return err
		}
		entry.ExtraEnv = map[string]string{"JUJU_CHARM_DIR": root}
	}

	driver := replay.NewDriver(st, registry, nil)
	res, err := driver.Replay(cmd.Context(), index, entry, opts...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no event at index %d (run 'unitreplay list')", index)
		}
		return err
	}

	fmt.Print(output.RenderReplaySummary(res.EventName, len(res.Writes), res.Remaining))
	return nil
}
