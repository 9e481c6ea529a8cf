// Command unitreplay-shim is the hook-tool interceptor. It sits in a
// directory that precedes the agent's tools in PATH, with one symlink per
// hook tool (relation-get, config-get, ...) pointing at it. The tool being
// impersonated is determined via filepath.Base(os.Args[0]).
//
// In record mode the call is passed through to the real tool and the
// result is appended to the in-progress event record. In replay mode the
// call is answered from a committed record, sharing consumption state with
// the other shim processes of the same replay through a session file.
//
// Invoked under its own name, the binary handles the recording lifecycle
// (begin, record-watch, commit, abort, sync-tools) for the dispatch
// wrapper and the remote installer, and re-fires committed events through
// the real dispatch (emit).
//
// The shim never logs through juju-log: that is one of the tools it
// intercepts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/blackwell-systems/unitreplay/internal/config"
	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/intercept"
	"github.com/blackwell-systems/unitreplay/internal/recorder"
	"github.com/blackwell-systems/unitreplay/internal/remote"
	"github.com/blackwell-systems/unitreplay/internal/replay"
	"github.com/blackwell-systems/unitreplay/internal/shim"
	"github.com/blackwell-systems/unitreplay/internal/store"
	"github.com/blackwell-systems/unitreplay/internal/trackedfs"
)

func main() {
	name := filepath.Base(os.Args[0])

	var err error
	if name == shim.BinaryName {
		err = runControl(os.Args[1:])
	} else {
		err = runTool(hook.Op(name), os.Args[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", shim.BinaryName, err)
		os.Exit(1)
	}
}

// runControl handles lifecycle subcommands invoked under the binary's own
// name.
func runControl(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s begin|record-watch|commit|abort|emit <index>|sync-tools <dir>", shim.BinaryName)
	}

	switch args[0] {
	case "sync-tools":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s sync-tools <dir>", shim.BinaryName)
		}
		_, _, err := shim.Sync(args[1], hook.Default())
		return err

	case "begin":
		return beginRecording()

	case "record-watch":
		return watchRecording()

	case "emit":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s emit <index>", shim.BinaryName)
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[1], err)
		}
		return emitRecorded(index)

	case "commit":
		return finishRecording(func(s *recorder.Session) error {
			_, err := s.Commit()
			return err
		})

	case "abort":
		return finishRecording((*recorder.Session).Abort)

	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func openStoreFromEnv() (*store.Store, error) {
	path := os.Getenv(replay.DBEnv)
	if path == "" {
		return nil, fmt.Errorf("%s is not set", replay.DBEnv)
	}
	return store.Open(path)
}

// environMap flattens os.Environ into a map.
func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}

// beginRecording opens a draft for the event being dispatched and
// snapshots the configured tracked files into it.
func beginRecording() error {
	st, err := openStoreFromEnv()
	if err != nil {
		return err
	}
	defer st.Close()

	env := environMap()
	name := recorder.EventNameFromEnv(env)
	if name == "" {
		return fmt.Errorf("cannot determine event name from environment")
	}

	sess, err := recorder.New(st, hook.Default()).Begin(name, env)
	if err != nil {
		return err
	}

	// Tracked files are captured as they were when the event started.
	set, err := loadTrackedSet()
	if err != nil {
		return err
	}
	if set != nil {
		if err := trackedfs.Snapshot(set, sess); err != nil {
			return err
		}
	}
	return nil
}

// loadTrackedSet builds the tracked-path set from configuration. A nil set
// means no paths are configured.
func loadTrackedSet() (*trackedfs.Set, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, nil
	}
	paths, err := config.LoadTrackedPaths(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return trackedfs.NewSet(paths)
}

// watchRecording re-snapshots tracked files that change while the event is
// dispatching. The dispatch wrapper backgrounds it right after begin and
// signals it before commit or abort.
func watchRecording() error {
	st, err := openStoreFromEnv()
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := recorder.New(st, hook.Default()).Resume()
	if err != nil {
		return err
	}

	set, err := loadTrackedSet()
	if err != nil {
		return err
	}
	if set == nil {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return trackedfs.Watch(ctx, set, sess)
}

// emitRecorded re-fires a committed event through the charm's real
// dispatch: the recorded environment is restored and the hook tools are
// answered from the record by sibling shim processes. Paths are derived
// from the binary's install location under the agent directory.
func emitRecorded(index int) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	shimDir := filepath.Dir(self)
	base := filepath.Dir(shimDir)
	dispatch := filepath.Join(filepath.Dir(base), "charm", "dispatch")
	if _, err := os.Stat(dispatch); err != nil {
		return fmt.Errorf("charm dispatch not found: %w", err)
	}

	dbPath := filepath.Join(base, remote.DBFileName)
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	entry := &replay.ExecEntrypoint{
		Command: []string{dispatch},
		Dir:     filepath.Dir(dispatch),
		ShimDir: shimDir,
		DBPath:  dbPath,
		Index:   index,
	}
	res, err := replay.NewDriver(st, hook.Default(), nil).Replay(context.Background(), index, entry)
	if err != nil {
		return err
	}
	fmt.Printf("emitted %s (%d)\n", res.EventName, index)
	return nil
}

func finishRecording(end func(*recorder.Session) error) error {
	st, err := openStoreFromEnv()
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := recorder.New(st, hook.Default()).Resume()
	if err != nil {
		return err
	}
	return end(sess)
}

// runTool answers one intercepted hook-tool call.
func runTool(op hook.Op, args []string) error {
	sig := hook.Signature{Op: op, Args: args}

	var result json.RawMessage
	var err error
	switch os.Getenv(replay.ModeEnv) {
	case replay.ModeRecord:
		result, err = recordCall(sig)
	case replay.ModeReplay:
		result, err = replayCall(sig)
	default:
		return fmt.Errorf("%s is not set; refusing to intercept %s", replay.ModeEnv, op)
	}
	if err != nil {
		return err
	}
	return writeResult(os.Stdout, result)
}

// recordCall passes the call through to the real tool and appends the
// result to the in-progress record.
func recordCall(sig hook.Signature) (json.RawMessage, error) {
	st, err := openStoreFromEnv()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	sess, err := recorder.New(st, hook.Default()).Resume()
	if err != nil {
		return nil, err
	}

	toolDir, err := shim.RealToolDir(os.Getenv("JUJU_UNIT_NAME"))
	if err != nil {
		return nil, err
	}

	backend := intercept.NewRecording(&intercept.Exec{ToolDir: toolDir}, sess)
	return backend.Call(context.Background(), sig)
}

// replayCall answers the call from the committed record named by the
// control environment, sharing per-op cursors with sibling shim processes
// through the session file.
func replayCall(sig hook.Signature) (json.RawMessage, error) {
	st, err := openStoreFromEnv()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	index, err := strconv.Atoi(os.Getenv(replay.IndexEnv))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", replay.IndexEnv, err)
	}
	rec, err := st.Get(index)
	if err != nil {
		return nil, err
	}

	stateFile := os.Getenv(replay.SessionFileEnv)
	if stateFile == "" {
		return nil, fmt.Errorf("%s is not set", replay.SessionFileEnv)
	}
	state, err := replay.LoadState(stateFile)
	if err != nil {
		return nil, err
	}

	policy := intercept.WritesToScratch
	if os.Getenv(replay.WritesEnv) == replay.WritesReject {
		policy = intercept.WritesRejected
	}

	table := intercept.NewTable(rec.Calls)
	table.SetCursors(state.Cursors)

	backend := intercept.NewReplaying(table, rec.Files, hook.Default(), policy)
	result, callErr := backend.Call(context.Background(), sig)

	state.Cursors = table.Cursors()
	for _, w := range backend.Writes() {
		state.Writes = append(state.Writes, w.Signature)
	}
	if err := replay.SaveState(stateFile, state); err != nil {
		return nil, err
	}
	return result, callErr
}

// writeResult prints a recorded JSON result the way the real tool would
// have printed it: JSON strings unquoted, null as nothing, everything else
// verbatim.
func writeResult(w *os.File, result json.RawMessage) error {
	if len(result) == 0 || string(result) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		_, err := fmt.Fprint(w, s)
		return err
	}
	_, err := w.Write(result)
	if err == nil {
		fmt.Fprintln(w)
	}
	return err
}
