package replay

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/intercept"
)

// ExecEntrypoint replays a real dispatch executable (a charm's ./dispatch)
// instead of an in-process handler. The session environment is handed to
// the child process together with a PATH that puts the shim directory
// first, so every hook-tool call the charm makes lands in a shim process
// answering from the same session.
//
// The in-process backend is unused here: interception happens in the shim
// processes, which share state through the session file.
type ExecEntrypoint struct {
	// Command is the dispatch executable and its arguments.
	Command []string

	// Dir is the working directory for the dispatch process; usually the
	// charm root.
	Dir string

	// ShimDir contains the hook-tool shim symlinks; prepended to PATH.
	ShimDir string

	// DBPath and Index tell the shims which record answers their calls.
	DBPath string
	Index  int

	// RejectWrites makes the shims fail mutating calls instead of
	// diverting them to the session scratch.
	RejectWrites bool

	// ExtraEnv adds to or overrides the session environment; it is how a
	// mocked charm root repoints JUJU_CHARM_DIR.
	ExtraEnv map[string]string

	// SessionFile is where the shims share their consumption cursors.
	// Empty means a file in the system temp directory.
	SessionFile string

	Stdout, Stderr *os.File
}

// Dispatch runs the dispatch executable to completion and returns its exit
// status verbatim. The shims' consumption state is merged back into the
// session backend afterwards, so the replay summary stays accurate.
func (e *ExecEntrypoint) Dispatch(ctx context.Context, env map[string]string, backend hook.Backend) error {
	if len(e.Command) == 0 {
		return fmt.Errorf("no dispatch command configured")
	}

	stateFile := e.SessionFile
	if stateFile == "" {
		stateFile = filepath.Join(os.TempDir(), fmt.Sprintf("unitreplay-session-%d.json", os.Getpid()))
	}
	if err := SaveState(stateFile, &State{Index: e.Index}); err != nil {
		return err
	}
	defer RemoveState(stateFile)

	if len(e.ExtraEnv) > 0 {
		merged := make(map[string]string, len(env)+len(e.ExtraEnv))
		for k, v := range env {
			merged[k] = v
		}
		for k, v := range e.ExtraEnv {
			merged[k] = v
		}
		env = merged
	}

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Dir = e.Dir
	cmd.Env = buildExecEnv(env, e.ShimDir, e.DBPath, e.Index, stateFile, e.RejectWrites)
	if e.Stdout != nil {
		cmd.Stdout = e.Stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	if e.Stderr != nil {
		cmd.Stderr = e.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	runErr := cmd.Run()

	if st, err := LoadState(stateFile); err == nil {
		if rb, ok := backend.(*intercept.Replaying); ok {
			rb.AdoptState(st.Cursors, st.Writes)
		}
	}
	return runErr
}

// buildExecEnv flattens the session environment and layers the replay
// control variables and the shim PATH on top.
func buildExecEnv(env map[string]string, shimDir, dbPath string, index int, stateFile string, rejectWrites bool) []string {
	out := make([]string, 0, len(env)+6)
	for k, v := range env {
		if k == "PATH" && shimDir != "" {
			v = shimDir + string(os.PathListSeparator) + v
		}
		out = append(out, k+"="+v)
	}
	if _, ok := env["PATH"]; !ok && shimDir != "" {
		out = append(out, "PATH="+shimDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	out = append(out,
		ModeEnv+"="+ModeReplay,
		DBEnv+"="+dbPath,
		IndexEnv+"="+strconv.Itoa(index),
		SessionFileEnv+"="+stateFile,
	)
	if rejectWrites {
		out = append(out, WritesEnv+"="+WritesReject)
	}
	return out
}
