package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// Exec is the live backend: it invokes the real hook-tool binaries the
// agent puts on the unit. Record mode wraps this in a Recording backend;
// replay mode never constructs one.
type Exec struct {
	// ToolDir is where the agent's hook tools live
	// (e.g. /var/lib/juju/tools/unit-app-0). Empty means $PATH lookup.
	ToolDir string
}

// Call runs the hook tool named by the signature with the recorded argv.
// Tracked file reads are not a real tool; they read the local filesystem.
//
// Tool stdout is normalized to JSON: tools invoked with --format=json
// return their output verbatim, tools that print nothing (the mutating
// ones) return null, and anything else is wrapped as a JSON string.
func (e *Exec) Call(ctx context.Context, sig hook.Signature) (json.RawMessage, error) {
	if sig.Op == hook.FileRead {
		return readTrackedFile(sig)
	}

	tool := string(sig.Op)
	if e.ToolDir != "" {
		tool = filepath.Join(e.ToolDir, tool)
	}

	cmd := exec.CommandContext(ctx, tool, sig.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w (stderr: %s)", sig.Op, err, bytes.TrimSpace(stderr.Bytes()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return json.RawMessage("null"), nil
	}
	if json.Valid(out) {
		return json.RawMessage(out), nil
	}
	wrapped, err := json.Marshal(string(out))
	if err != nil {
		return nil, fmt.Errorf("%s: encode output: %w", sig.Op, err)
	}
	return wrapped, nil
}

func readTrackedFile(sig hook.Signature) (json.RawMessage, error) {
	if len(sig.Args) != 1 {
		return nil, fmt.Errorf("file-read expects exactly one path argument, got %d", len(sig.Args))
	}
	content, err := os.ReadFile(sig.Args[0])
	if err != nil {
		return nil, fmt.Errorf("file-read %s: %w", sig.Args[0], err)
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("file-read %s: encode content: %w", sig.Args[0], err)
	}
	return encoded, nil
}
