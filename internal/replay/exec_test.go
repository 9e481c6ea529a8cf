package replay

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// A mocked charm root works by overriding JUJU_CHARM_DIR for the dispatch
// process while the rest of the recorded environment stays intact.
func TestExecEntrypoint_ExtraEnvOverridesSessionEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	outFile := filepath.Join(dir, "env.txt")
	script := filepath.Join(dir, "dispatch")
	body := "#!/bin/sh\nprintf '%s\\n%s\\n%s\\n' \"$JUJU_CHARM_DIR\" \"$JUJU_UNIT_NAME\" \"$UNITREPLAY_MODE\" > " + outFile + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("writing dispatch script failed: %v", err)
	}

	entry := &ExecEntrypoint{
		Command:     []string{script},
		Dir:         dir,
		DBPath:      filepath.Join(dir, "events.db"),
		Index:       0,
		ExtraEnv:    map[string]string{"JUJU_CHARM_DIR": "/tmp/mocked-root"},
		SessionFile: filepath.Join(dir, "session.json"),
	}
	env := map[string]string{
		"JUJU_CHARM_DIR": "/var/lib/juju/agents/unit-app-0/charm",
		"JUJU_UNIT_NAME": "app/0",
		"PATH":           os.Getenv("PATH"),
	}
	if err := entry.Dispatch(context.Background(), env, nil); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("dispatch script did not run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected script output: %q", data)
	}
	if lines[0] != "/tmp/mocked-root" {
		t.Errorf("JUJU_CHARM_DIR = %q, want the override", lines[0])
	}
	if lines[1] != "app/0" {
		t.Errorf("JUJU_UNIT_NAME = %q, want the recorded value", lines[1])
	}
	if lines[2] != ModeReplay {
		t.Errorf("UNITREPLAY_MODE = %q, want %q", lines[2], ModeReplay)
	}
}
