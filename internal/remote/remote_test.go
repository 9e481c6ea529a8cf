package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptRunner records every invocation and fails commands matching failOn.
type scriptRunner struct {
	calls  []string
	failOn string
}

func (r *scriptRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	cmd := name + " " + strings.Join(args, " ")
	r.calls = append(r.calls, cmd)
	if r.failOn != "" && strings.Contains(cmd, r.failOn) {
		return []byte("remote failure"), errors.New("exit status 1")
	}
	return nil, nil
}

func TestRemotePaths(t *testing.T) {
	if got := ShimDir("app/0"); got != "/var/lib/juju/agents/unit-app-0/unitreplay/bin" {
		t.Errorf("ShimDir(app/0) = %q", got)
	}
	if got := DBPath("nova-compute/12"); got != "/var/lib/juju/agents/unit-nova-compute-12/unitreplay/unitreplay.db" {
		t.Errorf("DBPath(nova-compute/12) = %q", got)
	}
}

func TestInstall_CommandSequence(t *testing.T) {
	runner := &scriptRunner{}
	client := NewClient(runner, nil)

	if err := client.Install(context.Background(), "app/0", "/tmp/unitreplay-shim"); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	want := []string{
		"juju ssh app/0 sudo mkdir -p /var/lib/juju/agents/unit-app-0/unitreplay/bin",
		"juju ssh app/0 sudo chmod -R o+w /var/lib/juju/agents/unit-app-0/unitreplay",
		"juju scp /tmp/unitreplay-shim app/0:/var/lib/juju/agents/unit-app-0/unitreplay/bin/unitreplay-shim",
		"juju ssh app/0 chmod +x /var/lib/juju/agents/unit-app-0/unitreplay/bin/unitreplay-shim",
		"juju ssh app/0 /var/lib/juju/agents/unit-app-0/unitreplay/bin/unitreplay-shim sync-tools /var/lib/juju/agents/unit-app-0/unitreplay/bin",
		// dispatch wrapper: scp from a staging temp file, then chmod
		"app/0:/var/lib/juju/agents/unit-app-0/unitreplay/dispatch-record",
		"juju ssh app/0 chmod +x /var/lib/juju/agents/unit-app-0/unitreplay/dispatch-record",
	}
	if len(runner.calls) != len(want) {
		t.Fatalf("Install() ran %d commands, want %d:\n%s", len(runner.calls), len(want), strings.Join(runner.calls, "\n"))
	}
	for i, cmd := range want {
		if !strings.HasSuffix(runner.calls[i], cmd) {
			t.Errorf("command %d = %q, want suffix %q", i, runner.calls[i], cmd)
		}
	}
}

func TestDispatchWrapper_Script(t *testing.T) {
	script := dispatchWrapper("app/0")
	for _, fragment := range []string{
		"#!/bin/sh",
		"UNITREPLAY_MODE=record",
		"unitreplay-shim\" begin",
		"unitreplay-shim\" record-watch &",
		"unitreplay-shim\" commit",
		"unitreplay-shim\" abort",
		"/var/lib/juju/agents/unit-app-0/charm/dispatch",
	} {
		if !strings.Contains(script, fragment) {
			t.Errorf("wrapper script missing %q:\n%s", fragment, script)
		}
	}
}

// A dispatch that cannot open a fresh draft must still reach the charm,
// and must not record into whatever draft is already open.
func TestDispatchWrapper_BeginFailureBypassesRecording(t *testing.T) {
	script := dispatchWrapper("app/0")

	if !strings.Contains(script, `if ! "$BASE/bin/unitreplay-shim" begin; then`) {
		t.Fatalf("wrapper script does not branch on begin failure:\n%s", script)
	}
	fallback := script[strings.Index(script, "begin; then"):]
	fallback = fallback[:strings.Index(fallback, "fi")]
	if !strings.Contains(fallback, `exec "$DISPATCH" "$@"`) {
		t.Errorf("begin-failure branch does not exec the real dispatch:\n%s", fallback)
	}
	if strings.Contains(fallback, "UNITREPLAY_MODE") {
		t.Errorf("begin-failure branch must not enable record mode:\n%s", fallback)
	}

	// Record mode and the shim PATH prefix are only set up after a
	// successful begin.
	beginAt := strings.Index(script, `unitreplay-shim" begin`)
	if modeAt := strings.Index(script, "export UNITREPLAY_MODE=record"); modeAt < beginAt {
		t.Errorf("record mode exported before begin succeeds:\n%s", script)
	}
	if pathAt := strings.Index(script, `export PATH="$BASE/bin:$PATH"`); pathAt < beginAt {
		t.Errorf("shim PATH prefix exported before begin succeeds:\n%s", script)
	}
}

func TestInstall_SurfacesRemoteOutput(t *testing.T) {
	runner := &scriptRunner{failOn: "mkdir"}
	client := NewClient(runner, nil)

	err := client.Install(context.Background(), "app/0", "/tmp/unitreplay-shim")
	if err == nil {
		t.Fatal("Install() expected error when mkdir fails")
	}
	if !strings.Contains(err.Error(), "remote failure") {
		t.Errorf("error %q does not carry the remote output", err)
	}
}

func TestFetch_RequiresInstall(t *testing.T) {
	runner := &scriptRunner{failOn: "ls"}
	client := NewClient(runner, nil)

	err := client.Fetch(context.Background(), "app/0", "local.db")
	if err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Errorf("Fetch() on bare unit = %v, want not-installed error", err)
	}
}

func TestFetch_CopiesDatabase(t *testing.T) {
	runner := &scriptRunner{}
	client := NewClient(runner, nil)

	if err := client.Fetch(context.Background(), "app/0", "local.db"); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	last := runner.calls[len(runner.calls)-1]
	want := "juju scp app/0:/var/lib/juju/agents/unit-app-0/unitreplay/unitreplay.db local.db"
	if last != want {
		t.Errorf("Fetch() ran %q, want %q", last, want)
	}
}

func TestEmit_RunsShimOnUnit(t *testing.T) {
	runner := &scriptRunner{}
	client := NewClient(runner, nil)

	if err := client.Emit(context.Background(), "app/0", 3); err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	last := runner.calls[len(runner.calls)-1]
	want := "juju ssh app/0 /var/lib/juju/agents/unit-app-0/unitreplay/bin/unitreplay-shim emit 3"
	if last != want {
		t.Errorf("Emit() ran %q, want %q", last, want)
	}
}

func TestEmit_RequiresInstall(t *testing.T) {
	runner := &scriptRunner{failOn: "ls"}
	client := NewClient(runner, nil)

	err := client.Emit(context.Background(), "app/0", 0)
	if err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Errorf("Emit() on bare unit = %v, want not-installed error", err)
	}
}

func TestUninstall(t *testing.T) {
	runner := &scriptRunner{}
	client := NewClient(runner, nil)

	if err := client.Uninstall(context.Background(), "app/0"); err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}
	if got := runner.calls[0]; got != "juju ssh app/0 sudo rm -rf /var/lib/juju/agents/unit-app-0/unitreplay" {
		t.Errorf("Uninstall() ran %q", got)
	}
}
