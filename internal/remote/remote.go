// Package remote installs the recording layer on a live Juju unit and
// fetches recorded databases back, shelling out to the juju CLI. It stays
// deliberately thin: all recording and replay logic lives on either side of
// the scp, this package only moves files and runs remote commands.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
)

// Runner executes one command and returns its combined output. Injectable
// so tests never need a live controller.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// DBFileName is the database file name used on the unit.
const DBFileName = "unitreplay.db"

// Client talks to one Juju model via the juju CLI.
type Client struct {
	run    Runner
	logger *slog.Logger
}

// NewClient returns a Client using runner, or the real juju CLI when
// runner is nil.
func NewClient(runner Runner, logger *slog.Logger) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{run: runner, logger: logger}
}

// unitTag converts "app/0" to "unit-app-0".
func unitTag(unit string) string {
	return "unit-" + strings.ReplaceAll(unit, "/", "-")
}

// BaseDir is where everything this tool owns lives on the unit, under the
// unit's agent directory so it survives charm upgrades no better or worse
// than the charm itself.
func BaseDir(unit string) string {
	return path.Join("/var/lib/juju/agents", unitTag(unit), "unitreplay")
}

// ShimDir is the remote directory holding the shim binary and its
// hook-tool symlinks.
func ShimDir(unit string) string {
	return path.Join(BaseDir(unit), "bin")
}

// DBPath is the remote database location.
func DBPath(unit string) string {
	return path.Join(BaseDir(unit), DBFileName)
}

// WrapperPath is the remote location of the recording dispatch wrapper.
func WrapperPath(unit string) string {
	return path.Join(BaseDir(unit), "dispatch-record")
}

// dispatchWrapper renders the shell script that brackets the charm's real
// dispatch with the recording lifecycle: begin, dispatch with the shim
// directory first in PATH and a tracked-file watcher in the background,
// then commit on success or abort on failure. When begin itself fails
// (a stale draft, an unreadable database) the event must still reach the
// charm, so the wrapper falls back to a plain dispatch with recording
// disabled rather than appending to a draft it did not open.
func dispatchWrapper(unit string) string {
	base := BaseDir(unit)
	charmDispatch := path.Join("/var/lib/juju/agents", unitTag(unit), "charm", "dispatch")
	return fmt.Sprintf(`#!/bin/sh
set -u
BASE=%q
DISPATCH=%q
export UNITREPLAY_DB="$BASE/%s"

if ! "$BASE/bin/unitreplay-shim" begin; then
	echo "unitreplay: begin failed, dispatching without recording" >&2
	exec "$DISPATCH" "$@"
fi

export UNITREPLAY_MODE=record
export PATH="$BASE/bin:$PATH"

"$BASE/bin/unitreplay-shim" record-watch &
watch_pid=$!

if "$DISPATCH" "$@"; then
	status=0
else
	status=$?
fi
kill "$watch_pid" 2>/dev/null || true

if [ "$status" -eq 0 ]; then
	"$BASE/bin/unitreplay-shim" commit
else
	"$BASE/bin/unitreplay-shim" abort
fi
exit "$status"
`, base, charmDispatch, DBFileName)
}

func (c *Client) ssh(ctx context.Context, unit string, remoteCmd ...string) error {
	args := append([]string{"ssh", unit}, remoteCmd...)
	output, err := c.run.Run(ctx, "juju", args...)
	if err != nil {
		return fmt.Errorf("juju ssh %s %s failed: %w (output: %s)",
			unit, strings.Join(remoteCmd, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (c *Client) scp(ctx context.Context, src, dst string) error {
	output, err := c.run.Run(ctx, "juju", "scp", src, dst)
	if err != nil {
		return fmt.Errorf("juju scp %s %s failed: %w (output: %s)",
			src, dst, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// IsInstalled reports whether the shim binary is present on the unit.
func (c *Client) IsInstalled(ctx context.Context, unit string) bool {
	return c.ssh(ctx, unit, "ls", path.Join(ShimDir(unit), "unitreplay-shim")) == nil
}

// Install pushes the shim binary from localShimBinary to the unit, creates
// the hook-tool symlinks, and initializes an empty database. Reinstalling
// over an existing installation refreshes the binary and symlinks but
// leaves the database alone.
func (c *Client) Install(ctx context.Context, unit, localShimBinary string) error {
	shimDir := ShimDir(unit)
	remoteBin := path.Join(shimDir, "unitreplay-shim")

	c.logger.Info("installing recording layer",
		slog.String("unit", unit),
		slog.String("dir", shimDir),
	)

	if err := c.ssh(ctx, unit, "sudo", "mkdir", "-p", shimDir); err != nil {
		return err
	}
	if err := c.ssh(ctx, unit, "sudo", "chmod", "-R", "o+w", BaseDir(unit)); err != nil {
		return err
	}
	if err := c.scp(ctx, localShimBinary, unit+":"+remoteBin); err != nil {
		return err
	}
	if err := c.ssh(ctx, unit, "chmod", "+x", remoteBin); err != nil {
		return err
	}
	// The pushed binary knows how to lay out its own symlinks.
	if err := c.ssh(ctx, unit, remoteBin, "sync-tools", shimDir); err != nil {
		return err
	}
	if err := c.installWrapper(ctx, unit); err != nil {
		return err
	}

	c.logger.Info("recording layer installed", slog.String("unit", unit))
	return nil
}

// installWrapper pushes the dispatch wrapper script to the unit.
func (c *Client) installWrapper(ctx context.Context, unit string) error {
	local, err := os.CreateTemp("", "dispatch-record-*")
	if err != nil {
		return fmt.Errorf("failed to stage dispatch wrapper: %w", err)
	}
	defer os.Remove(local.Name())

	if _, err := local.WriteString(dispatchWrapper(unit)); err != nil {
		local.Close()
		return fmt.Errorf("failed to stage dispatch wrapper: %w", err)
	}
	if err := local.Close(); err != nil {
		return fmt.Errorf("failed to stage dispatch wrapper: %w", err)
	}

	wrapper := WrapperPath(unit)
	if err := c.scp(ctx, local.Name(), unit+":"+wrapper); err != nil {
		return err
	}
	return c.ssh(ctx, unit, "chmod", "+x", wrapper)
}

// Uninstall removes the recording layer from the unit, database included.
func (c *Client) Uninstall(ctx context.Context, unit string) error {
	c.logger.Info("removing recording layer", slog.String("unit", unit))
	return c.ssh(ctx, unit, "sudo", "rm", "-rf", BaseDir(unit))
}

// Fetch copies the unit's database to localPath.
func (c *Client) Fetch(ctx context.Context, unit, localPath string) error {
	if !c.IsInstalled(ctx, unit) {
		return fmt.Errorf("recording layer is not installed on %s", unit)
	}
	c.logger.Info("fetching database",
		slog.String("unit", unit),
		slog.String("to", localPath),
	)
	return c.scp(ctx, unit+":"+DBPath(unit), localPath)
}

// Emit re-fires a recorded event on the live unit: the charm's real
// dispatch runs with the recorded environment restored and the hook tools
// answered from the record.
func (c *Client) Emit(ctx context.Context, unit string, index int) error {
	if !c.IsInstalled(ctx, unit) {
		return fmt.Errorf("recording layer is not installed on %s", unit)
	}
	c.logger.Info("re-firing recorded event",
		slog.String("unit", unit),
		slog.Int("index", index),
	)
	return c.ssh(ctx, unit, path.Join(ShimDir(unit), "unitreplay-shim"), "emit", strconv.Itoa(index))
}

// Push copies a local database to the unit, replacing what is there.
func (c *Client) Push(ctx context.Context, unit, localPath string) error {
	c.logger.Info("pushing database",
		slog.String("unit", unit),
		slog.String("from", localPath),
	)
	return c.scp(ctx, localPath, unit+":"+DBPath(unit))
}
