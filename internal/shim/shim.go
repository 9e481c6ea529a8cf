// Package shim manages the PATH shim layer that intercepts Juju hook-tool
// invocations during recording and replay.
//
// Architecture:
//   - A single Go binary (<dir>/unitreplay-shim) handles all shimmed tools.
//   - Symlinks are created for each hook tool in the registry, pointing at
//     that binary.
//   - The shim binary determines which tool was invoked via filepath.Base(os.Args[0]).
//   - Mode, store location, and session state arrive through UNITREPLAY_*
//     environment variables (see internal/replay).
package shim

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// BinaryName is the dispatcher binary every hook-tool symlink points at.
const BinaryName = "unitreplay-shim"

// DefaultDir returns the directory where shim symlinks are stored.
// Default: ~/.unitreplay/bin
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".unitreplay", "bin"), nil
}

// RealToolDir returns the directory holding the agent's real hook tools for
// the unit named in env, so the shim can pass calls through while
// recording. Juju lays agent tools out under /var/lib/juju/tools/unit-<app>-<n>.
func RealToolDir(unitName string) (string, error) {
	if unitName == "" {
		return "", fmt.Errorf("unit name is required to locate hook tools")
	}
	tag := "unit-" + strings.ReplaceAll(unitName, "/", "-")
	return filepath.Join("/var/lib/juju/tools", tag), nil
}

// CheckPath reports whether dir is positioned in PATH ahead of the agent's
// tool directories, so a dispatched charm resolves hook-tool names to the
// shim. Returns (true, "") on success, or (false, reason) explaining what
// needs fixing.
func CheckPath(dir string) (bool, string) {
	pathDirs := filepath.SplitList(os.Getenv("PATH"))
	shimIdx := -1
	toolsIdx := -1

	for i, d := range pathDirs {
		if d == dir {
			shimIdx = i
		}
		if toolsIdx == -1 && strings.Contains(d, "/var/lib/juju/tools") {
			toolsIdx = i
		}
	}

	if shimIdx == -1 {
		return false, fmt.Sprintf(
			"add the shim directory to PATH before the hook tools:\n  export PATH=%q:$PATH",
			dir,
		)
	}
	if toolsIdx != -1 && shimIdx > toolsIdx {
		return false, fmt.Sprintf(
			"shim directory must appear before %s in PATH\n  export PATH=%q:$PATH",
			pathDirs[toolsIdx], dir,
		)
	}
	return true, ""
}

// EnsureBinary makes sure the shim binary exists at <dir>/unitreplay-shim.
//
// Strategy (in order):
//  1. If unitreplay-shim is already in the same directory as the running
//     unitreplay binary (true after `go install ./...` or a release build),
//     copy it into dir.
//  2. Otherwise run `go install` for the shim package (dev workflow) and
//     copy from GOPATH/bin.
func EnsureBinary(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create shim dir %s: %w", dir, err)
	}
	outputPath := filepath.Join(dir, BinaryName)

	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), BinaryName)
		if _, err := os.Stat(candidate); err == nil {
			return copyFile(candidate, outputPath)
		}
	}

	installCmd := exec.Command("go", "install",
		"github.com/blackwell-systems/unitreplay/cmd/unitreplay-shim")
	installCmd.Stdout = os.Stderr
	installCmd.Stderr = os.Stderr
	if err := installCmd.Run(); err != nil {
		return fmt.Errorf("failed to install shim binary: %w", err)
	}

	gopath, err := goPath()
	if err != nil {
		return fmt.Errorf("cannot determine GOPATH: %w", err)
	}
	installed := filepath.Join(gopath, "bin", BinaryName)
	if _, err := os.Stat(installed); err != nil {
		return fmt.Errorf("shim binary not found at %s after install", installed)
	}
	return copyFile(installed, outputPath)
}

// goPath returns the effective GOPATH.
func goPath() (string, error) {
	out, err := exec.Command("go", "env", "GOPATH").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// copyFile copies src to dst, making dst executable.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("open dest: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// Sync reconciles the symlinks in dir against the tools the registry
// intercepts: one symlink per registered hook tool, stale symlinks removed.
// The shim binary must already be in place (see EnsureBinary). Returns the
// counts of created and removed symlinks.
func Sync(dir string, reg *hook.Registry) (added, removed int, err error) {
	shimBinary := filepath.Join(dir, BinaryName)
	if _, err := os.Stat(shimBinary); os.IsNotExist(err) {
		return 0, 0, fmt.Errorf("shim binary not found at %s; run install first", shimBinary)
	}

	want := make(map[string]bool)
	for _, op := range reg.Ops() {
		want[string(op)] = true
	}

	for tool := range want {
		symlinkPath := filepath.Join(dir, tool)

		if existing, err := os.Readlink(symlinkPath); err == nil && existing == shimBinary {
			continue
		}
		// Remove stale symlink or regular file if present.
		os.Remove(symlinkPath)

		if err := os.Symlink(shimBinary, symlinkPath); err != nil {
			return added, removed, fmt.Errorf("failed to create shim for %s: %w", tool, err)
		}
		added++
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return added, removed, fmt.Errorf("cannot read shim dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.Name() == BinaryName || want[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return added, removed, fmt.Errorf("failed to remove stale shim %s: %w", entry.Name(), err)
			}
			removed++
		}
	}
	return added, removed, nil
}

// Remove deletes every symlink in dir, leaving the shim binary itself
// intact. Missing directories are not an error.
func Remove(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read shim dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.Name() == BinaryName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
