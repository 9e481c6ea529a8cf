// Package config provides configuration file parsing for unitreplay.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the unitreplay config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/unitreplay if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "unitreplay"), nil
}

// DefaultDBPath returns the database location used when neither the config
// file nor the --db flag names one.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".unitreplay", "unitreplay.db"), nil
}

// Settings holds the key=value options from {dir}/config.
type Settings struct {
	// DBPath overrides the default database location.
	DBPath string
	// FrameworkVersion selects the hook-tool registry version ("2" or "3").
	// Blank means the latest.
	FrameworkVersion string
}

// LoadSettings reads {dir}/config and returns the parsed settings. If the
// file does not exist, zero-value settings are returned without an error.
// Unknown keys and malformed lines are silently skipped.
func LoadSettings(dir string) (*Settings, error) {
	s := &Settings{}
	lines, err := readLines(filepath.Join(dir, "config"))
	if err != nil {
		return s, err
	}

	for _, line := range lines {
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if value == "" {
			continue
		}
		switch key {
		case "db_path":
			s.DBPath = value
		case "framework_version":
			s.FrameworkVersion = value
		}
	}
	return s, nil
}

// LoadTrackedPaths reads the tracked-paths file at {dir}/tracked, one
// absolute path per line. These are the files whose contents are
// snapshotted with every recorded event. If the file does not exist, an
// empty list is returned without an error.
func LoadTrackedPaths(dir string) ([]string, error) {
	lines, err := readLines(filepath.Join(dir, "tracked"))
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range lines {
		if !filepath.IsAbs(line) {
			continue // relative paths are ambiguous on the unit, skip
		}
		paths = append(paths, filepath.Clean(line))
	}
	return paths, nil
}

// readLines returns the non-blank, non-comment lines of path, trimmed.
// A missing file yields no lines and no error.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
