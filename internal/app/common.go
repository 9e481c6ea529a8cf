package app

import (
	"fmt"

	"github.com/blackwell-systems/unitreplay/internal/config"
	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

// openStore opens the event database named by the --db flag or the config.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// loadRegistry returns the hook-tool registry for the configured framework
// version, defaulting to the latest.
func loadRegistry() (*hook.Registry, error) {
	dir, err := config.Dir()
	if err != nil {
		return hook.Default(), nil
	}
	settings, err := config.LoadSettings(dir)
	if err != nil || settings.FrameworkVersion == "" {
		return hook.Default(), nil
	}
	reg, err := hook.ForVersion(settings.FrameworkVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid framework_version in config: %w", err)
	}
	return reg, nil
}
