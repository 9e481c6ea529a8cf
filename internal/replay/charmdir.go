package replay

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CharmMeta is the charm metadata dropped into a mocked charm root. The
// framework under replay reads metadata.yaml (and actions.yaml, when the
// charm declares actions) before dispatching, so a faithful replay needs
// both in place even though no live unit exists.
type CharmMeta struct {
	Metadata map[string]any
	Actions  map[string]any
}

// MockCharmRoot writes the charm metadata into dir and returns the
// JUJU_CHARM_DIR value to inject into the session environment. dir is
// typically a fresh temp directory owned by the caller.
func MockCharmRoot(dir string, meta *CharmMeta) (string, error) {
	if meta == nil || meta.Metadata == nil {
		return "", fmt.Errorf("charm metadata is required to mock a charm root")
	}

	metaYAML, err := yaml.Marshal(meta.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata.yaml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.yaml"), metaYAML, 0o644); err != nil {
		return "", fmt.Errorf("failed to write metadata.yaml: %w", err)
	}

	if meta.Actions != nil {
		actionsYAML, err := yaml.Marshal(meta.Actions)
		if err != nil {
			return "", fmt.Errorf("failed to marshal actions.yaml: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "actions.yaml"), actionsYAML, 0o644); err != nil {
			return "", fmt.Errorf("failed to write actions.yaml: %w", err)
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve charm root: %w", err)
	}
	return abs, nil
}

// LoadCharmMeta reads metadata.yaml and actions.yaml from a local charm
// source tree, for replays that mock the charm root from a checkout rather
// than from a live unit.
func LoadCharmMeta(charmDir string) (*CharmMeta, error) {
	metaRaw, err := os.ReadFile(filepath.Join(charmDir, "metadata.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata.yaml: %w", err)
	}
	meta := &CharmMeta{}
	if err := yaml.Unmarshal(metaRaw, &meta.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata.yaml: %w", err)
	}

	actionsRaw, err := os.ReadFile(filepath.Join(charmDir, "actions.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return nil, fmt.Errorf("failed to read actions.yaml: %w", err)
	}
	if err := yaml.Unmarshal(actionsRaw, &meta.Actions); err != nil {
		return nil, fmt.Errorf("failed to parse actions.yaml: %w", err)
	}
	return meta, nil
}
