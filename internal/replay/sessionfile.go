package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// ErrNoSessionState is returned by LoadState when the state file is absent.
var ErrNoSessionState = errors.New("no replay session state")

// State is the shared consumption state of one cross-process replay. When a
// real dispatch executable is replayed, every intercepted hook-tool call
// runs in its own shim process; the per-operation cursors must survive
// between those processes without ever touching the stored record. The
// state lives in a throwaway JSON file, created when the session starts and
// deleted when it ends.
type State struct {
	SessionID string           `json:"session_id"`
	Index     int              `json:"index"`
	EventName string           `json:"event_name"`
	Cursors   map[hook.Op]int  `json:"cursors,omitempty"`
	Writes    []hook.Signature `json:"writes,omitempty"`
}

// SaveState writes the state atomically via a temp file and rename, so a
// shim process never observes a half-written file.
func SaveState(path string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// LoadState reads a session state file. Returns ErrNoSessionState if the
// file does not exist.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSessionState
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &st, nil
}

// RemoveState deletes a session state file, tolerating its absence.
func RemoveState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}
