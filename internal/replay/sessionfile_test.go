package replay

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

func TestSessionState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	want := &State{
		SessionID: "3f1b9a52-1111-2222-3333-444455556666",
		Index:     4,
		EventName: "config-changed",
		Cursors:   map[hook.Op]int{hook.RelationGet: 2, hook.StateGet: 1},
		Writes: []hook.Signature{
			{Op: hook.StatusSet, Args: []string{"active", "ready"}},
		},
	}

	if err := SaveState(path, want); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}
	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState() failed: %v", err)
	}
	if got.SessionID != want.SessionID || got.Index != want.Index || got.EventName != want.EventName {
		t.Errorf("LoadState() = %+v, want %+v", got, want)
	}
	if got.Cursors[hook.RelationGet] != 2 || got.Cursors[hook.StateGet] != 1 {
		t.Errorf("cursors did not survive: %v", got.Cursors)
	}
	if len(got.Writes) != 1 || !got.Writes[0].Equal(want.Writes[0]) {
		t.Errorf("writes did not survive: %v", got.Writes)
	}
}

func TestLoadState_Missing(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNoSessionState) {
		t.Errorf("LoadState() on absent file = %v, want ErrNoSessionState", err)
	}
}

func TestSaveState_OverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := SaveState(path, &State{SessionID: "a", Index: 0}); err != nil {
		t.Fatalf("first SaveState() failed: %v", err)
	}
	if err := SaveState(path, &State{SessionID: "a", Index: 0, Cursors: map[hook.Op]int{hook.ConfigGet: 3}}); err != nil {
		t.Fatalf("second SaveState() failed: %v", err)
	}
	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState() failed: %v", err)
	}
	if got.Cursors[hook.ConfigGet] != 3 {
		t.Errorf("second save not visible: %v", got.Cursors)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after save, want just the state file", len(entries))
	}
}

func TestRemoveState_ToleratesAbsence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := RemoveState(path); err != nil {
		t.Errorf("RemoveState() on absent file = %v, want nil", err)
	}
	if err := SaveState(path, &State{SessionID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := RemoveState(path); err != nil {
		t.Errorf("RemoveState() = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("state file still present after RemoveState()")
	}
}
