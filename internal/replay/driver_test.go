package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/intercept"
	"github.com/blackwell-systems/unitreplay/internal/recorder"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

func recordOneEvent(t *testing.T, st *store.Store) {
	t.Helper()
	sess, err := recorder.New(st, hook.Default()).Begin("update-status", map[string]string{
		"UNIT":               "app/0",
		"JUJU_DISPATCH_PATH": "hooks/update-status",
		"JUJU_CONTEXT_ID":    "app/0-update-status-123",
		"JUJU_API_ADDRESSES": "10.0.0.5:17070",
	})
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if _, err := sess.RecordCall(
		hook.Signature{Op: hook.RelationGet, Args: []string{"db"}},
		json.RawMessage(`{"host":"10.0.0.1"}`),
	); err != nil {
		t.Fatalf("RecordCall() failed: %v", err)
	}
	if idx, err := sess.Commit(); err != nil || idx != 0 {
		t.Fatalf("Commit() = (%d, %v), want (0, nil)", idx, err)
	}
}

func TestReplay_EndToEnd(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()
	recordOneEvent(t, st)

	rec, err := st.Get(0)
	if err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}
	if rec.Name != "update-status" || len(rec.Calls) != 1 {
		t.Fatalf("Get(0) = %q with %d calls, want update-status with 1 call", rec.Name, len(rec.Calls))
	}

	driver := NewDriver(st, hook.Default(), nil)
	entry := EntrypointFunc(func(ctx context.Context, env map[string]string, backend hook.Backend) error {
		if env["UNIT"] != "app/0" {
			t.Errorf("entry point env UNIT = %q, want app/0", env["UNIT"])
		}

		first, err := backend.Call(ctx, hook.Signature{Op: hook.RelationGet, Args: []string{"db"}})
		if err != nil {
			return err
		}
		if string(first) != `{"host":"10.0.0.1"}` {
			t.Errorf("replayed relation-get = %s, want recorded value", first)
		}

		// A second, different-signature call must mismatch, not fabricate.
		_, err = backend.Call(ctx, hook.Signature{Op: hook.RelationGet, Args: []string{"cache"}})
		if !errors.Is(err, intercept.ErrMismatch) {
			t.Errorf("diverged call = %v, want ErrMismatch", err)
		}
		return nil
	})

	res, err := driver.Replay(context.Background(), 0, entry)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if res.EventName != "update-status" {
		t.Errorf("Result.EventName = %q", res.EventName)
	}
}

// liveScript is a stand-in agent: it answers calls from a fixed table the
// way the real tools would.
type liveScript map[string]string

func (s liveScript) Call(_ context.Context, sig hook.Signature) (json.RawMessage, error) {
	resp, ok := s[sig.Key()]
	if !ok {
		return nil, fmt.Errorf("unscripted call %s", sig)
	}
	return json.RawMessage(resp), nil
}

// Charm-side code goes through the typed client rather than raw
// signatures. Recording and replaying the same typed calls must hand back
// identical decoded values, with the mutating call diverted to scratch.
func TestReplay_TypedClientRoundTrip(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()

	live := liveScript{
		hook.Signature{Op: hook.RelationGet, Args: []string{"-r", "7", "-", "db/0"}}.Key(): `{"host":"10.0.0.1","port":"5432"}`,
		hook.Signature{Op: hook.IsLeader}.Key():                                            `true`,
		hook.Signature{Op: hook.StatusSet, Args: []string{"active", "ready"}}.Key():        `null`,
	}

	sess, err := recorder.New(st, hook.Default()).Begin("database-relation-changed", map[string]string{
		"UNIT":               "app/0",
		"JUJU_DISPATCH_PATH": "hooks/database-relation-changed",
	})
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}

	ctx := context.Background()
	recClient := hook.NewClient(intercept.NewRecording(live, sess))
	if data, err := recClient.RelationGet(ctx, 7, "db/0", false); err != nil || data["host"] != "10.0.0.1" {
		t.Fatalf("recorded RelationGet() = (%v, %v)", data, err)
	}
	if leader, err := recClient.IsLeader(ctx); err != nil || !leader {
		t.Fatalf("recorded IsLeader() = (%v, %v)", leader, err)
	}
	if err := recClient.StatusSet(ctx, "active", "ready"); err != nil {
		t.Fatalf("recorded StatusSet() failed: %v", err)
	}
	if _, err := sess.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	driver := NewDriver(st, hook.Default(), nil)
	res, err := driver.Replay(ctx, 0, EntrypointFunc(func(ctx context.Context, _ map[string]string, backend hook.Backend) error {
		client := hook.NewClient(backend)
		data, err := client.RelationGet(ctx, 7, "db/0", false)
		if err != nil {
			return err
		}
		if data["port"] != "5432" {
			t.Errorf("replayed RelationGet() port = %q, want 5432", data["port"])
		}
		leader, err := client.IsLeader(ctx)
		if err != nil {
			return err
		}
		if !leader {
			t.Error("replayed IsLeader() = false, want the recorded value")
		}
		return client.StatusSet(ctx, "active", "ready")
	}))
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if len(res.Writes) != 1 || res.Writes[0].Signature.Op != hook.StatusSet {
		t.Errorf("Result.Writes = %v, want the diverted status-set", res.Writes)
	}
	if res.Remaining != 0 {
		t.Errorf("Result.Remaining = %d, want 0", res.Remaining)
	}
}

func TestReplay_TwiceYieldsIndependentSessions(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()
	recordOneEvent(t, st)

	driver := NewDriver(st, hook.Default(), nil)
	entry := EntrypointFunc(func(ctx context.Context, env map[string]string, backend hook.Backend) error {
		result, err := backend.Call(ctx, hook.Signature{Op: hook.RelationGet, Args: []string{"db"}})
		if err != nil {
			return err
		}
		if string(result) != `{"host":"10.0.0.1"}` {
			t.Errorf("replayed value = %s", result)
		}
		return nil
	})

	first, err := driver.Replay(context.Background(), 0, entry)
	if err != nil {
		t.Fatalf("first Replay() failed: %v", err)
	}
	second, err := driver.Replay(context.Background(), 0, entry)
	if err != nil {
		t.Fatalf("second Replay() failed: %v (replay must not consume the stored record)", err)
	}
	if first.SessionID == second.SessionID {
		t.Error("both replays share a session ID; sessions must be independent")
	}
}

func TestReplay_EntrypointErrorReturnedVerbatim(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()
	recordOneEvent(t, st)

	boom := errors.New("handler exploded")
	driver := NewDriver(st, hook.Default(), nil)
	_, err = driver.Replay(context.Background(), 0, EntrypointFunc(
		func(context.Context, map[string]string, hook.Backend) error { return boom },
	))
	if !errors.Is(err, boom) {
		t.Errorf("Replay() = %v, want the entry point's error verbatim", err)
	}
}

func TestReplay_OutOfRangeIndex_PropagatesNotFound(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()

	driver := NewDriver(st, hook.Default(), nil)
	_, err = driver.Replay(context.Background(), 0, EntrypointFunc(
		func(context.Context, map[string]string, hook.Backend) error { return nil },
	))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Replay(0) on empty store = %v, want ErrNotFound", err)
	}
}

func TestReplay_EventNameSubstitution(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()
	recordOneEvent(t, st)

	driver := NewDriver(st, hook.Default(), nil)
	res, err := driver.Replay(context.Background(), 0, EntrypointFunc(
		func(_ context.Context, env map[string]string, _ hook.Backend) error {
			if got := env["JUJU_DISPATCH_PATH"]; got != "hooks/config-changed" {
				t.Errorf("JUJU_DISPATCH_PATH = %q, want hooks/config-changed", got)
			}
			return nil
		},
	), WithEventName("config-changed"))
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if res.EventName != "config-changed" {
		t.Errorf("Result.EventName = %q, want config-changed", res.EventName)
	}

	// The stored record keeps its original name.
	rec, err := st.Get(0)
	if err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}
	if rec.Name != "update-status" {
		t.Errorf("stored record name = %q, substitution must not persist", rec.Name)
	}
}

func TestNewSession_StripsLiveBackendEnv(t *testing.T) {
	rec := &store.EventRecord{
		Name: "update-status",
		Environment: map[string]string{
			"JUJU_UNIT_NAME":     "app/0",
			"JUJU_CONTEXT_ID":    "app/0-update-status-123",
			"JUJU_API_ADDRESSES": "10.0.0.5:17070",
		},
	}
	sess := NewSession(rec, hook.Default(), intercept.WritesToScratch, "")
	if _, ok := sess.Env["JUJU_CONTEXT_ID"]; ok {
		t.Error("JUJU_CONTEXT_ID leaked into the replay environment")
	}
	if _, ok := sess.Env["JUJU_API_ADDRESSES"]; ok {
		t.Error("JUJU_API_ADDRESSES leaked into the replay environment")
	}
	if sess.Env["JUJU_UNIT_NAME"] != "app/0" {
		t.Error("ordinary environment variables must be preserved")
	}

	// The record's environment is untouched.
	if rec.Environment["JUJU_CONTEXT_ID"] == "" {
		t.Error("session filtering mutated the record environment")
	}
}
