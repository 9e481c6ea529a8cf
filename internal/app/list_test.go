package app

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/recorder"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

// newTestDB creates a database file with committed events and points the
// global --db flag at it for the duration of the test.
func newTestDB(t *testing.T, eventNames ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()

	rec := recorder.New(st, hook.Default())
	for _, name := range eventNames {
		sess, err := rec.Begin(name, map[string]string{"JUJU_UNIT_NAME": "app/0"})
		if err != nil {
			t.Fatalf("Begin(%s) failed: %v", name, err)
		}
		if _, err := sess.RecordCall(
			hook.Signature{Op: hook.ConfigGet},
			json.RawMessage(`{"port":8080}`),
		); err != nil {
			t.Fatal(err)
		}
		if _, err := sess.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	original := dbPath
	t.Cleanup(func() { dbPath = original })
	dbPath = path
	return path
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	original := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = original }()

	runErr := fn()
	w.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatal(err)
	}
	return buf.String(), runErr
}

func TestListCommand_Empty(t *testing.T) {
	newTestDB(t)

	out, err := captureStdout(t, func() error { return runList(listCmd, nil) })
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if out != "No recorded events.\n" {
		t.Errorf("list output = %q", out)
	}
}

func TestListCommand_ShowsCommittedEvents(t *testing.T) {
	newTestDB(t, "install", "config-changed")

	out, err := captureStdout(t, func() error { return runList(listCmd, nil) })
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("install")) ||
		!bytes.Contains([]byte(out), []byte("config-changed")) {
		t.Errorf("list output missing events:\n%s", out)
	}
}

func TestListCommand_DraftInvisible(t *testing.T) {
	path := newTestDB(t, "install")

	// Leave a recording in progress.
	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := recorder.New(st, hook.Default()).Begin("update-status", nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = sess
	st.Close()

	out, err := captureStdout(t, func() error { return runList(listCmd, nil) })
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if bytes.Contains([]byte(out), []byte("update-status")) {
		t.Errorf("in-progress recording leaked into list:\n%s", out)
	}
}

func TestShowCommand_InvalidIndex(t *testing.T) {
	newTestDB(t, "install")

	if err := runShow(showCmd, []string{"not-a-number"}); err == nil {
		t.Error("show with non-numeric index expected error")
	}
	if err := runShow(showCmd, []string{"7"}); err == nil {
		t.Error("show with out-of-range index expected error")
	}
}

func TestShowCommand_RendersEvent(t *testing.T) {
	newTestDB(t, "install")

	out, err := captureStdout(t, func() error { return runShow(showCmd, []string{"0"}) })
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("Event 0: install")) ||
		!bytes.Contains([]byte(out), []byte("config-get")) {
		t.Errorf("show output:\n%s", out)
	}
}

func TestAbortCommand(t *testing.T) {
	path := newTestDB(t)

	// Nothing in progress.
	out, err := captureStdout(t, func() error { return runAbort(abortCmd, nil) })
	if err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	if out != "No recording in progress.\n" {
		t.Errorf("abort output = %q", out)
	}

	// Leave a recording in progress, then abort it.
	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := recorder.New(st, hook.Default()).Begin("install", nil); err != nil {
		t.Fatal(err)
	}
	st.Close()

	out, err = captureStdout(t, func() error { return runAbort(abortCmd, nil) })
	if err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte(`"install"`)) {
		t.Errorf("abort output = %q", out)
	}

	// A new recording can begin now.
	st, err = store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	sess, err := recorder.New(st, hook.Default()).Begin("config-changed", nil)
	if err != nil {
		t.Fatalf("Begin after abort failed: %v", err)
	}
	if err := sess.Abort(); err != nil {
		t.Fatal(err)
	}
}
