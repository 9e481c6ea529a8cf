// Package recorder captures one event invocation at a time into the event
// store. A Session is an explicit handle for the in-progress record: it is
// created by Begin, fed by the recording interceptor, and published
// atomically by Commit. State lives in the store's draft row rather than in
// package globals, so several unit simulations can coexist in one test
// process and the shim processes of one dispatch all see the same draft.
package recorder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

// Recorder opens recording sessions against one event store.
type Recorder struct {
	store    *store.Store
	registry *hook.Registry
}

// New returns a Recorder writing to st, classifying calls with registry.
func New(st *store.Store, registry *hook.Registry) *Recorder {
	return &Recorder{store: st, registry: registry}
}

// Session is the handle for one in-progress event record.
type Session struct {
	rec     *Recorder
	draftID int64
	name    string
	done    bool
}

// Begin opens a new in-progress event record. It returns
// store.ErrInProgress if a recording is already in flight: the underlying
// agent runs one invocation at a time, and interleaving two records would
// corrupt both.
func (r *Recorder) Begin(name string, env map[string]string) (*Session, error) {
	id, err := r.store.BeginDraft(name, time.Now(), env)
	if err != nil {
		return nil, err
	}
	return &Session{rec: r, draftID: id, name: name}, nil
}

// Resume attaches to the recording already in flight. Hook-tool shim
// processes use this: dispatch opens the session, each intercepted tool
// call runs in its own process and appends to the same draft.
func (r *Recorder) Resume() (*Session, error) {
	draft, err := r.store.Draft()
	if err != nil {
		return nil, err
	}
	return &Session{rec: r, draftID: draft.ID, name: draft.Name}, nil
}

// Name returns the event name the session was opened with.
func (s *Session) Name() string { return s.name }

// RecordCall appends one observed call and its result to the in-progress
// record. The matching policy is taken from the registry; operations the
// registry does not know are recorded as sequenced, so nothing bypasses
// capture even when the framework surface is newer than the registry.
func (s *Session) RecordCall(sig hook.Signature, result json.RawMessage) (int, error) {
	if s.done {
		return 0, fmt.Errorf("session for %q already closed", s.name)
	}
	policy := hook.Sequenced
	if spec, ok := s.rec.registry.Lookup(sig.Op); ok {
		policy = spec.Policy
	}
	return s.rec.store.AppendCall(s.draftID, sig, result, policy)
}

// SnapshotFile captures the content of a tracked path, once per unique
// path per event.
func (s *Session) SnapshotFile(path string, content []byte) error {
	if s.done {
		return fmt.Errorf("session for %q already closed", s.name)
	}
	return s.rec.store.SnapshotFile(s.draftID, path, content)
}

// ReplaceFile overwrites a snapshot taken earlier in this session. Used by
// the tracked-path watcher when a file changes mid-invocation.
func (s *Session) ReplaceFile(path string, content []byte) error {
	if s.done {
		return fmt.Errorf("session for %q already closed", s.name)
	}
	return s.rec.store.ReplaceFileSnapshot(s.draftID, path, content)
}

// Commit atomically publishes the record to the committed log and returns
// its assigned index. The record is immutable from here on.
func (s *Session) Commit() (int, error) {
	if s.done {
		return 0, fmt.Errorf("session for %q already closed", s.name)
	}
	idx, err := s.rec.store.CommitDraft(s.draftID)
	if err != nil {
		return 0, err
	}
	s.done = true
	return idx, nil
}

// Abort discards the in-progress record, leaving the committed log as it
// was before Begin.
func (s *Session) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.rec.store.AbortDraft()
}

// EventNameFromEnv derives the event name from a dispatch environment.
// The agent exposes it as the tail of JUJU_DISPATCH_PATH (e.g.
// "hooks/update-status"); older agents set JUJU_HOOK_NAME directly.
func EventNameFromEnv(env map[string]string) string {
	if p := env["JUJU_DISPATCH_PATH"]; p != "" {
		if i := strings.LastIndexByte(p, '/'); i >= 0 {
			return p[i+1:]
		}
		return p
	}
	return env["JUJU_HOOK_NAME"]
}
