// Package replay reconstructs a faithful execution context from one
// committed event record and drives an entry point through it, answering
// every hook-tool call from the recorded data instead of a live backend.
package replay

import (
	"strings"

	"github.com/google/uuid"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/intercept"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

// liveBackendEnv lists environment variables that reference the live agent
// or controller. They are stripped from replay sessions: replay must never
// be able to reach a real backend, and stale socket addresses would only
// produce confusing failures if anything tried.
var liveBackendEnv = map[string]bool{
	"JUJU_API_ADDRESSES":        true,
	"JUJU_CONTEXT_ID":           true,
	"JUJU_AGENT_SOCKET_ADDRESS": true,
	"JUJU_AGENT_SOCKET_NETWORK": true,
	"JUJU_METER_INFO":           true,
	"JUJU_METER_STATUS":         true,
}

// Session is the ephemeral context of one replayed invocation: a filtered
// copy of the recorded environment plus a same-order call-response table.
// It is built from exactly one event record, never persisted, and discarded
// when the replayed invocation returns. The stored record is not touched,
// so replaying the same index twice yields two independent sessions.
type Session struct {
	ID        string
	Index     int
	EventName string
	Env       map[string]string
	Backend   *intercept.Replaying
}

// NewSession builds a replay session from a committed record. eventName
// overrides the recorded event name when non-empty (the escape hatch for
// "what if this payload arrived for a different event"); the recorded call
// and environment data are reused either way.
func NewSession(rec *store.EventRecord, registry *hook.Registry, policy intercept.WritePolicy, eventName string) *Session {
	name := rec.Name
	if eventName != "" {
		name = eventName
	}

	env := make(map[string]string, len(rec.Environment))
	for k, v := range rec.Environment {
		if liveBackendEnv[k] {
			continue
		}
		env[k] = v
	}
	if eventName != "" {
		retargetDispatchEnv(env, eventName)
	}

	table := intercept.NewTable(rec.Calls)
	return &Session{
		ID:        uuid.NewString(),
		Index:     rec.Index,
		EventName: name,
		Env:       env,
		Backend:   intercept.NewReplaying(table, rec.Files, registry, policy),
	}
}

// retargetDispatchEnv rewrites the event-name-bearing variables so the
// framework under replay dispatches the substituted event.
func retargetDispatchEnv(env map[string]string, eventName string) {
	if p, ok := env["JUJU_DISPATCH_PATH"]; ok {
		if i := strings.LastIndexByte(p, '/'); i >= 0 {
			env["JUJU_DISPATCH_PATH"] = p[:i+1] + eventName
		} else {
			env["JUJU_DISPATCH_PATH"] = eventName
		}
	}
	if _, ok := env["JUJU_HOOK_NAME"]; ok {
		env["JUJU_HOOK_NAME"] = eventName
	}
}
