// Package hook models the hook-tool call surface a charm unit exercises
// while dispatching one event.
//
// Every interaction the charm has with its agent (relation data reads and
// writes, config lookups, status changes, leadership queries, workload API
// requests, tracked file reads) is expressed as a Signature (operation name
// plus argument tuple) routed through a Backend. Which Backend is installed
// decides the mode: a live backend invokes the real hook tools, a recording
// backend passes through and logs, a replaying backend answers from a
// previously captured event.
package hook

import (
	"context"
	"encoding/json"
	"strings"
)

// Op is the name of one hook-tool operation, matching the on-disk hook tool
// binary name where one exists (e.g. "relation-get").
type Op string

// Operations of the unit agent's hook-tool surface. The set is open: new
// framework versions add operations via Registry.Register rather than by
// extending this list.
const (
	RelationGet           Op = "relation-get"
	RelationSet           Op = "relation-set"
	RelationIDs           Op = "relation-ids"
	RelationList          Op = "relation-list"
	RelationModelGet      Op = "relation-model-get"
	ConfigGet             Op = "config-get"
	StatusGet             Op = "status-get"
	StatusSet             Op = "status-set"
	IsLeader              Op = "is-leader"
	ApplicationVersionSet Op = "application-version-set"
	JujuLog               Op = "juju-log"
	PlannedUnits          Op = "goal-state"
	NetworkGet            Op = "network-get"
	ResourceGet           Op = "resource-get"
	StorageGet            Op = "storage-get"
	StorageList           Op = "storage-list"
	StorageAdd            Op = "storage-add"
	ActionGet             Op = "action-get"
	ActionSet             Op = "action-set"
	ActionFail            Op = "action-fail"
	ActionLog             Op = "action-log"
	StateGet              Op = "state-get"
	StateSet              Op = "state-set"
	StateDelete           Op = "state-delete"
	SecretGet             Op = "secret-get"
	SecretSet             Op = "secret-set"
	SecretGrant           Op = "secret-grant"
	SecretRevoke          Op = "secret-revoke"

	// PebbleRequest covers the workload container API. Args are
	// (socket, method, path, body) so every distinct request is one call.
	PebbleRequest Op = "pebble-request"

	// FileRead is a read of a tracked path, snapshotted at record time and
	// served from the snapshot at replay time. Args are (normalized path).
	FileRead Op = "file-read"
)

// Signature identifies one interceptable call: the operation plus the
// ordered argument tuple the charm passed to it. Signatures are the lookup
// keys of replay mode and may legitimately repeat within one event.
type Signature struct {
	Op   Op       `json:"op"`
	Args []string `json:"args,omitempty"`
}

// Key returns a stable string form of the signature, usable as a map key.
// Arguments are joined with an ASCII unit separator, which cannot occur in
// hook tool argv values.
func (s Signature) Key() string {
	if len(s.Args) == 0 {
		return string(s.Op)
	}
	return string(s.Op) + "\x1f" + strings.Join(s.Args, "\x1f")
}

func (s Signature) String() string {
	if len(s.Args) == 0 {
		return string(s.Op)
	}
	return string(s.Op) + " " + strings.Join(s.Args, " ")
}

// Equal reports whether two signatures have the same operation and the same
// argument tuple in the same order.
func (s Signature) Equal(other Signature) bool {
	if s.Op != other.Op || len(s.Args) != len(other.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

// Backend is the transport every hook-tool call goes through. Exactly one
// backend is installed per event invocation, selected at construction: live
// (real hook tools), recording (pass through and log), or replaying (answer
// from a captured event).
//
// The returned value is the tool's JSON output; operations that produce no
// output return JSON null. Backends must never silently bypass
// interception: every call either goes to the real agent or is answered
// from the table.
type Backend interface {
	Call(ctx context.Context, sig Signature) (json.RawMessage, error)
}
