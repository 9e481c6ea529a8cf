package intercept

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// WritePolicy decides what happens to mutating calls during replay. Replay
// reproduces read-path behavior without a live backend, so writes can never
// reach real state; the policy only decides whether they are diverted or
// fatal.
type WritePolicy int

const (
	// WritesToScratch answers mutating calls from the table like any other
	// call and additionally diverts the written payload into the session
	// scratch overlay for post-run inspection. This is the default: the
	// recorded execution performed those writes, so a faithful replay must
	// let the handler issue them and continue.
	WritesToScratch WritePolicy = iota

	// WritesRejected fails the replay on the first mutating call. Useful
	// when the operator wants proof that a code change stopped writing.
	WritesRejected
)

// Write is one mutating call diverted to scratch during replay.
type Write struct {
	Signature hook.Signature
	Result    json.RawMessage
}

// Replaying answers every intercepted call from the table of one captured
// event. It never contacts a live backend.
type Replaying struct {
	table    *Table
	files    map[string][]byte
	registry *hook.Registry
	policy   WritePolicy
	writes   []Write
}

// NewReplaying builds a replay-mode backend over the call table and file
// snapshots of one captured event, classifying mutating operations with
// registry.
func NewReplaying(table *Table, files map[string][]byte, registry *hook.Registry, policy WritePolicy) *Replaying {
	return &Replaying{table: table, files: files, registry: registry, policy: policy}
}

// Call answers the call from the table, or from the file snapshots for
// tracked reads. Mutating calls are handled per the write policy. A
// signature with no remaining matching record fails with a MismatchError,
// never a fabricated response.
func (r *Replaying) Call(ctx context.Context, sig hook.Signature) (json.RawMessage, error) {
	if sig.Op == hook.FileRead {
		return r.readSnapshot(sig)
	}

	spec, known := r.registry.Lookup(sig.Op)
	mutating := known && spec.Mutating

	if mutating && r.policy == WritesRejected {
		return nil, fmt.Errorf("%w: %s", ErrWriteRejected, sig)
	}

	result, err := r.table.Next(sig)
	if err != nil {
		return nil, err
	}

	if mutating {
		r.writes = append(r.writes, Write{Signature: sig, Result: result})
	}
	return result, nil
}

// readSnapshot serves a tracked file read from the record's file snapshots.
func (r *Replaying) readSnapshot(sig hook.Signature) (json.RawMessage, error) {
	if len(sig.Args) != 1 {
		return nil, &MismatchError{Signature: sig, Reason: "file-read expects exactly one path argument"}
	}
	content, ok := r.files[sig.Args[0]]
	if !ok {
		return nil, &MismatchError{
			Signature: sig,
			Reason:    "path was not read during the recorded execution",
		}
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("file-read %s: encode content: %w", sig.Args[0], err)
	}
	return encoded, nil
}

// Writes returns the mutating calls diverted to scratch, in call order.
func (r *Replaying) Writes() []Write {
	return r.writes
}

// Table returns the underlying call-response table, for cursor state
// persistence across shim processes.
func (r *Replaying) Table() *Table { return r.table }

// AdoptState merges consumption state produced by out-of-process shim
// calls, so the replay summary reflects what the shims actually served.
func (r *Replaying) AdoptState(cursors map[hook.Op]int, writes []hook.Signature) {
	r.table.SetCursors(cursors)
	for _, sig := range writes {
		r.writes = append(r.writes, Write{Signature: sig})
	}
}
