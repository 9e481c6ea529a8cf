// Package intercept implements the call interceptor that sits between a
// charm and its agent. The same hook.Backend interface is served in three
// modes: Exec (live hook tools), Recording (pass through and log every
// call), and Replaying (answer every call from a captured event, no live
// backend required or permitted).
package intercept

import (
	"encoding/json"
	"fmt"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/store"
)

// Table is the call-response table of one replay session, derived from the
// call records of a single event record.
//
// Sequenced operations keep their records in original order with a
// per-operation cursor: each replayed call consumes the next record for its
// operation, and the recorded and actual argument tuples must agree. This
// is what makes replay sequence-faithful: a handler that calls the same
// tool twice and saw two different values gets those two values back in
// order, not the first match twice.
//
// Keyed operations are matched purely on signature.
//
// The table never touches the store: cursors are session state, destroyed
// with the session, so replaying the same record twice starts fresh both
// times.
type Table struct {
	sequenced map[hook.Op][]store.CallRecord
	cursors   map[hook.Op]int
	keyed     map[string]json.RawMessage
}

// NewTable builds a call-response table from the calls of one event record.
func NewTable(calls []store.CallRecord) *Table {
	t := &Table{
		sequenced: make(map[hook.Op][]store.CallRecord),
		cursors:   make(map[hook.Op]int),
		keyed:     make(map[string]json.RawMessage),
	}
	for _, call := range calls {
		switch call.Policy {
		case hook.Keyed:
			t.keyed[call.Signature.Key()] = call.Result
		default:
			op := call.Signature.Op
			t.sequenced[op] = append(t.sequenced[op], call)
		}
	}
	return t
}

// Next answers one intercepted call from the table. It fails with a
// MismatchError when no unconsumed matching record remains.
func (t *Table) Next(sig hook.Signature) (json.RawMessage, error) {
	if result, ok := t.keyed[sig.Key()]; ok {
		return result, nil
	}

	records, ok := t.sequenced[sig.Op]
	if !ok {
		return nil, &MismatchError{
			Signature: sig,
			Reason:    "operation was never called in the recorded execution",
		}
	}

	cursor := t.cursors[sig.Op]
	if cursor >= len(records) {
		return nil, &MismatchError{
			Signature: sig,
			Reason: fmt.Sprintf("all %d recorded calls already consumed; the handler calls this operation more often than the recorded execution did",
				len(records)),
		}
	}

	rec := records[cursor]
	if !rec.Signature.Equal(sig) {
		return nil, &MismatchError{
			Signature: sig,
			Reason:    fmt.Sprintf("arguments diverged from recorded call %d (%s)", rec.Index, rec.Signature),
		}
	}

	t.cursors[sig.Op] = cursor + 1
	return rec.Result, nil
}

// Remaining returns how many sequenced records are left unconsumed.
func (t *Table) Remaining() int {
	n := 0
	for op, records := range t.sequenced {
		if left := len(records) - t.cursors[op]; left > 0 {
			n += left
		}
	}
	return n
}

// Cursors exports the per-operation consumption state, for sessions that
// span multiple shim processes.
func (t *Table) Cursors() map[hook.Op]int {
	out := make(map[hook.Op]int, len(t.cursors))
	for op, c := range t.cursors {
		out[op] = c
	}
	return out
}

// SetCursors restores previously exported consumption state.
func (t *Table) SetCursors(cursors map[hook.Op]int) {
	t.cursors = make(map[hook.Op]int, len(cursors))
	for op, c := range cursors {
		t.cursors[op] = c
	}
}
