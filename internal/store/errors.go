package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the requested index is out of range.
var ErrNotFound = errors.New("no event record at that index")

// ErrInProgress is returned by BeginDraft when another recording is already
// in flight for this database. Only one event invocation runs per unit at a
// time; a second draft would interleave two executions.
var ErrInProgress = errors.New("an event recording is already in progress")

// ErrNoDraft is returned by draft operations when no recording is in flight.
var ErrNoDraft = errors.New("no event recording in progress")

// ErrCorrupt matches any CorruptionError via errors.Is.
var ErrCorrupt = errors.New("event database corrupt")

// CorruptionError reports a persisted record that fails to parse. Index is
// the offending record's position, or -1 when it cannot be determined. No
// recovery is attempted: the append-only layout keeps corruption localized,
// and a partial read would silently falsify a replay.
type CorruptionError struct {
	Index int
	Err   error
}

func (e *CorruptionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("event database corrupt: %v", e.Err)
	}
	return fmt.Sprintf("event database corrupt at record %d: %v", e.Index, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

func (e *CorruptionError) Is(target error) bool { return target == ErrCorrupt }
