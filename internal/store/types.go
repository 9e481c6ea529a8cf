package store

import (
	"encoding/json"
	"time"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// CallRecord is one intercepted hook-tool call observed during an event:
// its signature, its returned value, and its position within the event.
// Immutable once written; owned exclusively by one EventRecord.
type CallRecord struct {
	Index     int
	Signature hook.Signature
	Result    json.RawMessage
	Policy    hook.Policy
}

// EventRecord is one captured unit-agent invocation: the triggering event's
// name, the full process environment at dispatch time, every hook-tool call
// observed in order, and the contents of tracked files read during the
// invocation. Index is the record's 0-based position in commit order.
type EventRecord struct {
	Index       int
	Name        string
	RecordedAt  time.Time
	Environment map[string]string
	Calls       []CallRecord
	Files       map[string][]byte
}

// EventSummary is the listing view of a committed record.
type EventSummary struct {
	Index      int
	RecordedAt time.Time
	Name       string
}
