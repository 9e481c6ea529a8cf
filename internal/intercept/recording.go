package intercept

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blackwell-systems/unitreplay/internal/hook"
	"github.com/blackwell-systems/unitreplay/internal/recorder"
)

// Recording passes every call through to a live backend unmodified and
// appends a call record to the in-progress event. All real side effects
// happen normally; record mode only observes.
type Recording struct {
	live    hook.Backend
	session *recorder.Session
}

// NewRecording wraps live so that every call is also written into session.
func NewRecording(live hook.Backend, session *recorder.Session) *Recording {
	return &Recording{live: live, session: session}
}

// Call forwards the call to the live backend and records its result. A
// failed live call is not recorded: the agent aborts the hook on tool
// errors, so a failing invocation never becomes a committed record.
//
// Tracked file reads are captured as file snapshots (once per unique path
// per event) rather than as call records.
func (r *Recording) Call(ctx context.Context, sig hook.Signature) (json.RawMessage, error) {
	result, err := r.live.Call(ctx, sig)
	if err != nil {
		return nil, err
	}

	if sig.Op == hook.FileRead {
		var content []byte
		if err := json.Unmarshal(result, &content); err != nil {
			return nil, fmt.Errorf("recording %s: decode content: %w", sig, err)
		}
		if err := r.session.SnapshotFile(sig.Args[0], content); err != nil {
			return nil, fmt.Errorf("recording %s: %w", sig, err)
		}
		return result, nil
	}

	if _, err := r.session.RecordCall(sig, result); err != nil {
		return nil, fmt.Errorf("recording %s: %w", sig, err)
	}
	return result, nil
}
