package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackwell-systems/unitreplay/internal/hook"
)

// Draft lifecycle.
//
// A recording in flight is a single uncommitted row in the events table.
// Draft rows are invisible to List and Get, so a crash before CommitDraft
// leaves the committed log exactly as it was before BeginDraft. Keeping the
// draft in the database (rather than in process memory) also enforces the
// one-invocation-at-a-time rule across the shim processes a single dispatch
// spawns.

// DraftInfo identifies the recording currently in flight.
type DraftInfo struct {
	ID   int64
	Name string
}

// BeginDraft opens a new in-progress event record. It fails with
// ErrInProgress if another draft exists; the existing draft is untouched.
func (s *Store) BeginDraft(name string, at time.Time, env map[string]string) (int64, error) {
	envJSON, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal environment: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM events WHERE committed = 0`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to check for in-progress recording: %w", err)
	}
	if existing > 0 {
		return 0, ErrInProgress
	}

	res, err := tx.Exec(
		`INSERT INTO events (name, recorded_at, environment, files, committed) VALUES (?, ?, ?, '{}', 0)`,
		name, at.UTC().Format(time.RFC3339Nano), string(envJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to open draft record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read draft id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to open draft record: %w", err)
	}
	return id, nil
}

// Draft returns the recording currently in flight, or ErrNoDraft.
func (s *Store) Draft() (*DraftInfo, error) {
	var info DraftInfo
	err := s.db.QueryRow(`SELECT id, name FROM events WHERE committed = 0`).Scan(&info.ID, &info.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up draft record: %w", err)
	}
	return &info, nil
}

// AppendCall appends one call record to the draft and returns its position
// within the event. No deduplication: the same signature may repeat.
func (s *Store) AppendCall(draftID int64, sig hook.Signature, result json.RawMessage, policy hook.Policy) (int, error) {
	argsJSON, err := json.Marshal(sig.Args)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal call arguments: %w", err)
	}
	if result == nil {
		result = json.RawMessage("null")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRow(
		`SELECT COALESCE(MAX(call_index) + 1, 0) FROM calls WHERE event_id = ?`, draftID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute call index: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO calls (event_id, call_index, op, args, result, policy) VALUES (?, ?, ?, ?, ?, ?)`,
		draftID, next, string(sig.Op), string(argsJSON), string(result), string(policy),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append call record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to append call record: %w", err)
	}
	return next, nil
}

// SnapshotFile stores the content of one tracked path in the draft. The
// first snapshot per path wins: a file is captured once per event, at first
// read.
func (s *Store) SnapshotFile(draftID int64, path string, content []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var filesJSON string
	err = tx.QueryRow(`SELECT files FROM events WHERE id = ? AND committed = 0`, draftID).Scan(&filesJSON)
	if err == sql.ErrNoRows {
		return ErrNoDraft
	}
	if err != nil {
		return fmt.Errorf("failed to read draft file snapshots: %w", err)
	}

	files := make(map[string][]byte)
	if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
		return fmt.Errorf("failed to parse draft file snapshots: %w", err)
	}
	if _, ok := files[path]; ok {
		return nil
	}
	files[path] = content

	updated, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal file snapshots: %w", err)
	}
	if _, err := tx.Exec(`UPDATE events SET files = ? WHERE id = ?`, string(updated), draftID); err != nil {
		return fmt.Errorf("failed to store file snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to store file snapshot: %w", err)
	}
	return nil
}

// ReplaceFileSnapshot overwrites a previously captured tracked path in the
// draft. Used by the re-snapshot watcher when a tracked file changes while
// the event is still executing.
func (s *Store) ReplaceFileSnapshot(draftID int64, path string, content []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var filesJSON string
	err = tx.QueryRow(`SELECT files FROM events WHERE id = ? AND committed = 0`, draftID).Scan(&filesJSON)
	if err == sql.ErrNoRows {
		return ErrNoDraft
	}
	if err != nil {
		return fmt.Errorf("failed to read draft file snapshots: %w", err)
	}

	files := make(map[string][]byte)
	if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
		return fmt.Errorf("failed to parse draft file snapshots: %w", err)
	}
	files[path] = content

	updated, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal file snapshots: %w", err)
	}
	if _, err := tx.Exec(`UPDATE events SET files = ? WHERE id = ?`, string(updated), draftID); err != nil {
		return fmt.Errorf("failed to store file snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to store file snapshot: %w", err)
	}
	return nil
}

// CommitDraft atomically publishes the draft to the committed log and
// returns its assigned 0-based index. After commit the record is immutable.
func (s *Store) CommitDraft(draftID int64) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE events SET committed = 1 WHERE id = ? AND committed = 0`, draftID)
	if err != nil {
		return 0, fmt.Errorf("failed to commit event record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to commit event record: %w", err)
	}
	if n == 0 {
		return 0, ErrNoDraft
	}

	var index int
	err = tx.QueryRow(
		`SELECT COUNT(*) - 1 FROM events WHERE committed = 1 AND id <= ?`, draftID,
	).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("failed to compute record index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit event record: %w", err)
	}
	return index, nil
}

// AbortDraft discards the recording in flight, if any. The committed log is
// untouched.
func (s *Store) AbortDraft() error {
	res, err := s.db.Exec(`DELETE FROM events WHERE committed = 0`)
	if err != nil {
		return fmt.Errorf("failed to discard draft record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to discard draft record: %w", err)
	}
	if n == 0 {
		return ErrNoDraft
	}
	return nil
}

// List returns summaries of all committed records, oldest first.
func (s *Store) List() ([]EventSummary, error) {
	rows, err := s.db.Query(
		`SELECT name, recorded_at FROM events WHERE committed = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list event records: %w", err)
	}
	defer rows.Close()

	var summaries []EventSummary
	for rows.Next() {
		var sum EventSummary
		var recordedAt string
		if err := rows.Scan(&sum.Name, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		sum.Index = len(summaries)
		sum.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, &CorruptionError{Index: sum.Index, Err: fmt.Errorf("bad timestamp: %w", err)}
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list event records: %w", err)
	}
	return summaries, nil
}

// Count returns the number of committed records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE committed = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count event records: %w", err)
	}
	return n, nil
}

// Get loads the committed record at the given 0-based index. Returns
// ErrNotFound when the index is out of range and a CorruptionError when the
// persisted record fails to parse.
func (s *Store) Get(index int) (*EventRecord, error) {
	if index < 0 {
		return nil, ErrNotFound
	}

	var (
		id         int64
		rec        EventRecord
		recordedAt string
		envJSON    string
		filesJSON  string
	)
	err := s.db.QueryRow(
		`SELECT id, name, recorded_at, environment, files
		 FROM events WHERE committed = 1 ORDER BY id LIMIT 1 OFFSET ?`, index,
	).Scan(&id, &rec.Name, &recordedAt, &envJSON, &filesJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event record %d: %w", index, err)
	}

	rec.Index = index
	rec.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, &CorruptionError{Index: index, Err: fmt.Errorf("bad timestamp: %w", err)}
	}
	if err := json.Unmarshal([]byte(envJSON), &rec.Environment); err != nil {
		return nil, &CorruptionError{Index: index, Err: fmt.Errorf("bad environment: %w", err)}
	}
	if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
		return nil, &CorruptionError{Index: index, Err: fmt.Errorf("bad file snapshots: %w", err)}
	}

	rec.Calls, err = s.loadCalls(id, index)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) loadCalls(eventID int64, index int) ([]CallRecord, error) {
	rows, err := s.db.Query(
		`SELECT call_index, op, args, result, policy
		 FROM calls WHERE event_id = ? ORDER BY call_index`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load calls for record %d: %w", index, err)
	}
	defer rows.Close()

	var calls []CallRecord
	for rows.Next() {
		var (
			call     CallRecord
			op       string
			argsJSON string
			result   string
			policy   string
		)
		if err := rows.Scan(&call.Index, &op, &argsJSON, &result, &policy); err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		call.Signature.Op = hook.Op(op)
		if err := json.Unmarshal([]byte(argsJSON), &call.Signature.Args); err != nil {
			return nil, &CorruptionError{Index: index, Err: fmt.Errorf("bad call arguments: %w", err)}
		}
		if !json.Valid([]byte(result)) {
			return nil, &CorruptionError{Index: index, Err: fmt.Errorf("call %d result is not valid JSON", call.Index)}
		}
		call.Result = json.RawMessage(result)
		call.Policy = hook.Policy(policy)
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load calls for record %d: %w", index, err)
	}
	return calls, nil
}
