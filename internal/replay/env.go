package replay

// Environment variables the shim binary reads to find its mode and data.
// They are injected by the dispatch wrapper (record mode on a unit) or by
// ExecEntrypoint (replay of an external dispatch executable).
const (
	// ModeEnv selects the shim's mode: ModeRecord or ModeReplay.
	ModeEnv = "UNITREPLAY_MODE"

	// DBEnv is the path of the event database.
	DBEnv = "UNITREPLAY_DB"

	// IndexEnv is the index of the record being replayed.
	IndexEnv = "UNITREPLAY_INDEX"

	// SessionFileEnv is the path of the session state file shared by the
	// shim processes of one cross-process replay.
	SessionFileEnv = "UNITREPLAY_SESSION_FILE"

	// WritesEnv selects the write policy for shim processes: WritesScratch
	// (the default) or WritesReject.
	WritesEnv = "UNITREPLAY_WRITES"

	ModeRecord = "record"
	ModeReplay = "replay"

	WritesScratch = "scratch"
	WritesReject  = "reject"
)
