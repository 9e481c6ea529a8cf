package store

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,
    environment TEXT NOT NULL,
    files TEXT NOT NULL DEFAULT '{}',
    committed BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS calls (
    event_id INTEGER NOT NULL,
    call_index INTEGER NOT NULL,
    op TEXT NOT NULL,
    args TEXT NOT NULL,
    result TEXT NOT NULL,
    policy TEXT NOT NULL,
    PRIMARY KEY (event_id, call_index),
    FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_committed ON events(committed, id);
CREATE INDEX IF NOT EXISTS idx_calls_event ON calls(event_id, call_index);
`
