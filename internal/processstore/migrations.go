package processstore

const schema = `
CREATE TABLE IF NOT EXISTS processes (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL DEFAULT '',
    type TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT,
    steps TEXT NOT NULL DEFAULT '[]',
    retries INTEGER NOT NULL DEFAULT 0,
    automated BOOLEAN NOT NULL DEFAULT FALSE,
    metadata TEXT NOT NULL DEFAULT '{}',
    import_batch TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processes_status ON processes(status);
CREATE INDEX IF NOT EXISTS idx_processes_type ON processes(type);
CREATE INDEX IF NOT EXISTS idx_processes_owner ON processes(owner_id);
`
