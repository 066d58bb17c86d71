package store

const schemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS containers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    color TEXT NOT NULL,
    icon TEXT NOT NULL,
    temporary BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS rules (
    suffix TEXT PRIMARY KEY,
    container_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (container_id) REFERENCES containers(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS psl_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    last_updated TIMESTAMP NOT NULL,
    entry_count INTEGER NOT NULL,
    source TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_container ON rules(container_id);
`
