package serverdb

// ServerSchemaVersion is the current authority schema version.
const ServerSchemaVersion = 1

const serverSchema = `
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Every ruling, keyed by the client's write id so retries get the same answer.
CREATE TABLE IF NOT EXISTS feature_writes (
    write_id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    echo TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
