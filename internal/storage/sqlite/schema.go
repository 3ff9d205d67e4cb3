package sqlite

// SchemaVersion is recorded in the config table when a project is created.
const SchemaVersion = "1"

const schema = `
-- Parse runs
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    input_dir TEXT NOT NULL DEFAULT '',
    output_path TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    candidates INTEGER NOT NULL DEFAULT 0 CHECK(candidates >= 0),
    kept INTEGER NOT NULL DEFAULT 0 CHECK(kept >= 0),
    config TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_completed_at ON runs(completed_at);

-- Final deduplicated chains per run
CREATE TABLE IF NOT EXISTS snapshot_chains (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    chain_id TEXT NOT NULL,
    first_res INTEGER NOT NULL,
    input TEXT NOT NULL,
    dssp8 TEXT NOT NULL CHECK(length(dssp8) = length(input)),
    PRIMARY KEY (run_id, chain_id),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshot_chains_position ON snapshot_chains(run_id, position);

-- Key/value settings
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
