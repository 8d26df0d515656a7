package db

// SchemaSQL defines the job_snapshot table.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS job_snapshot SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS jid ON job_snapshot TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON job_snapshot TYPE string;
    DEFINE FIELD IF NOT EXISTS state ON job_snapshot TYPE string;
    DEFINE FIELD IF NOT EXISTS previous_state ON job_snapshot TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS start_time ON job_snapshot TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS end_time ON job_snapshot TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS duration ON job_snapshot TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS last_modification ON job_snapshot TYPE option<string>;
    -- task counters are stored as reported, no per-counter fields
    DEFINE FIELD IF NOT EXISTS tasks ON job_snapshot TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS poll_id ON job_snapshot TYPE string;
    DEFINE FIELD IF NOT EXISTS observed_at ON job_snapshot TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS job_snapshot_jid ON job_snapshot FIELDS jid;
    DEFINE INDEX IF NOT EXISTS job_snapshot_observed ON job_snapshot FIELDS jid, observed_at;
`
