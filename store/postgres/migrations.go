package postgres

// migration is one ordered schema change applied by Migrate.
type migration struct {
	version string
	name    string
	up      string
}

// migrations are applied in order; applied versions are tracked in
// hookline_schema_migrations.
var migrations = []migration{
	{
		version: "20250101000001",
		name:    "create_hookline_events",
		up: `
CREATE TABLE IF NOT EXISTS hookline_events (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL,
    client_id   TEXT NOT NULL DEFAULT '',
    document_id TEXT NOT NULL DEFAULT '',
    payload     JSONB NOT NULL,
    received_at TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_events_project ON hookline_events (project_id, received_at);
`,
	},
	{
		version: "20250101000002",
		name:    "create_hookline_subscribers",
		up: `
CREATE TABLE IF NOT EXISTS hookline_subscribers (
    id           TEXT NOT NULL,
    project_id   TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    headers      JSONB NOT NULL DEFAULT '{}',
    rate_limit   INT NOT NULL DEFAULT 0,
    top_k_exempt BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (project_id, id)
);
`,
	},
	{
		version: "20250101000003",
		name:    "create_hookline_attempts",
		up: `
CREATE TABLE IF NOT EXISTS hookline_attempts (
    id            TEXT PRIMARY KEY,
    event_id      TEXT NOT NULL,
    subscriber_id TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    number        INT NOT NULL,
    status_code   INT NOT NULL DEFAULT 0,
    response      JSONB,
    error         TEXT NOT NULL DEFAULT '',
    duration_ms   INT NOT NULL DEFAULT 0,
    attempted_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hookline_attempts_event ON hookline_attempts (event_id, subscriber_id, number);
`,
	},
	{
		version: "20250101000004",
		name:    "create_hookline_jobs",
		up: `
CREATE TABLE IF NOT EXISTS hookline_jobs (
    id               TEXT PRIMARY KEY,
    event_id         TEXT NOT NULL,
    subscriber_id    TEXT NOT NULL,
    project_id       TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'pending',
    attempt_count    INT NOT NULL DEFAULT 0,
    max_retries      INT NOT NULL DEFAULT 0,
    next_attempt_at  TIMESTAMPTZ NOT NULL,
    last_error       TEXT NOT NULL DEFAULT '',
    last_status_code INT NOT NULL DEFAULT 0,
    last_latency_ms  INT NOT NULL DEFAULT 0,
    completed_at     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_jobs_pending ON hookline_jobs (next_attempt_at) WHERE state = 'pending';
CREATE INDEX IF NOT EXISTS idx_hookline_jobs_event ON hookline_jobs (event_id);
`,
	},
	{
		version: "20250101000005",
		name:    "create_hookline_dlq",
		up: `
CREATE TABLE IF NOT EXISTS hookline_dlq (
    id               TEXT PRIMARY KEY,
    job_id           TEXT NOT NULL,
    event_id         TEXT NOT NULL,
    subscriber_id    TEXT NOT NULL,
    project_id       TEXT NOT NULL,
    url              TEXT NOT NULL DEFAULT '',
    payload          JSONB,
    error            TEXT NOT NULL DEFAULT '',
    attempt_count    INT NOT NULL DEFAULT 0,
    last_status_code INT NOT NULL DEFAULT 0,
    replayed_at      TIMESTAMPTZ,
    failed_at        TIMESTAMPTZ NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_dlq_failed ON hookline_dlq (failed_at);
CREATE INDEX IF NOT EXISTS idx_hookline_dlq_project ON hookline_dlq (project_id);
`,
	},
}
