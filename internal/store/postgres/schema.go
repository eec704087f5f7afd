package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for all capture-engine tables. Execute it via
// [Migrate] or apply it manually during deployment.
//
// Machines, people, and contacts are owned by the host ERP; the tables here
// mirror the columns the capture engine reads and writes so the engine can
// also run against its own database in development.
const Schema = `
CREATE TABLE IF NOT EXISTS machines (
    id         BIGSERIAL PRIMARY KEY,
    company_id BIGINT NOT NULL DEFAULT 0,
    name       TEXT NOT NULL,
    code       TEXT NOT NULL DEFAULT '',
    aliases    JSONB NOT NULL DEFAULT '[]',
    grp        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_machines_company ON machines(company_id);

CREATE TABLE IF NOT EXISTS people (
    id         BIGSERIAL PRIMARY KEY,
    company_id BIGINT NOT NULL DEFAULT 0,
    name       TEXT NOT NULL,
    nickname   TEXT NOT NULL DEFAULT '',
    aliases    JSONB NOT NULL DEFAULT '[]',
    grp        TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL DEFAULT 'system',
    discord_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_people_company ON people(company_id);

CREATE TABLE IF NOT EXISTS contacts (
    id         BIGSERIAL PRIMARY KEY,
    company_id BIGINT NOT NULL DEFAULT 0,
    name       TEXT NOT NULL,
    phone      TEXT NOT NULL DEFAULT '',
    notes      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tasks (
    id          BIGSERIAL PRIMARY KEY,
    company_id  BIGINT NOT NULL DEFAULT 0,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    assignee_id BIGINT NOT NULL,
    due_at      TIMESTAMPTZ,
    priority    TEXT NOT NULL DEFAULT 'normal',
    status      TEXT NOT NULL DEFAULT 'open',
    created_by  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reminders (
    id             BIGSERIAL PRIMARY KEY,
    company_id     BIGINT NOT NULL DEFAULT 0,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    contact_id     BIGINT,
    assignee_label TEXT NOT NULL DEFAULT '',
    due_at         TIMESTAMPTZ,
    priority       TEXT NOT NULL DEFAULT 'normal',
    created_by     TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS failure_reports (
    id          BIGSERIAL PRIMARY KEY,
    company_id  BIGINT NOT NULL DEFAULT 0,
    machine_id  BIGINT NOT NULL,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    severity    TEXT NOT NULL DEFAULT 'normal',
    reported_by TEXT NOT NULL DEFAULT '',
    transcript  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS work_orders (
    id          BIGSERIAL PRIMARY KEY,
    company_id  BIGINT NOT NULL DEFAULT 0,
    machine_id  BIGINT,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    assignee_id BIGINT,
    due_at      TIMESTAMPTZ,
    priority    TEXT NOT NULL DEFAULT 'normal',
    created_by  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transcription_jobs (
    id         TEXT PRIMARY KEY,
    user_key   TEXT NOT NULL,
    channel_id TEXT NOT NULL DEFAULT '',
    audio_url  TEXT NOT NULL,
    mime_type  TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT 'QUEUED',
    attempts   INT NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    transcript TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcription_jobs_status ON transcription_jobs(status);
`

// Migrate executes the [Schema] DDL, creating all tables and indexes if they
// do not already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}
