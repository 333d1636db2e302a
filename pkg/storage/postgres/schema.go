package postgres

import (
	"context"
	"fmt"
)

// Schema creates the workspace tables. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	slug             TEXT NOT NULL,
	status           TEXT NOT NULL,
	owner_user_id    TEXT NOT NULL,
	ns_conversations TEXT NOT NULL,
	ns_knowledge     TEXT NOT NULL,
	ns_workflows     TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	revision         BIGINT NOT NULL,
	schema_version   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS workspace_members (
	id             TEXT PRIMARY KEY,
	workspace_id   TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	role           TEXT NOT NULL,
	joined_at      TIMESTAMPTZ NOT NULL,
	removed_at     TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL,
	revision       BIGINT NOT NULL,
	schema_version INTEGER NOT NULL,
	UNIQUE (workspace_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_workspace_members_user ON workspace_members (user_id);

CREATE TABLE IF NOT EXISTS workspace_invites (
	id                TEXT PRIMARY KEY,
	workspace_id      TEXT NOT NULL,
	email             TEXT NOT NULL,
	role              TEXT NOT NULL,
	inviter_user_id   TEXT NOT NULL,
	status            TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	responded_at      TIMESTAMPTZ,
	responder_user_id TEXT NOT NULL DEFAULT '',
	revision          BIGINT NOT NULL,
	schema_version    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workspace_invites_workspace ON workspace_invites (workspace_id);
`

// Migrate applies Schema on the primary
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.conn.Primary().ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
