package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// Repository implements workspace.Repository on PostgreSQL. Writes go to
// the primary, reads to a replica.
type Repository struct {
	conn *ConnectionManager
}

// NewRepository creates a repository over conn
func NewRepository(conn *ConnectionManager) *Repository {
	return &Repository{conn: conn}
}

// HealthCheck pings the underlying connections
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.conn.HealthCheck(ctx)
}

// Close closes the underlying connections
func (r *Repository) Close() error {
	return r.conn.Close()
}

// An upsert only replaces a row whose revision is not newer than the
// incoming one.

const upsertWorkspaceQuery = `
	INSERT INTO workspaces (id, name, slug, status, owner_user_id,
		ns_conversations, ns_knowledge, ns_workflows,
		created_at, updated_at, revision, schema_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		slug = EXCLUDED.slug,
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at,
		revision = EXCLUDED.revision,
		schema_version = EXCLUDED.schema_version
	WHERE workspaces.revision <= EXCLUDED.revision
`

const upsertMemberQuery = `
	INSERT INTO workspace_members (id, workspace_id, user_id, role,
		joined_at, removed_at, updated_at, revision, schema_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		role = EXCLUDED.role,
		joined_at = EXCLUDED.joined_at,
		removed_at = EXCLUDED.removed_at,
		updated_at = EXCLUDED.updated_at,
		revision = EXCLUDED.revision,
		schema_version = EXCLUDED.schema_version
	WHERE workspace_members.revision <= EXCLUDED.revision
`

const upsertInviteQuery = `
	INSERT INTO workspace_invites (id, workspace_id, email, role,
		inviter_user_id, status, created_at, expires_at,
		responded_at, responder_user_id, revision, schema_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		responded_at = EXCLUDED.responded_at,
		responder_user_id = EXCLUDED.responder_user_id,
		revision = EXCLUDED.revision,
		schema_version = EXCLUDED.schema_version
	WHERE workspace_invites.revision <= EXCLUDED.revision
`

// UpsertWorkspace writes a workspace record
func (r *Repository) UpsertWorkspace(ctx context.Context, rec workspace.WorkspaceRecord) error {
	ws := rec.Workspace
	_, err := r.conn.Primary().ExecContext(ctx, upsertWorkspaceQuery,
		ws.ID, ws.Name, ws.Slug, string(ws.Status), ws.OwnerUserID,
		ws.Namespaces.Conversations, ws.Namespaces.Knowledge, ws.Namespaces.Workflows,
		ws.CreatedAt, ws.UpdatedAt, ws.Revision, rec.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert workspace: %w", err)
	}
	return nil
}

// UpsertMember writes a member record
func (r *Repository) UpsertMember(ctx context.Context, rec workspace.MemberRecord) error {
	m := rec.Member
	_, err := r.conn.Primary().ExecContext(ctx, upsertMemberQuery,
		m.ID, m.WorkspaceID, m.UserID, string(m.Role),
		m.JoinedAt, nullTime(m.RemovedAt), m.UpdatedAt, m.Revision, rec.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// UpsertInvite writes an invite record
func (r *Repository) UpsertInvite(ctx context.Context, rec workspace.InviteRecord) error {
	inv := rec.Invite
	_, err := r.conn.Primary().ExecContext(ctx, upsertInviteQuery,
		inv.ID, inv.WorkspaceID, inv.Email, string(inv.Role),
		inv.InviterUserID, string(inv.Status), inv.CreatedAt, inv.ExpiresAt,
		nullTime(inv.RespondedAt), inv.ResponderUserID, inv.Revision, rec.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert invite: %w", err)
	}
	return nil
}

const listWorkspacesQuery = `
	SELECT w.id, w.name, w.slug, w.status, w.owner_user_id,
		w.ns_conversations, w.ns_knowledge, w.ns_workflows,
		w.created_at, w.updated_at, w.revision, w.schema_version
	FROM workspaces w
	WHERE EXISTS (
		SELECT 1 FROM workspace_members m
		WHERE m.workspace_id = w.id AND m.user_id = $1
	)
	ORDER BY w.created_at, w.id
`

// ListWorkspaces returns the workspaces userID holds a member record in
func (r *Repository) ListWorkspaces(ctx context.Context, userID string) ([]workspace.WorkspaceRecord, error) {
	rows, err := r.conn.Replica().QueryContext(ctx, listWorkspacesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []workspace.WorkspaceRecord
	for rows.Next() {
		var rec workspace.WorkspaceRecord
		var status string
		ws := &rec.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Slug, &status, &ws.OwnerUserID,
			&ws.Namespaces.Conversations, &ws.Namespaces.Knowledge, &ws.Namespaces.Workflows,
			&ws.CreatedAt, &ws.UpdatedAt, &ws.Revision, &rec.SchemaVersion); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		ws.Status = workspace.Status(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}
	return out, nil
}

const listMembersQuery = `
	SELECT id, workspace_id, user_id, role, joined_at, removed_at,
		updated_at, revision, schema_version
	FROM workspace_members
	WHERE workspace_id = $2 AND EXISTS (
		SELECT 1 FROM workspace_members me
		WHERE me.workspace_id = $2 AND me.user_id = $1
	)
	ORDER BY joined_at, id
`

// ListMembers returns the member records of workspaceID, or nothing when
// userID holds none of them
func (r *Repository) ListMembers(ctx context.Context, userID, workspaceID string) ([]workspace.MemberRecord, error) {
	rows, err := r.conn.Replica().QueryContext(ctx, listMembersQuery, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []workspace.MemberRecord
	for rows.Next() {
		var rec workspace.MemberRecord
		var role string
		var removedAt sql.NullTime
		m := &rec.Member
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &role, &m.JoinedAt, &removedAt,
			&m.UpdatedAt, &m.Revision, &rec.SchemaVersion); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = rbac.Role(role)
		m.RemovedAt = timePtr(removedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return out, nil
}

const listInvitesQuery = `
	SELECT id, workspace_id, email, role, inviter_user_id, status,
		created_at, expires_at, responded_at, responder_user_id,
		revision, schema_version
	FROM workspace_invites
	WHERE workspace_id = $2 AND EXISTS (
		SELECT 1 FROM workspace_members me
		WHERE me.workspace_id = $2 AND me.user_id = $1
	)
	ORDER BY created_at, id
`

// ListInvites returns the invites of workspaceID, or nothing when userID
// holds no member record in it
func (r *Repository) ListInvites(ctx context.Context, userID, workspaceID string) ([]workspace.InviteRecord, error) {
	rows, err := r.conn.Replica().QueryContext(ctx, listInvitesQuery, userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var out []workspace.InviteRecord
	for rows.Next() {
		var rec workspace.InviteRecord
		var role, status string
		var respondedAt sql.NullTime
		inv := &rec.Invite
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &role, &inv.InviterUserID, &status,
			&inv.CreatedAt, &inv.ExpiresAt, &respondedAt, &inv.ResponderUserID,
			&inv.Revision, &rec.SchemaVersion); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		inv.Role = rbac.Role(role)
		inv.Status = workspace.InviteStatus(status)
		inv.RespondedAt = timePtr(respondedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invites: %w", err)
	}
	return out, nil
}
