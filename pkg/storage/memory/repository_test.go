package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workspaces/pkg/async"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

func seed(t *testing.T, r *Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.UpsertWorkspace(ctx, workspace.WorkspaceRecord{
		SchemaVersion: workspace.SchemaVersion,
		Workspace:     workspace.Workspace{ID: "ws-1", Name: "Alpha", Revision: 2},
	}))
	require.NoError(t, r.UpsertMember(ctx, workspace.MemberRecord{
		SchemaVersion: workspace.SchemaVersion,
		Member:        workspace.Member{ID: "m-1", WorkspaceID: "ws-1", UserID: "owner-1", Role: rbac.RoleOwner, Revision: 1},
	}))
	require.NoError(t, r.UpsertInvite(ctx, workspace.InviteRecord{
		SchemaVersion: workspace.SchemaVersion,
		Invite:        workspace.Invite{ID: "inv-1", WorkspaceID: "ws-1", Email: "a@example.com", Revision: 1},
	}))
}

func TestRepository_UpsertKeepsHigherRevision(t *testing.T) {
	r := NewRepository()
	seed(t, r)
	ctx := context.Background()

	require.NoError(t, r.UpsertWorkspace(ctx, workspace.WorkspaceRecord{
		SchemaVersion: workspace.SchemaVersion,
		Workspace:     workspace.Workspace{ID: "ws-1", Name: "Stale", Revision: 1},
	}))

	list, err := r.ListWorkspaces(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alpha", list[0].Workspace.Name)

	require.NoError(t, r.UpsertWorkspace(ctx, workspace.WorkspaceRecord{
		SchemaVersion: workspace.SchemaVersion,
		Workspace:     workspace.Workspace{ID: "ws-1", Name: "Newer", Revision: 3},
	}))
	list, _ = r.ListWorkspaces(ctx, "owner-1")
	assert.Equal(t, "Newer", list[0].Workspace.Name)
}

func TestRepository_ReadsAreScopedToMembers(t *testing.T) {
	r := NewRepository()
	seed(t, r)
	ctx := context.Background()

	list, err := r.ListWorkspaces(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, list)

	members, err := r.ListMembers(ctx, "stranger", "ws-1")
	require.NoError(t, err)
	assert.Empty(t, members)

	invites, err := r.ListInvites(ctx, "stranger", "ws-1")
	require.NoError(t, err)
	assert.Empty(t, invites)

	invites, err = r.ListInvites(ctx, "owner-1", "ws-1")
	require.NoError(t, err)
	assert.Len(t, invites, 1)
}

func TestRepository_CancelledContext(t *testing.T) {
	r := NewRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, r.UpsertWorkspace(ctx, workspace.WorkspaceRecord{}))
	_, err := r.ListWorkspaces(ctx, "owner-1")
	assert.Error(t, err)
}

func TestRepository_RoundTripThroughManager(t *testing.T) {
	repo := NewRepository()
	outbox := async.NewOutbox(async.OutboxConfig{Name: "test", InitialBackoff: time.Millisecond}, nil)
	defer outbox.Close(context.Background())
	ctx := context.Background()

	writer := workspace.NewManager(workspace.NewStore(), workspace.WithPersistence(repo, outbox))
	ws, err := writer.CreateWorkspace(ctx, "owner-1", "Alpha")
	require.NoError(t, err)
	inv, err := writer.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")
	require.NoError(t, err)
	_, _, err = writer.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", workspace.DecisionAccept)
	require.NoError(t, err)

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, outbox.Flush(flushCtx))

	reader := workspace.NewManager(workspace.NewStore(), workspace.WithPersistence(repo, outbox))
	require.NoError(t, reader.Hydrate(ctx, "user-2"))

	role, ok := reader.GetMemberRole(ctx, ws.ID, "user-2")
	assert.True(t, ok)
	assert.Equal(t, rbac.RoleMember, role)

	members, err := reader.ListMembers(ctx, ws.ID, "user-2")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
