package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/rbac"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1))
	}
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *testClock) {
	t.Helper()
	clock := newTestClock()
	base := []Option{WithClock(clock.Now), WithIDGenerator(sequentialIDs())}
	return NewManager(NewStore(), append(base, opts...)...), clock
}

// addMember invites and accepts userID at role, acting as the owner
func addMember(t *testing.T, m *Manager, ws *Workspace, userID string, role rbac.Role) {
	t.Helper()
	ctx := context.Background()
	email := userID + "@example.com"
	inv, err := m.InviteMember(ctx, ws.ID, email, role, ws.OwnerUserID)
	require.NoError(t, err)
	_, _, err = m.RespondToInvite(ctx, inv.ID, userID, email, DecisionAccept)
	require.NoError(t, err)
}

func assertPermissionReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, rbac.ErrPermissionDenied), "expected permission error, got %v", err)
	var perr *rbac.PermissionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, reason, perr.Reason)
}

func TestManager_CreateWorkspace(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	ws, err := m.CreateWorkspace(ctx, "owner-1", "  Workspace Alpha ")
	require.NoError(t, err)

	assert.Equal(t, "Workspace Alpha", ws.Name)
	assert.Equal(t, "workspace-alpha", ws.Slug)
	assert.Equal(t, StatusActive, ws.Status)
	assert.Equal(t, "owner-1", ws.OwnerUserID)
	assert.Equal(t, clock.Now(), ws.CreatedAt)
	assert.Equal(t, "ws/"+ws.ID+"/conversations", ws.Namespaces.Conversations)
	assert.Equal(t, "ws/"+ws.ID+"/knowledge", ws.Namespaces.Knowledge)
	assert.Equal(t, "ws/"+ws.ID+"/workflows", ws.Namespaces.Workflows)

	members, err := m.ListMembers(ctx, ws.ID, "owner-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, rbac.RoleOwner, members[0].Role)
	assert.Equal(t, "owner-1", members[0].UserID)

	role, ok := m.GetMemberRole(ctx, ws.ID, "owner-1")
	assert.True(t, ok)
	assert.Equal(t, rbac.RoleOwner, role)
}

func TestManager_CreateWorkspaceValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateWorkspace(ctx, "owner-1", "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.CreateWorkspace(ctx, "", "Alpha")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	long := make([]byte, maxWorkspaceNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = m.CreateWorkspace(ctx, "owner-1", string(long))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_InviteAndAccept(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, err := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	require.NoError(t, err)

	inv, err := m.InviteMember(ctx, ws.ID, " Alex@Example.com ", rbac.RoleMember, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", inv.Email)
	assert.Equal(t, InvitePending, inv.Status)
	assert.Equal(t, inv.CreatedAt.Add(DefaultInviteTTL), inv.ExpiresAt)

	answered, member, err := m.RespondToInvite(ctx, inv.ID, "user-2", "ALEX@example.com", DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, InviteAccepted, answered.Status)
	assert.Equal(t, "user-2", answered.ResponderUserID)
	require.NotNil(t, answered.RespondedAt)
	require.NotNil(t, member)
	assert.Equal(t, rbac.RoleMember, member.Role)

	list := m.ListWorkspacesForUser(ctx, "user-2")
	require.Len(t, list, 1)
	assert.Equal(t, ws.ID, list[0].ID)
}

func TestManager_RespondTwice(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, err := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleViewer, "owner-1")
	require.NoError(t, err)

	_, _, err = m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionAccept)
	require.NoError(t, err)

	_, _, err = m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionAccept)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, fmt.Sprintf("Invite %s is already accepted.", inv.ID), err.Error())
}

func TestManager_RejectInvite(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, _ := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")

	answered, member, err := m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionReject)
	require.NoError(t, err)
	assert.Nil(t, member)
	assert.Equal(t, InviteRejected, answered.Status)

	_, ok := m.GetMemberRole(ctx, ws.ID, "user-2")
	assert.False(t, ok)
}

func TestManager_RespondEmailMismatch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, _ := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")

	_, _, err := m.RespondToInvite(ctx, inv.ID, "user-3", "sam@example.com", DecisionAccept)
	assert.ErrorIs(t, err, ErrEmailMismatch)

	// The invite stays answerable by the right person.
	_, _, err = m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionAccept)
	assert.NoError(t, err)
}

func TestManager_RespondUnknownInviteAndDecision(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.RespondToInvite(ctx, "missing", "user-2", "alex@example.com", DecisionAccept)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = m.RespondToInvite(ctx, "missing", "user-2", "alex@example.com", Decision("maybe"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_ConcurrentAcceptSucceedsOnce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, _ := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")

	const workers = 16
	var wg sync.WaitGroup
	var successes, stateErrors int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionAccept)
			switch {
			case err == nil:
				atomic.AddInt64(&successes, 1)
			case errors.Is(err, ErrInvalidState):
				atomic.AddInt64(&stateErrors, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)
	assert.Equal(t, int64(workers-1), stateErrors)

	members, err := m.ListMembers(ctx, ws.ID, "owner-1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestManager_InvitePermissions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "member-1", rbac.RoleMember)
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)
	addMember(t, m, ws, "admin-1", rbac.RoleAdmin)

	_, err := m.InviteMember(ctx, ws.ID, "new@example.com", rbac.RoleAdmin, "member-1")
	assertPermissionReason(t, err, "Role member cannot manage members with role admin.")

	_, err = m.InviteMember(ctx, ws.ID, "new@example.com", rbac.RoleViewer, "viewer-1")
	assertPermissionReason(t, err, "Role viewer cannot perform workspace.members.invite.")

	_, err = m.InviteMember(ctx, ws.ID, "new@example.com", rbac.RoleOwner, "owner-1")
	assertPermissionReason(t, err, "Workspace owner membership cannot be modified.")

	_, err = m.InviteMember(ctx, ws.ID, "new@example.com", rbac.RoleViewer, "member-1")
	assert.NoError(t, err)

	_, err = m.InviteMember(ctx, ws.ID, "other@example.com", rbac.RoleMember, "admin-1")
	assert.NoError(t, err)

	_, err = m.InviteMember(ctx, ws.ID, "x@example.com", rbac.RoleViewer, "stranger")
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = m.InviteMember(ctx, "missing", "x@example.com", rbac.RoleViewer, "owner-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_InviteValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")

	_, err := m.InviteMember(ctx, ws.ID, "not-an-email", rbac.RoleMember, "owner-1")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.Role("superuser"), "owner-1")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManager_DuplicatePendingInvite(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")

	_, err := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")
	require.NoError(t, err)

	_, err = m.InviteMember(ctx, ws.ID, "ALEX@example.com", rbac.RoleViewer, "owner-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, fmt.Sprintf("alex@example.com already has a pending invite to workspace %s.", ws.ID), err.Error())

	// Once the first invite lapses a new one can be sent.
	clock.Advance(DefaultInviteTTL + time.Minute)
	_, err = m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleViewer, "owner-1")
	assert.NoError(t, err)
}

func TestManager_ExpiredInvite(t *testing.T) {
	m, clock := newTestManager(t, WithInviteTTL(time.Hour))
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, _ := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")

	clock.Advance(2 * time.Hour)

	_, _, err := m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionAccept)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, fmt.Sprintf("Invite %s is already expired.", inv.ID), err.Error())

	invites, err := m.ListInvites(ctx, ws.ID, "owner-1")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, InviteExpired, invites[0].Status)
}

func TestManager_ExpireInvites(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	m, clock := newTestManager(t, WithInviteTTL(time.Hour), WithMetrics(metrics))
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")

	_, err := m.InviteMember(ctx, ws.ID, "a@example.com", rbac.RoleMember, "owner-1")
	require.NoError(t, err)
	_, err = m.InviteMember(ctx, ws.ID, "b@example.com", rbac.RoleMember, "owner-1")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	_, err = m.InviteMember(ctx, ws.ID, "c@example.com", rbac.RoleMember, "owner-1")
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	count, err := m.ExpireInvites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = m.ExpireInvites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.InvitesExpiredTotal))
}

func TestManager_RevokeInvite(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)
	inv, _ := m.InviteMember(ctx, ws.ID, "alex@example.com", rbac.RoleMember, "owner-1")

	_, err := m.RevokeInvite(ctx, inv.ID, "viewer-1")
	assertPermissionReason(t, err, "Role viewer cannot perform workspace.members.invite.")

	revoked, err := m.RevokeInvite(ctx, inv.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, InviteRevoked, revoked.Status)

	_, _, err = m.RespondToInvite(ctx, inv.ID, "user-2", "alex@example.com", DecisionAccept)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = m.RevokeInvite(ctx, inv.ID, "owner-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestManager_RemoveMember(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "admin-1", rbac.RoleAdmin)
	addMember(t, m, ws, "admin-2", rbac.RoleAdmin)
	addMember(t, m, ws, "member-1", rbac.RoleMember)

	_, err := m.RemoveMember(ctx, ws.ID, "admin-1", "owner-1")
	assertPermissionReason(t, err, "Workspace owner membership cannot be modified.")

	_, err = m.RemoveMember(ctx, ws.ID, "owner-1", "owner-1")
	assertPermissionReason(t, err, "Workspace owner membership cannot be modified.")

	_, err = m.RemoveMember(ctx, ws.ID, "admin-1", "admin-2")
	assertPermissionReason(t, err, "Role admin cannot manage members with role admin.")

	_, err = m.RemoveMember(ctx, ws.ID, "member-1", "admin-1")
	assertPermissionReason(t, err, "Role member cannot perform workspace.members.remove.")

	removed, err := m.RemoveMember(ctx, ws.ID, "admin-1", "member-1")
	require.NoError(t, err)
	require.NotNil(t, removed.RemovedAt)

	_, ok := m.GetMemberRole(ctx, ws.ID, "member-1")
	assert.False(t, ok)
	assert.Empty(t, m.ListWorkspacesForUser(ctx, "member-1"))

	_, err = m.RemoveMember(ctx, ws.ID, "admin-1", "member-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Owner may remove an admin.
	_, err = m.RemoveMember(ctx, ws.ID, "owner-1", "admin-2")
	assert.NoError(t, err)
}

func TestManager_RemovedMemberCanRejoin(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "user-2", rbac.RoleMember)

	before, err := m.ListMembers(ctx, ws.ID, "owner-1")
	require.NoError(t, err)
	var memberID string
	for _, member := range before {
		if member.UserID == "user-2" {
			memberID = member.ID
		}
	}
	require.NotEmpty(t, memberID)

	_, err = m.RemoveMember(ctx, ws.ID, "owner-1", "user-2")
	require.NoError(t, err)

	inv, err := m.InviteMember(ctx, ws.ID, "user-2@example.com", rbac.RoleViewer, "owner-1")
	require.NoError(t, err)
	_, member, err := m.RespondToInvite(ctx, inv.ID, "user-2", "user-2@example.com", DecisionAccept)
	require.NoError(t, err)

	assert.Equal(t, memberID, member.ID)
	assert.Equal(t, rbac.RoleViewer, member.Role)
	assert.True(t, member.Active())

	after, err := m.ListMembers(ctx, ws.ID, "owner-1")
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestManager_OwnerCannotBeReRoledByInvite(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, err := m.InviteMember(ctx, ws.ID, "owner@example.com", rbac.RoleViewer, "owner-1")
	require.NoError(t, err)

	_, _, err = m.RespondToInvite(ctx, inv.ID, "owner-1", "owner@example.com", DecisionAccept)
	assertPermissionReason(t, err, "Workspace owner membership cannot be modified.")

	role, _ := m.GetMemberRole(ctx, ws.ID, "owner-1")
	assert.Equal(t, rbac.RoleOwner, role)
}

func TestManager_UpdateMemberRole(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "admin-1", rbac.RoleAdmin)
	addMember(t, m, ws, "member-1", rbac.RoleMember)
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)

	tests := []struct {
		name   string
		actor  string
		target string
		role   rbac.Role
		reason string
	}{
		{"owner target", "admin-1", "owner-1", rbac.RoleViewer, "Workspace owner membership cannot be modified."},
		{"self", "admin-1", "admin-1", rbac.RoleMember, "Users cannot change their own workspace role."},
		{"member lacks action", "member-1", "viewer-1", rbac.RoleMember, "Role member cannot perform workspace.members.role.manage."},
		{"admin promotes to admin", "admin-1", "member-1", rbac.RoleAdmin, "Role admin cannot manage members with role admin."},
		{"admin assigns owner", "admin-1", "member-1", rbac.RoleOwner, "Only the workspace owner can assign the owner role."},
		{"owner transfers ownership", "owner-1", "member-1", rbac.RoleOwner, "Workspace ownership cannot be transferred."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.UpdateMemberRole(ctx, ws.ID, tt.actor, tt.target, tt.role)
			assertPermissionReason(t, err, tt.reason)
		})
	}

	updated, err := m.UpdateMemberRole(ctx, ws.ID, "admin-1", "viewer-1", rbac.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleMember, updated.Role)

	updated, err = m.UpdateMemberRole(ctx, ws.ID, "owner-1", "member-1", rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, updated.Role)

	// Unchanged role is a successful no-op.
	before := updated.Revision
	updated, err = m.UpdateMemberRole(ctx, ws.ID, "owner-1", "member-1", rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, before, updated.Revision)

	owners := 0
	members, _ := m.ListMembers(ctx, ws.ID, "owner-1")
	for _, member := range members {
		if member.Role == rbac.RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
}

func TestManager_RenameAndArchive(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "admin-1", rbac.RoleAdmin)
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)

	_, err := m.RenameWorkspace(ctx, ws.ID, "viewer-1", "Beta")
	assertPermissionReason(t, err, "Role viewer cannot perform workspace.settings.manage.")

	renamed, err := m.RenameWorkspace(ctx, ws.ID, "admin-1", "Beta Team")
	require.NoError(t, err)
	assert.Equal(t, "Beta Team", renamed.Name)
	assert.Equal(t, "beta-team", renamed.Slug)
	assert.Equal(t, ws.Namespaces, renamed.Namespaces)
	assert.Greater(t, renamed.Revision, ws.Revision)

	_, err = m.ArchiveWorkspace(ctx, ws.ID, "admin-1")
	assertPermissionReason(t, err, "Role admin cannot perform workspace.archive.")

	archivedWS, err := m.ArchiveWorkspace(ctx, ws.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archivedWS.Status)

	assert.Empty(t, m.ListWorkspacesForUser(ctx, "owner-1"))

	_, err = m.InviteMember(ctx, ws.ID, "x@example.com", rbac.RoleViewer, "owner-1")
	assert.ErrorIs(t, err, ErrArchived)
	_, err = m.RenameWorkspace(ctx, ws.ID, "owner-1", "Gamma")
	assert.ErrorIs(t, err, ErrArchived)

	got, err := m.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Status)
}

func TestManager_ViewerCannotMutate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)
	addMember(t, m, ws, "viewer-2", rbac.RoleViewer)

	_, err := m.InviteMember(ctx, ws.ID, "x@example.com", rbac.RoleViewer, "viewer-1")
	assert.ErrorIs(t, err, rbac.ErrPermissionDenied)
	_, err = m.RemoveMember(ctx, ws.ID, "viewer-1", "viewer-2")
	assert.ErrorIs(t, err, rbac.ErrPermissionDenied)
	_, err = m.UpdateMemberRole(ctx, ws.ID, "viewer-1", "viewer-2", rbac.RoleViewer)
	assert.ErrorIs(t, err, rbac.ErrPermissionDenied)
	_, err = m.ArchiveWorkspace(ctx, ws.ID, "viewer-1")
	assert.ErrorIs(t, err, rbac.ErrPermissionDenied)

	members, err := m.ListMembers(ctx, ws.ID, "viewer-1")
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestManager_ListMembersRequiresMembership(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")

	_, err := m.ListMembers(ctx, ws.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = m.ListInvites(ctx, "missing", "owner-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// An empty actor is an internal read without a permission check.
	members, err := m.ListMembers(ctx, ws.ID, "")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestManager_Authorize(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)

	role, err := m.Authorize(ctx, ws.ID, "viewer-1", rbac.ActionKnowledgeRead)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleViewer, role)

	_, err = m.Authorize(ctx, ws.ID, "viewer-1", rbac.ActionKnowledgeWrite)
	assert.ErrorIs(t, err, rbac.ErrPermissionDenied)

	_, err = m.Authorize(ctx, ws.ID, "stranger", rbac.ActionRead)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = m.Authorize(ctx, "missing", "viewer-1", rbac.ActionRead)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_MutationMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	m, _ := newTestManager(t, WithMetrics(metrics))
	ctx := context.Background()

	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	_, err := m.InviteMember(ctx, ws.ID, "x@example.com", rbac.RoleViewer, "stranger")
	require.Error(t, err)
	_, err = m.UpdateMemberRole(ctx, ws.ID, "owner-1", "owner-1", rbac.RoleAdmin)
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("create_workspace", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("invite_member", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MutationsTotal.WithLabelValues("update_member_role", "denied")))
}

func TestManager_GetInvite(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	ws, _ := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	inv, err := m.InviteMember(ctx, ws.ID, "a@example.com", rbac.RoleViewer, "owner-1")
	require.NoError(t, err)

	got, err := m.GetInvite(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, got.WorkspaceID)

	_, err = m.GetInvite(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Invite missing was not found.")
}

func TestManager_CountsPermissionDenials(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	m, _ := newTestManager(t, WithMetrics(metrics))
	ctx := context.Background()

	ws, err := m.CreateWorkspace(ctx, "owner-1", "Alpha")
	require.NoError(t, err)
	addMember(t, m, ws, "viewer-1", rbac.RoleViewer)

	_, err = m.InviteMember(ctx, ws.ID, "new@example.com", rbac.RoleViewer, "viewer-1")
	require.ErrorIs(t, err, rbac.ErrPermissionDenied)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.PermissionDenials.WithLabelValues(string(rbac.ActionMembersInvite), string(rbac.RoleViewer))))
}
