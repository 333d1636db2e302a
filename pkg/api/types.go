package api

import (
	"context"

	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/search"
	"github.com/platinummonkey/workspaces/pkg/settings"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// WorkspaceService is the workspace lifecycle surface the handlers call
type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, ownerUserID, name string) (*workspace.Workspace, error)
	RenameWorkspace(ctx context.Context, workspaceID, actorUserID, name string) (*workspace.Workspace, error)
	ArchiveWorkspace(ctx context.Context, workspaceID, actorUserID string) (*workspace.Workspace, error)
	GetWorkspace(ctx context.Context, workspaceID string) (*workspace.Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) []workspace.Workspace
	ListMembers(ctx context.Context, workspaceID, actorUserID string) ([]workspace.Member, error)
	UpdateMemberRole(ctx context.Context, workspaceID, actorUserID, targetUserID string, role rbac.Role) (*workspace.Member, error)
	RemoveMember(ctx context.Context, workspaceID, actorUserID, targetUserID string) (*workspace.Member, error)
	InviteMember(ctx context.Context, workspaceID, email string, role rbac.Role, inviterUserID string) (*workspace.Invite, error)
	ListInvites(ctx context.Context, workspaceID, actorUserID string) ([]workspace.Invite, error)
	RespondToInvite(ctx context.Context, inviteID, responderUserID, responderEmail string, decision workspace.Decision) (*workspace.Invite, *workspace.Member, error)
	RevokeInvite(ctx context.Context, inviteID, actorUserID string) (*workspace.Invite, error)
	Authorize(ctx context.Context, workspaceID, userID string, action rbac.Action) (rbac.Role, error)
}

// SettingsService is the workspace settings surface
type SettingsService interface {
	GenerateInviteLink(ctx context.Context, req settings.InviteLinkRequest) (*settings.InviteLink, error)
	AcceptInviteLink(ctx context.Context, link, responderUserID, responderEmail string) (*workspace.Invite, *workspace.Member, error)
	GetSettings(ctx context.Context, workspaceID, actorUserID string) (*settings.Settings, error)
	UpdateNotificationPreferences(ctx context.Context, workspaceID, actorUserID string, update settings.NotificationUpdate) (*settings.NotificationPreferences, error)
	UpdateAPIKeyConfig(ctx context.Context, workspaceID, actorUserID string, provider keys.Provider, update settings.APIKeyUpdate) (*settings.APIKeyConfig, error)
}

// MemberKeys stores a member's own provider key inside a workspace
type MemberKeys interface {
	SetWorkspaceMemberKey(workspaceID, userID string, provider keys.Provider, key string)
	ClearWorkspaceMemberKey(workspaceID, userID string, provider keys.Provider)
}

// Searcher runs cross-workspace search
type Searcher interface {
	SearchAcrossWorkspaces(ctx context.Context, req search.Request) (*search.Response, error)
}

// CreateWorkspaceRequest is the body of POST /workspaces
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

// RenameWorkspaceRequest is the body of PATCH /workspaces/{id}
type RenameWorkspaceRequest struct {
	Name string `json:"name"`
}

// UpdateRoleRequest is the body of PUT /workspaces/{id}/members/{user_id}/role
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// InviteRequest is the body of POST /workspaces/{id}/invites and
// POST /workspaces/{id}/invite-links
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RespondInviteRequest is the body of POST /invites/{invite_id}/respond
type RespondInviteRequest struct {
	Decision string `json:"decision"`
}

// AcceptInviteLinkRequest is the body of POST /invite-links/accept
type AcceptInviteLinkRequest struct {
	Link string `json:"link"`
}

// SetMemberKeyRequest is the body of PUT /workspaces/{id}/keys/{provider}
type SetMemberKeyRequest struct {
	Key string `json:"key"`
}

// InviteResponse is returned when an invite is answered
type InviteResponse struct {
	Invite *workspace.Invite `json:"invite"`
	Member *workspace.Member `json:"member,omitempty"`
}

// ListResponse wraps collection results
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
