package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/workspaces/pkg/httputil"
	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// WorkspaceHandlers handles workspace, membership, invite and member key requests
type WorkspaceHandlers struct {
	workspaces WorkspaceService
	memberKeys MemberKeys
}

// NewWorkspaceHandlers creates a new WorkspaceHandlers. memberKeys may be
// nil, the key routes are then not registered.
func NewWorkspaceHandlers(workspaces WorkspaceService, memberKeys MemberKeys) *WorkspaceHandlers {
	return &WorkspaceHandlers{
		workspaces: workspaces,
		memberKeys: memberKeys,
	}
}

// RegisterRoutes registers workspace routes
func (h *WorkspaceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces", h.CreateWorkspace).Methods(http.MethodPost)
	router.HandleFunc("/workspaces", h.ListWorkspaces).Methods(http.MethodGet)
	router.HandleFunc("/workspaces/{id}", h.GetWorkspace).Methods(http.MethodGet)
	router.HandleFunc("/workspaces/{id}", h.RenameWorkspace).Methods(http.MethodPatch)
	router.HandleFunc("/workspaces/{id}/archive", h.ArchiveWorkspace).Methods(http.MethodPost)

	// Members
	router.HandleFunc("/workspaces/{id}/members", h.ListMembers).Methods(http.MethodGet)
	router.HandleFunc("/workspaces/{id}/members/{user_id}/role", h.UpdateMemberRole).Methods(http.MethodPut)
	router.HandleFunc("/workspaces/{id}/members/{user_id}", h.RemoveMember).Methods(http.MethodDelete)

	// Invitations
	router.HandleFunc("/workspaces/{id}/invites", h.InviteMember).Methods(http.MethodPost)
	router.HandleFunc("/workspaces/{id}/invites", h.ListInvites).Methods(http.MethodGet)
	router.HandleFunc("/invites/{invite_id}/respond", h.RespondToInvite).Methods(http.MethodPost)
	router.HandleFunc("/invites/{invite_id}", h.RevokeInvite).Methods(http.MethodDelete)

	// Member keys
	if h.memberKeys != nil {
		router.HandleFunc("/workspaces/{id}/keys/{provider}", h.SetMemberKey).Methods(http.MethodPut)
		router.HandleFunc("/workspaces/{id}/keys/{provider}", h.ClearMemberKey).Methods(http.MethodDelete)
	}
}

// CreateWorkspace creates a workspace owned by the caller
func (h *WorkspaceHandlers) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req CreateWorkspaceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, err := h.workspaces.CreateWorkspace(r.Context(), actor.UserID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ws)
}

// ListWorkspaces lists the caller's active workspaces
func (h *WorkspaceHandlers) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, newListResponse(h.workspaces.ListWorkspacesForUser(r.Context(), actor.UserID)))
}

// GetWorkspace returns a workspace the caller is a member of
func (h *WorkspaceHandlers) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, err := h.workspaces.Authorize(r.Context(), id, actor.UserID, rbac.ActionRead); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := h.workspaces.GetWorkspace(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ws)
}

// RenameWorkspace changes a workspace's display name
func (h *WorkspaceHandlers) RenameWorkspace(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req RenameWorkspaceRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ws, err := h.workspaces.RenameWorkspace(r.Context(), mux.Vars(r)["id"], actor.UserID, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ws)
}

// ArchiveWorkspace archives a workspace
func (h *WorkspaceHandlers) ArchiveWorkspace(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	ws, err := h.workspaces.ArchiveWorkspace(r.Context(), mux.Vars(r)["id"], actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ws)
}

// ListMembers lists a workspace's active members
func (h *WorkspaceHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	members, err := h.workspaces.ListMembers(r.Context(), mux.Vars(r)["id"], actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newListResponse(members))
}

// UpdateMemberRole changes a member's role
func (h *WorkspaceHandlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}

	vars := mux.Vars(r)
	member, err := h.workspaces.UpdateMemberRole(r.Context(), vars["id"], actor.UserID, vars["user_id"], role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, member)
}

// RemoveMember removes a member from a workspace
func (h *WorkspaceHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	member, err := h.workspaces.RemoveMember(r.Context(), vars["id"], actor.UserID, vars["user_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, member)
}

// InviteMember invites an email address into a workspace
func (h *WorkspaceHandlers) InviteMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}

	invite, err := h.workspaces.InviteMember(r.Context(), mux.Vars(r)["id"], req.Email, role, actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, invite)
}

// ListInvites lists every invite of a workspace
func (h *WorkspaceHandlers) ListInvites(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	invites, err := h.workspaces.ListInvites(r.Context(), mux.Vars(r)["id"], actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newListResponse(invites))
}

// RespondToInvite accepts or rejects an invite addressed to the caller
func (h *WorkspaceHandlers) RespondToInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req RespondInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	decision := workspace.Decision(strings.ToLower(strings.TrimSpace(req.Decision)))

	invite, member, err := h.workspaces.RespondToInvite(r.Context(), mux.Vars(r)["invite_id"], actor.UserID, actor.Email, decision)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, InviteResponse{Invite: invite, Member: member})
}

// RevokeInvite withdraws a pending invite
func (h *WorkspaceHandlers) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	invite, err := h.workspaces.RevokeInvite(r.Context(), mux.Vars(r)["invite_id"], actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, invite)
}

// SetMemberKey stores the caller's own provider key for a workspace
func (h *WorkspaceHandlers) SetMemberKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req SetMemberKeyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Key, "key") {
		return
	}

	vars := mux.Vars(r)
	if _, err := h.workspaces.Authorize(r.Context(), vars["id"], actor.UserID, rbac.ActionRead); err != nil {
		writeError(w, r, err)
		return
	}
	h.memberKeys.SetWorkspaceMemberKey(vars["id"], actor.UserID, keys.Provider(vars["provider"]), strings.TrimSpace(req.Key))
	httputil.WriteNoContent(w)
}

// ClearMemberKey removes the caller's own provider key for a workspace
func (h *WorkspaceHandlers) ClearMemberKey(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	if _, err := h.workspaces.Authorize(r.Context(), vars["id"], actor.UserID, rbac.ActionRead); err != nil {
		writeError(w, r, err)
		return
	}
	h.memberKeys.ClearWorkspaceMemberKey(vars["id"], actor.UserID, keys.Provider(vars["provider"]))
	httputil.WriteNoContent(w)
}
