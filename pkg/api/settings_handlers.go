package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/workspaces/pkg/httputil"
	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/settings"
)

// SettingsHandlers handles invite link and workspace settings requests
type SettingsHandlers struct {
	settings SettingsService
}

// NewSettingsHandlers creates a new SettingsHandlers
func NewSettingsHandlers(settings SettingsService) *SettingsHandlers {
	return &SettingsHandlers{settings: settings}
}

// RegisterRoutes registers settings routes
func (h *SettingsHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workspaces/{id}/invite-links", h.GenerateInviteLink).Methods(http.MethodPost)
	router.HandleFunc("/invite-links/accept", h.AcceptInviteLink).Methods(http.MethodPost)

	router.HandleFunc("/workspaces/{id}/settings", h.GetSettings).Methods(http.MethodGet)
	router.HandleFunc("/workspaces/{id}/settings/notifications", h.UpdateNotifications).Methods(http.MethodPut)
	router.HandleFunc("/workspaces/{id}/settings/api-keys/{provider}", h.UpdateAPIKeyConfig).Methods(http.MethodPut)
}

// GenerateInviteLink creates an invite and returns its shareable link
func (h *SettingsHandlers) GenerateInviteLink(w http.ResponseWriter, r *http.Request) {
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

	link, err := h.settings.GenerateInviteLink(r.Context(), settings.InviteLinkRequest{
		WorkspaceID:   mux.Vars(r)["id"],
		Email:         req.Email,
		Role:          role,
		InviterUserID: actor.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, link)
}

// AcceptInviteLink accepts the invite a link points at
func (h *SettingsHandlers) AcceptInviteLink(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var req AcceptInviteLinkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Link, "link") {
		return
	}

	invite, member, err := h.settings.AcceptInviteLink(r.Context(), req.Link, actor.UserID, actor.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, InviteResponse{Invite: invite, Member: member})
}

// GetSettings returns a workspace's settings
func (h *SettingsHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	s, err := h.settings.GetSettings(r.Context(), mux.Vars(r)["id"], actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// UpdateNotifications applies a partial notification preference update
func (h *SettingsHandlers) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var update settings.NotificationUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	prefs, err := h.settings.UpdateNotificationPreferences(r.Context(), mux.Vars(r)["id"], actor.UserID, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

// UpdateAPIKeyConfig changes a provider's key routing for a workspace
func (h *SettingsHandlers) UpdateAPIKeyConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	var update settings.APIKeyUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	vars := mux.Vars(r)
	cfg, err := h.settings.UpdateAPIKeyConfig(r.Context(), vars["id"], actor.UserID, keys.Provider(vars["provider"]), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cfg)
}
