package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/workspaces/pkg/api"
	"github.com/platinummonkey/workspaces/pkg/httputil"
	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/search"
	"github.com/platinummonkey/workspaces/pkg/settings"
	"github.com/platinummonkey/workspaces/pkg/sources"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	workspaces *workspace.Manager
	router     *keys.Router
	activity   *sources.MemoryActivityLog
	metrics    *observability.Metrics
	server     *api.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return now }

	f := &fixture{
		workspaces: workspace.NewManager(workspace.NewStore(), workspace.WithClock(clock)),
		router:     keys.NewRouter(keys.NewStaticKeyStore(nil)),
		activity:   sources.NewMemoryActivityLog(),
		metrics:    observability.NewMetrics(prometheus.NewRegistry()),
	}
	settingsManager := settings.NewManager(f.workspaces, f.router,
		settings.WithBaseURL("https://app.example.com/invite"),
		settings.WithClock(clock),
	)
	engine := search.NewEngine(f.workspaces, f.activity, sources.NewMemoryKnowledgeStore(), sources.NewMemoryWorkflowEngine(),
		search.WithClock(clock),
	)

	f.server = api.NewServer(api.Services{
		Workspaces: f.workspaces,
		Settings:   settingsManager,
		MemberKeys: f.router,
		Search:     engine,
	}, api.WithMetrics(f.metrics))
	return f
}

// do sends a request as userID and decodes a JSON body into out when set
func (f *fixture) do(t *testing.T, method, path, userID string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(httputil.HeaderUserID, userID)
		req.Header.Set(httputil.HeaderUserEmail, userID+"@example.com")
	}

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func (f *fixture) createWorkspace(t *testing.T, owner, name string) workspace.Workspace {
	t.Helper()
	var ws workspace.Workspace
	w := f.do(t, http.MethodPost, "/workspaces", owner, api.CreateWorkspaceRequest{Name: name}, &ws)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return ws
}

func (f *fixture) join(t *testing.T, ws workspace.Workspace, userID, role string) {
	t.Helper()
	var invite workspace.Invite
	w := f.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/invites", ws.OwnerUserID,
		api.InviteRequest{Email: userID + "@example.com", Role: role}, &invite)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/invites/"+invite.ID+"/respond", userID, api.RespondInviteRequest{Decision: "accept"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Code
}

func TestWorkspaceLifecycle(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Launch Team")
	assert.Equal(t, "launch-team", ws.Slug)
	assert.Equal(t, workspace.StatusActive, ws.Status)

	var list api.ListResponse[workspace.Workspace]
	w := f.do(t, http.MethodGet, "/workspaces", "owner-1", nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, list.Count)

	var got workspace.Workspace
	w = f.do(t, http.MethodGet, "/workspaces/"+ws.ID, "owner-1", nil, &got)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ws.ID, got.ID)

	var renamed workspace.Workspace
	w = f.do(t, http.MethodPatch, "/workspaces/"+ws.ID, "owner-1", api.RenameWorkspaceRequest{Name: "Orbit Team"}, &renamed)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Orbit Team", renamed.Name)

	var archivedWS workspace.Workspace
	w = f.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/archive", "owner-1", nil, &archivedWS)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, workspace.StatusArchived, archivedWS.Status)

	w = f.do(t, http.MethodGet, "/workspaces", "owner-1", nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, list.Count, "archived workspaces are not listed")
	assert.NotNil(t, list.Items)

	w = f.do(t, http.MethodPatch, "/workspaces/"+ws.ID, "owner-1", api.RenameWorkspaceRequest{Name: "Again"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "archived", errorCode(t, w))
}

func TestGetWorkspace_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")

	w := f.do(t, http.MethodGet, "/workspaces/"+ws.ID, "stranger", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_member", errorCode(t, w))

	w = f.do(t, http.MethodGet, "/workspaces/missing", "owner-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))
}

func TestAnonymousRequestsRejected(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/workspaces", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/search?q=launch", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMembershipFlow(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")
	f.join(t, ws, "member-1", "member")
	f.join(t, ws, "viewer-1", "viewer")

	var members api.ListResponse[workspace.Member]
	w := f.do(t, http.MethodGet, "/workspaces/"+ws.ID+"/members", "viewer-1", nil, &members)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, members.Count)

	// a viewer cannot invite
	w = f.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/invites", "viewer-1",
		api.InviteRequest{Email: "new@example.com", Role: "viewer"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "permission_denied", errorCode(t, w))

	var member workspace.Member
	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/members/member-1/role", "owner-1",
		api.UpdateRoleRequest{Role: "ADMIN"}, &member)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "admin", member.Role.String())

	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/members/member-1/role", "owner-1",
		api.UpdateRoleRequest{Role: "superuser"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/workspaces/"+ws.ID+"/members/viewer-1", "member-1", nil, &member)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, member.RemovedAt)

	w = f.do(t, http.MethodGet, "/workspaces/"+ws.ID+"/members", "viewer-1", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "removed members lose access")
}

func TestInviteResponses(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")

	var invite workspace.Invite
	w := f.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/invites", "owner-1",
		api.InviteRequest{Email: "guest-1@example.com", Role: "member"}, &invite)
	require.Equal(t, http.StatusCreated, w.Code)

	var invites api.ListResponse[workspace.Invite]
	w = f.do(t, http.MethodGet, "/workspaces/"+ws.ID+"/invites", "owner-1", nil, &invites)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, invites.Count)

	w = f.do(t, http.MethodPost, "/invites/"+invite.ID+"/respond", "someone-else", api.RespondInviteRequest{Decision: "accept"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email_mismatch", errorCode(t, w))

	w = f.do(t, http.MethodPost, "/invites/"+invite.ID+"/respond", "guest-1", api.RespondInviteRequest{Decision: "maybe"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.InviteResponse
	w = f.do(t, http.MethodPost, "/invites/"+invite.ID+"/respond", "guest-1", api.RespondInviteRequest{Decision: "Accept"}, &resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, workspace.InviteAccepted, resp.Invite.Status)
	require.NotNil(t, resp.Member)
	assert.Equal(t, "guest-1", resp.Member.UserID)

	w = f.do(t, http.MethodPost, "/invites/"+invite.ID+"/respond", "guest-1", api.RespondInviteRequest{Decision: "accept"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", errorCode(t, w))

	w = f.do(t, http.MethodDelete, "/invites/missing", "owner-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevokeInvite(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")

	var invite workspace.Invite
	f.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/invites", "owner-1",
		api.InviteRequest{Email: "guest-1@example.com", Role: "viewer"}, &invite)

	var revoked workspace.Invite
	w := f.do(t, http.MethodDelete, "/invites/"+invite.ID, "owner-1", nil, &revoked)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, workspace.InviteRevoked, revoked.Status)

	w = f.do(t, http.MethodPost, "/invites/"+invite.ID+"/respond", "guest-1", api.RespondInviteRequest{Decision: "accept"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInviteLinks(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")

	var link settings.InviteLink
	w := f.do(t, http.MethodPost, "/workspaces/"+ws.ID+"/invite-links", "owner-1",
		api.InviteRequest{Email: "guest-1@example.com", Role: "member"}, &link)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, link.URL, "https://app.example.com/invite?")

	var resp api.InviteResponse
	w = f.do(t, http.MethodPost, "/invite-links/accept", "guest-1", api.AcceptInviteLinkRequest{Link: link.URL}, &resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ws.ID, resp.Member.WorkspaceID)

	w = f.do(t, http.MethodPost, "/invite-links/accept", "guest-1", api.AcceptInviteLinkRequest{Link: "https://app.example.com/invite"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/invite-links/accept", "guest-1", api.AcceptInviteLinkRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")
	f.join(t, ws, "member-1", "member")

	var s settings.Settings
	w := f.do(t, http.MethodGet, "/workspaces/"+ws.ID+"/settings", "member-1", nil, &s)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, s.Notifications.InviteAccepted)

	off := false
	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/settings/notifications", "member-1",
		settings.NotificationUpdate{InviteAccepted: &off}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "members cannot manage settings")

	var prefs settings.NotificationPreferences
	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/settings/notifications", "owner-1",
		settings.NotificationUpdate{InviteAccepted: &off}, &prefs)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, prefs.InviteAccepted)
	assert.True(t, prefs.MemberJoined)

	mode := settings.RoutingWorkspaceDefault
	key := "sk-team"
	var cfg settings.APIKeyConfig
	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/settings/api-keys/openai", "owner-1",
		settings.APIKeyUpdate{RoutingMode: &mode, WorkspaceDefaultKey: &key}, &cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, cfg.HasWorkspaceDefaultKey)
	assert.Equal(t, settings.RoutingWorkspaceDefault, cfg.RoutingMode)

	res, err := f.router.ResolveChatKey(context.Background(), ws.ID, "member-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, keys.SourceWorkspaceDefault, res.Source)

	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/settings/api-keys/openai", "owner-1",
		map[string]interface{}{"unexpected": true}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")
}

func TestMemberKeys(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")
	f.join(t, ws, "member-1", "member")
	ctx := context.Background()

	w := f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/keys/openai", "member-1", api.SetMemberKeyRequest{Key: "sk-member"}, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	res, err := f.router.ResolveChatKey(ctx, ws.ID, "member-1", "openai")
	require.NoError(t, err)
	assert.Equal(t, keys.SourceWorkspaceMember, res.Source)
	assert.Equal(t, "sk-member", res.Key)

	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/keys/openai", "stranger", api.SetMemberKeyRequest{Key: "sk-x"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/workspaces/"+ws.ID+"/keys/openai", "member-1", api.SetMemberKeyRequest{Key: " "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/workspaces/"+ws.ID+"/keys/openai", "member-1", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, err = f.router.ResolveChatKey(ctx, ws.ID, "member-1", "openai")
	var noKey *keys.NoKeyError
	assert.True(t, errors.As(err, &noKey))
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t)
	ws := f.createWorkspace(t, "owner-1", "Alpha")
	f.join(t, ws, "member-1", "member")

	f.activity.Record(search.ActivityEvent{ID: "evt-1", UserID: "member-1", Title: "Launch checklist", CreatedAt: now.Add(-time.Hour)})
	f.activity.Record(search.ActivityEvent{ID: "evt-2", UserID: "owner-1", Title: "Launch retro", CreatedAt: now.Add(-2 * time.Hour)})

	var resp search.Response
	w := f.do(t, http.MethodGet, "/search?q=launch&include_personal=false&limit=5", "owner-1", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, r := range resp.Results {
		assert.Equal(t, search.ScopeWorkspace, r.Scope)
	}
	assert.NotEmpty(t, resp.Results)

	var outsider search.Response
	w = f.do(t, http.MethodGet, "/search?q=launch", "outsider", nil, &outsider)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, outsider.Results, "outsiders see nothing from the workspace")

	w = f.do(t, http.MethodGet, "/search?q=", "owner-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/search?q=launch&limit=many", "owner-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/search?q=launch&include_personal=perhaps", "owner-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/nope", "owner-1", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))

	w = f.do(t, http.MethodDelete, "/workspaces", "owner-1", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRequestMetrics(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t, "owner-1", "Alpha")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/workspaces", "201")))
}
