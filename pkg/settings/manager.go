package settings

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// DefaultInviteBaseURL is used when no base URL is configured
const DefaultInviteBaseURL = "http://localhost:8080/invite"

// Invite link query parameters
const (
	ParamInvite    = "invite"
	ParamWorkspace = "workspace"
	ParamEmail     = "email"
	ParamRole      = "role"
)

// Workspaces is the part of workspace.Manager the settings manager uses
type Workspaces interface {
	GetWorkspace(ctx context.Context, workspaceID string) (*workspace.Workspace, error)
	GetInvite(ctx context.Context, inviteID string) (*workspace.Invite, error)
	Authorize(ctx context.Context, workspaceID, userID string, action rbac.Action) (rbac.Role, error)
	InviteMember(ctx context.Context, workspaceID, email string, role rbac.Role, inviterUserID string) (*workspace.Invite, error)
	RespondToInvite(ctx context.Context, inviteID, responderUserID, responderEmail string, decision workspace.Decision) (*workspace.Invite, *workspace.Member, error)
}

// DefaultKeys is the part of keys.Router that holds workspace default keys
type DefaultKeys interface {
	SetWorkspaceDefaultKey(workspaceID string, provider keys.Provider, key string)
	RemoveWorkspaceDefaultKey(workspaceID string, provider keys.Provider)
	HasWorkspaceDefaultKey(workspaceID string, provider keys.Provider) bool
}

// Manager owns workspace settings: invite links, notification preferences
// and per-provider API key routing
type Manager struct {
	workspaces Workspaces
	keys       DefaultKeys
	baseURL    string
	logger     *observability.Logger
	now        func() time.Time

	mu       sync.Mutex
	settings map[string]*Settings
}

// Option configures a Manager
type Option func(*Manager)

// WithBaseURL sets the URL invite links are built on
func WithBaseURL(baseURL string) Option {
	return func(m *Manager) {
		m.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a settings manager
func NewManager(workspaces Workspaces, defaultKeys DefaultKeys, opts ...Option) *Manager {
	m := &Manager{
		workspaces: workspaces,
		keys:       defaultKeys,
		baseURL:    DefaultInviteBaseURL,
		now:        time.Now,
		settings:   make(map[string]*Settings),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = observability.NewNopLogger()
	}
	return m
}

// GenerateInviteLink creates an invite and returns a link carrying it
func (m *Manager) GenerateInviteLink(ctx context.Context, req InviteLinkRequest) (*InviteLink, error) {
	base, err := url.Parse(m.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse invite base URL: %w", err)
	}

	inv, err := m.workspaces.InviteMember(ctx, req.WorkspaceID, req.Email, req.Role, req.InviterUserID)
	if err != nil {
		return nil, err
	}

	query := base.Query()
	query.Set(ParamInvite, inv.ID)
	query.Set(ParamWorkspace, inv.WorkspaceID)
	query.Set(ParamEmail, inv.Email)
	query.Set(ParamRole, string(inv.Role))
	base.RawQuery = query.Encode()

	return &InviteLink{URL: base.String(), Invite: inv}, nil
}

// AcceptInviteLink accepts the invite carried by link. When the link names
// a workspace it must be the invite's workspace.
func (m *Manager) AcceptInviteLink(ctx context.Context, link, responderUserID, responderEmail string) (*workspace.Invite, *workspace.Member, error) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, nil, invalid("Invite link is not a valid URL.")
	}
	query := parsed.Query()

	inviteID := strings.TrimSpace(query.Get(ParamInvite))
	if inviteID == "" {
		return nil, nil, invalid("Invite link is missing an invite token.")
	}

	if workspaceID := strings.TrimSpace(query.Get(ParamWorkspace)); workspaceID != "" {
		inv, err := m.workspaces.GetInvite(ctx, inviteID)
		if err != nil {
			return nil, nil, err
		}
		if inv.WorkspaceID != workspaceID {
			return nil, nil, invalid("Invite link workspace does not match invite workspace.")
		}
	}

	return m.workspaces.RespondToInvite(ctx, inviteID, responderUserID, responderEmail, workspace.DecisionAccept)
}

// GetSettings returns the settings of a workspace the actor can read
func (m *Manager) GetSettings(ctx context.Context, workspaceID, actorUserID string) (*Settings, error) {
	if _, err := m.workspaces.Authorize(ctx, workspaceID, actorUserID, rbac.ActionRead); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.record(workspaceID).clone()
	return &out, nil
}

// UpdateNotificationPreferences applies update and returns the new flags
func (m *Manager) UpdateNotificationPreferences(ctx context.Context, workspaceID, actorUserID string, update NotificationUpdate) (*NotificationPreferences, error) {
	if err := m.authorizeManage(ctx, workspaceID, actorUserID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(workspaceID)
	rec.Notifications = update.apply(rec.Notifications)
	rec.UpdatedBy = actorUserID
	rec.UpdatedAt = m.now()

	m.logger.WithWorkspace(workspaceID).WithField("user_id", actorUserID).Info("Notification preferences updated")
	out := rec.Notifications
	return &out, nil
}

// UpdateAPIKeyConfig changes the routing of provider. The prospective state
// is validated before the workspace default key is installed or removed, so
// a rejected update changes nothing.
func (m *Manager) UpdateAPIKeyConfig(ctx context.Context, workspaceID, actorUserID string, provider keys.Provider, update APIKeyUpdate) (*APIKeyConfig, error) {
	if strings.TrimSpace(string(provider)) == "" {
		return nil, invalid("Provider is required.")
	}
	if update.RoutingMode != nil && !update.RoutingMode.Valid() {
		return nil, invalid("Unknown routing mode %q.", *update.RoutingMode)
	}
	if err := m.authorizeManage(ctx, workspaceID, actorUserID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(workspaceID)

	next := rec.APIKey(provider)
	if update.RoutingMode != nil {
		next.RoutingMode = *update.RoutingMode
	}
	if update.AllowPersonalFallback != nil {
		next.AllowPersonalFallback = *update.AllowPersonalFallback
	}
	hasKey := m.keys.HasWorkspaceDefaultKey(workspaceID, provider)
	if update.WorkspaceDefaultKey != nil {
		hasKey = *update.WorkspaceDefaultKey != ""
	}
	if next.RoutingMode == RoutingWorkspaceDefault && !next.AllowPersonalFallback && !hasKey {
		return nil, invalid("Workspace default key mode requires a workspace key or personal fallback enabled.")
	}

	if update.WorkspaceDefaultKey != nil {
		if *update.WorkspaceDefaultKey == "" {
			m.keys.RemoveWorkspaceDefaultKey(workspaceID, provider)
		} else {
			m.keys.SetWorkspaceDefaultKey(workspaceID, provider, *update.WorkspaceDefaultKey)
		}
	}

	now := m.now()
	next.HasWorkspaceDefaultKey = hasKey
	next.UpdatedBy = actorUserID
	next.UpdatedAt = &now
	rec.APIKeys[provider] = next
	rec.UpdatedBy = actorUserID
	rec.UpdatedAt = now

	m.logger.WithWorkspace(workspaceID).WithFields(map[string]interface{}{
		"provider":        provider,
		"routing_mode":    next.RoutingMode,
		"has_default_key": hasKey,
		"user_id":         actorUserID,
	}).Info("API key routing updated")
	out := next
	return &out, nil
}

func (m *Manager) authorizeManage(ctx context.Context, workspaceID, actorUserID string) error {
	if _, err := m.workspaces.Authorize(ctx, workspaceID, actorUserID, rbac.ActionSettingsManage); err != nil {
		return err
	}
	ws, err := m.workspaces.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.Status == workspace.StatusArchived {
		return &workspace.Error{Kind: workspace.ErrArchived, Message: fmt.Sprintf("Workspace %s is archived.", workspaceID)}
	}
	return nil
}

// record returns the settings of workspaceID, creating them with defaults.
// Callers hold m.mu.
func (m *Manager) record(workspaceID string) *Settings {
	rec, ok := m.settings[workspaceID]
	if !ok {
		now := m.now()
		rec = &Settings{
			WorkspaceID:   workspaceID,
			Notifications: DefaultNotificationPreferences(),
			APIKeys:       make(map[keys.Provider]APIKeyConfig),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		m.settings[workspaceID] = rec
	}
	return rec
}

func invalid(format string, args ...interface{}) *workspace.Error {
	return &workspace.Error{Kind: workspace.ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}
