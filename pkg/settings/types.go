package settings

import (
	"time"

	"github.com/platinummonkey/workspaces/pkg/keys"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// RoutingMode selects whose key a workspace operation uses first
type RoutingMode string

const (
	// RoutingPersonal uses each member's own key
	RoutingPersonal RoutingMode = "personal"
	// RoutingWorkspaceDefault uses the workspace-wide key
	RoutingWorkspaceDefault RoutingMode = "workspace_default_key"
)

// Valid reports whether the mode is known
func (m RoutingMode) Valid() bool {
	return m == RoutingPersonal || m == RoutingWorkspaceDefault
}

// NotificationPreferences are the workspace notification flags
type NotificationPreferences struct {
	InviteAccepted bool `json:"invite_accepted"`
	MemberJoined   bool `json:"member_joined"`
	MemberRemoved  bool `json:"member_removed"`
	RoleChanged    bool `json:"role_changed"`
	WorkflowRuns   bool `json:"workflow_runs"`
	WeeklyDigest   bool `json:"weekly_digest"`
}

// DefaultNotificationPreferences enables everything except the weekly digest
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		InviteAccepted: true,
		MemberJoined:   true,
		MemberRemoved:  true,
		RoleChanged:    true,
		WorkflowRuns:   true,
	}
}

// NotificationUpdate changes the flags that are set and keeps the rest
type NotificationUpdate struct {
	InviteAccepted *bool `json:"invite_accepted,omitempty"`
	MemberJoined   *bool `json:"member_joined,omitempty"`
	MemberRemoved  *bool `json:"member_removed,omitempty"`
	RoleChanged    *bool `json:"role_changed,omitempty"`
	WorkflowRuns   *bool `json:"workflow_runs,omitempty"`
	WeeklyDigest   *bool `json:"weekly_digest,omitempty"`
}

func (u NotificationUpdate) apply(p NotificationPreferences) NotificationPreferences {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.InviteAccepted, u.InviteAccepted)
	set(&p.MemberJoined, u.MemberJoined)
	set(&p.MemberRemoved, u.MemberRemoved)
	set(&p.RoleChanged, u.RoleChanged)
	set(&p.WorkflowRuns, u.WorkflowRuns)
	set(&p.WeeklyDigest, u.WeeklyDigest)
	return p
}

// APIKeyConfig is the routing configuration of one provider
type APIKeyConfig struct {
	Provider               keys.Provider `json:"provider"`
	RoutingMode            RoutingMode   `json:"routing_mode"`
	AllowPersonalFallback  bool          `json:"allow_personal_fallback"`
	HasWorkspaceDefaultKey bool          `json:"has_workspace_default_key"`
	UpdatedBy              string        `json:"updated_by,omitempty"`
	UpdatedAt              *time.Time    `json:"updated_at,omitempty"`
}

func defaultAPIKeyConfig(provider keys.Provider) APIKeyConfig {
	return APIKeyConfig{
		Provider:              provider,
		RoutingMode:           RoutingPersonal,
		AllowPersonalFallback: true,
	}
}

// APIKeyUpdate changes a provider's routing. Nil fields are kept.
// WorkspaceDefaultKey installs the workspace key when non-empty and
// removes it when empty.
type APIKeyUpdate struct {
	RoutingMode           *RoutingMode `json:"routing_mode,omitempty"`
	AllowPersonalFallback *bool        `json:"allow_personal_fallback,omitempty"`
	WorkspaceDefaultKey   *string      `json:"workspace_default_key,omitempty"`
}

// Settings is the settings record of a workspace. It is created with
// defaults on first access.
type Settings struct {
	WorkspaceID   string                         `json:"workspace_id"`
	Notifications NotificationPreferences        `json:"notifications"`
	APIKeys       map[keys.Provider]APIKeyConfig `json:"api_keys"`
	CreatedAt     time.Time                      `json:"created_at"`
	UpdatedBy     string                         `json:"updated_by,omitempty"`
	UpdatedAt     time.Time                      `json:"updated_at"`
}

func (s Settings) clone() Settings {
	out := s
	out.APIKeys = make(map[keys.Provider]APIKeyConfig, len(s.APIKeys))
	for provider, cfg := range s.APIKeys {
		out.APIKeys[provider] = cfg
	}
	return out
}

// APIKey returns the config of provider, or the defaults when it was never
// configured
func (s Settings) APIKey(provider keys.Provider) APIKeyConfig {
	if cfg, ok := s.APIKeys[provider]; ok {
		return cfg
	}
	return defaultAPIKeyConfig(provider)
}

// InviteLink is a shareable invite URL
type InviteLink struct {
	URL    string            `json:"url"`
	Invite *workspace.Invite `json:"invite"`
}

// InviteLinkRequest describes the invite behind a new link
type InviteLinkRequest struct {
	WorkspaceID   string
	Email         string
	Role          rbac.Role
	InviterUserID string
}
