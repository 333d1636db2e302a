package workspace

import (
	"regexp"
	"strings"
	"time"

	"github.com/platinummonkey/workspaces/pkg/rbac"
)

// Status represents workspace lifecycle status
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Namespaces are the data partition keys owned by a workspace. They are
// derived from the workspace id and never change.
type Namespaces struct {
	Conversations string `json:"conversations"`
	Knowledge     string `json:"knowledge"`
	Workflows     string `json:"workflows"`
}

// NamespacesFor derives the namespace triple for a workspace id
func NamespacesFor(workspaceID string) Namespaces {
	prefix := "ws/" + workspaceID + "/"
	return Namespaces{
		Conversations: prefix + "conversations",
		Knowledge:     prefix + "knowledge",
		Workflows:     prefix + "workflows",
	}
}

// Workspace is an isolated collaboration tenant
type Workspace struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Status      Status     `json:"status"`
	OwnerUserID string     `json:"owner_user_id"`
	Namespaces  Namespaces `json:"namespaces"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Revision    int64      `json:"revision"`
}

// Member is a user's membership in a workspace. Removed members keep their
// record with RemovedAt set.
type Member struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	UserID      string     `json:"user_id"`
	Role        rbac.Role  `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Revision    int64      `json:"revision"`
}

// Active reports whether the member has not been removed
func (m Member) Active() bool {
	return m.RemovedAt == nil
}

// InviteStatus represents an invite's state
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRejected InviteStatus = "rejected"
	InviteExpired  InviteStatus = "expired"
	InviteRevoked  InviteStatus = "revoked"
)

// Invite is an invitation of an email address into a workspace
type Invite struct {
	ID              string       `json:"id"`
	WorkspaceID     string       `json:"workspace_id"`
	Email           string       `json:"email"`
	Role            rbac.Role    `json:"role"`
	InviterUserID   string       `json:"inviter_user_id"`
	Status          InviteStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
	RespondedAt     *time.Time   `json:"responded_at,omitempty"`
	ResponderUserID string       `json:"responder_user_id,omitempty"`
	Revision        int64        `json:"revision"`
}

// Pending reports whether the invite can still be answered at now
func (i Invite) Pending(now time.Time) bool {
	return i.Status == InvitePending && (i.ExpiresAt.IsZero() || now.Before(i.ExpiresAt))
}

// Decision is an invitee's answer
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at == strings.LastIndexByte(email, '@') && at < len(email)-1 &&
		!strings.ContainsAny(email, " \t\r\n")
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a display name into a URL-safe slug
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "workspace"
	}
	return slug
}
