package workspace

import "context"

// SchemaVersion is the version written with every persisted record
const SchemaVersion = 1

// WorkspaceRecord is a persisted workspace
type WorkspaceRecord struct {
	SchemaVersion int       `json:"schema_version"`
	Workspace     Workspace `json:"workspace"`
}

// MemberRecord is a persisted member
type MemberRecord struct {
	SchemaVersion int    `json:"schema_version"`
	Member        Member `json:"member"`
}

// InviteRecord is a persisted invite
type InviteRecord struct {
	SchemaVersion int    `json:"schema_version"`
	Invite        Invite `json:"invite"`
}

// Repository is the durable write-behind store. Upserts are idempotent and
// must not replace a stored record that has a higher revision. Reads are
// scoped to a user: ListWorkspaces returns the workspaces the user holds a
// member record in, and ListMembers/ListInvites return nothing for a
// workspace the user holds no member record in.
type Repository interface {
	UpsertWorkspace(ctx context.Context, rec WorkspaceRecord) error
	UpsertMember(ctx context.Context, rec MemberRecord) error
	UpsertInvite(ctx context.Context, rec InviteRecord) error

	ListWorkspaces(ctx context.Context, userID string) ([]WorkspaceRecord, error)
	ListMembers(ctx context.Context, userID, workspaceID string) ([]MemberRecord, error)
	ListInvites(ctx context.Context, userID, workspaceID string) ([]InviteRecord, error)
}
