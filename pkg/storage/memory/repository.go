// Package memory provides an in-process workspace.Repository for
// development and tests. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// Repository keeps persisted records in maps keyed by record id
type Repository struct {
	mu         sync.RWMutex
	workspaces map[string]workspace.WorkspaceRecord
	members    map[string]workspace.MemberRecord
	invites    map[string]workspace.InviteRecord
}

// NewRepository creates an empty repository
func NewRepository() *Repository {
	return &Repository{
		workspaces: make(map[string]workspace.WorkspaceRecord),
		members:    make(map[string]workspace.MemberRecord),
		invites:    make(map[string]workspace.InviteRecord),
	}
}

// UpsertWorkspace stores rec unless a higher revision is already stored
func (r *Repository) UpsertWorkspace(ctx context.Context, rec workspace.WorkspaceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.workspaces[rec.Workspace.ID]; ok && cur.Workspace.Revision > rec.Workspace.Revision {
		return nil
	}
	r.workspaces[rec.Workspace.ID] = rec
	return nil
}

// UpsertMember stores rec unless a higher revision is already stored
func (r *Repository) UpsertMember(ctx context.Context, rec workspace.MemberRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.members[rec.Member.ID]; ok && cur.Member.Revision > rec.Member.Revision {
		return nil
	}
	r.members[rec.Member.ID] = rec
	return nil
}

// UpsertInvite stores rec unless a higher revision is already stored
func (r *Repository) UpsertInvite(ctx context.Context, rec workspace.InviteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.invites[rec.Invite.ID]; ok && cur.Invite.Revision > rec.Invite.Revision {
		return nil
	}
	r.invites[rec.Invite.ID] = rec
	return nil
}

// ListWorkspaces returns the workspaces userID holds a member record in
func (r *Repository) ListWorkspaces(ctx context.Context, userID string) ([]workspace.WorkspaceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []workspace.WorkspaceRecord
	for _, m := range r.members {
		id := m.Member.WorkspaceID
		if m.Member.UserID != userID || seen[id] {
			continue
		}
		seen[id] = true
		if ws, ok := r.workspaces[id]; ok {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Workspace.ID < out[j].Workspace.ID })
	return out, nil
}

// ListMembers returns every member record of workspaceID when userID holds
// one of them
func (r *Repository) ListMembers(ctx context.Context, userID, workspaceID string) ([]workspace.MemberRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.holdsMember(userID, workspaceID) {
		return nil, nil
	}

	var out []workspace.MemberRecord
	for _, m := range r.members {
		if m.Member.WorkspaceID == workspaceID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member.ID < out[j].Member.ID })
	return out, nil
}

// ListInvites returns every invite record of workspaceID when userID holds
// a member record in it
func (r *Repository) ListInvites(ctx context.Context, userID, workspaceID string) ([]workspace.InviteRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.holdsMember(userID, workspaceID) {
		return nil, nil
	}

	var out []workspace.InviteRecord
	for _, inv := range r.invites {
		if inv.Invite.WorkspaceID == workspaceID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Invite.ID < out[j].Invite.ID })
	return out, nil
}

func (r *Repository) holdsMember(userID, workspaceID string) bool {
	for _, m := range r.members {
		if m.Member.UserID == userID && m.Member.WorkspaceID == workspaceID {
			return true
		}
	}
	return false
}
