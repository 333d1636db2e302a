// Package workspace implements workspaces, their membership and invites.
//
// # Overview
//
// A Store holds the authoritative in-memory state. A Manager performs the
// lifecycle operations on top of it:
//
//	CreateWorkspace   - workspace plus its single owner member
//	InviteMember      - pending invite for an email at a role
//	RespondToInvite   - one-shot accept or reject by the invited email
//	RemoveMember      - soft delete (RemovedAt tombstone)
//	UpdateMemberRole  - re-role within the hierarchy
//	RenameWorkspace, ArchiveWorkspace, RevokeInvite, ExpireInvites
//
// Every mutation is checked by the rbac engine inside a store transaction,
// so the check and the write are atomic.
//
// # Persistence
//
// With WithPersistence, each mutation enqueues the full snapshot of the
// affected workspace on an async.Outbox, which writes it to a Repository
// with bounded retry. The first read for a user triggers a background
// Hydrate from the repository. Every record carries a revision and a
// hydrated record only replaces a local record with a lower revision.
//
// Usage:
//
//	store := workspace.NewStore()
//	manager := workspace.NewManager(store,
//		workspace.WithPersistence(repo, outbox),
//		workspace.WithLogger(logger),
//	)
//	ws, err := manager.CreateWorkspace(ctx, "user-1", "Workspace Alpha")
package workspace
