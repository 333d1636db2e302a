package workspace

import (
	"context"
	"fmt"

	"github.com/platinummonkey/workspaces/pkg/async"
)

// persist hands a snapshot to the outbox. Failures are logged and counted,
// never returned: the in-memory state already reflects the mutation and the
// next mutation of the workspace enqueues a full snapshot again.
func (m *Manager) persist(snap Snapshot) {
	if !m.PersistenceEnabled() || snap.Workspace.ID == "" {
		return
	}

	err := m.outbox.Enqueue("snapshot "+snap.Workspace.ID, func(ctx context.Context) error {
		return m.writeSnapshot(ctx, snap)
	})
	if err != nil {
		m.logger.WithWorkspace(snap.Workspace.ID).WithError(err).Warn("Failed to enqueue workspace snapshot")
	}
}

func (m *Manager) writeSnapshot(ctx context.Context, snap Snapshot) error {
	if err := m.repo.UpsertWorkspace(ctx, WorkspaceRecord{SchemaVersion: SchemaVersion, Workspace: snap.Workspace}); err != nil {
		return fmt.Errorf("failed to upsert workspace %s: %w", snap.Workspace.ID, err)
	}
	for _, member := range snap.Members {
		if err := m.repo.UpsertMember(ctx, MemberRecord{SchemaVersion: SchemaVersion, Member: member}); err != nil {
			return fmt.Errorf("failed to upsert member %s: %w", member.ID, err)
		}
	}
	for _, inv := range snap.Invites {
		if err := m.repo.UpsertInvite(ctx, InviteRecord{SchemaVersion: SchemaVersion, Invite: inv}); err != nil {
			return fmt.Errorf("failed to upsert invite %s: %w", inv.ID, err)
		}
	}
	return nil
}

// ensureHydrated starts a one-time background hydration for userID. The
// caller does not wait: reads served before it completes see local state.
func (m *Manager) ensureHydrated(ctx context.Context, userID string) {
	if !m.PersistenceEnabled() || userID == "" {
		return
	}

	m.hydrateMu.Lock()
	defer m.hydrateMu.Unlock()
	if _, started := m.hydrations[userID]; started {
		return
	}
	m.hydrations[userID] = async.SafeGo(context.WithoutCancel(ctx), m.logger, m.hydrationTimeout, "hydrate "+userID,
		func(ctx context.Context) error {
			return m.Hydrate(ctx, userID)
		})
}

// HydrationDone returns a channel closed once the background hydration for
// userID has finished. It is already closed when none was started.
func (m *Manager) HydrationDone(userID string) <-chan struct{} {
	m.hydrateMu.Lock()
	defer m.hydrateMu.Unlock()
	if done, ok := m.hydrations[userID]; ok {
		return done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Hydrate loads userID's workspaces, members and invites from the
// repository and merges them into the store. A persisted record replaces
// the local one only when its revision is strictly greater, so a mutation
// made while the fetch was in flight is never rolled back.
func (m *Manager) Hydrate(ctx context.Context, userID string) error {
	if m.repo == nil {
		return nil
	}

	err := m.hydrate(ctx, userID)
	if m.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.HydrationsTotal.WithLabelValues(status).Inc()
	}
	return err
}

func (m *Manager) hydrate(ctx context.Context, userID string) error {
	logger := m.logger.WithField("user_id", userID)

	workspaces, err := m.repo.ListWorkspaces(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list workspaces for %s: %w", userID, err)
	}

	type loaded struct {
		workspace Workspace
		members   []Member
		invites   []Invite
	}
	var batch []loaded

	for _, wsRec := range workspaces {
		if wsRec.SchemaVersion > SchemaVersion {
			logger.WithWorkspace(wsRec.Workspace.ID).Warnf("Skipping workspace record with schema version %d", wsRec.SchemaVersion)
			continue
		}
		wsID := wsRec.Workspace.ID

		memberRecs, err := m.repo.ListMembers(ctx, userID, wsID)
		if err != nil {
			return fmt.Errorf("failed to list members of %s: %w", wsID, err)
		}
		inviteRecs, err := m.repo.ListInvites(ctx, userID, wsID)
		if err != nil {
			return fmt.Errorf("failed to list invites of %s: %w", wsID, err)
		}

		item := loaded{workspace: wsRec.Workspace}
		for _, rec := range memberRecs {
			if rec.SchemaVersion <= SchemaVersion {
				item.members = append(item.members, rec.Member)
			}
		}
		for _, rec := range inviteRecs {
			if rec.SchemaVersion <= SchemaVersion {
				item.invites = append(item.invites, rec.Invite)
			}
		}
		batch = append(batch, item)
	}

	merged := 0
	m.store.Update(func(tx *Tx) error {
		for _, item := range batch {
			if local, ok := tx.Workspace(item.workspace.ID); !ok || item.workspace.Revision > local.Revision {
				tx.PutWorkspace(item.workspace)
				merged++
			}
			for _, member := range item.members {
				if local, ok := tx.Member(member.WorkspaceID, member.UserID); !ok || member.Revision > local.Revision {
					tx.PutMember(member)
					merged++
				}
			}
			for _, inv := range item.invites {
				if local, ok := tx.Invite(inv.ID); !ok || inv.Revision > local.Revision {
					tx.PutInvite(inv)
					merged++
				}
			}
		}
		return nil
	})

	logger.WithFields(map[string]interface{}{
		"workspaces": len(batch),
		"merged":     merged,
	}).Debug("Hydration complete")
	return nil
}
