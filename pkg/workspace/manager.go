package workspace

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/workspaces/pkg/async"
	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/rbac"
)

var tracer = otel.Tracer("github.com/platinummonkey/workspaces/pkg/workspace")

// DefaultInviteTTL is how long an invite stays answerable
const DefaultInviteTTL = 7 * 24 * time.Hour

const (
	defaultHydrationTimeout = 30 * time.Second
	maxWorkspaceNameLength  = 120
)

// Manager orchestrates the workspace lifecycle. Every mutation passes the
// permission engine inside a store transaction, then the new state of the
// workspace is handed to the outbox when persistence is enabled.
type Manager struct {
	store   *Store
	engine  *rbac.Engine
	repo    Repository
	outbox  *async.Outbox
	logger  *observability.Logger
	metrics *observability.Metrics

	now              func() time.Time
	newID            func() string
	inviteTTL        time.Duration
	hydrationTimeout time.Duration

	hydrateMu  sync.Mutex
	hydrations map[string]<-chan struct{}
}

// Option configures a Manager
type Option func(*Manager)

// WithEngine sets the permission engine
func WithEngine(engine *rbac.Engine) Option {
	return func(m *Manager) {
		m.engine = engine
	}
}

// WithPersistence enables write-behind persistence and hydration
func WithPersistence(repo Repository, outbox *async.Outbox) Option {
	return func(m *Manager) {
		m.repo = repo
		m.outbox = outbox
	}
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the Prometheus metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides uuid generation
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// WithInviteTTL sets how long invites stay answerable
func WithInviteTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.inviteTTL = ttl
	}
}

// WithHydrationTimeout bounds each background hydration
func WithHydrationTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.hydrationTimeout = timeout
	}
}

// NewManager creates a manager over store
func NewManager(store *Store, opts ...Option) *Manager {
	m := &Manager{
		store:            store,
		now:              time.Now,
		newID:            func() string { return uuid.NewString() },
		inviteTTL:        DefaultInviteTTL,
		hydrationTimeout: defaultHydrationTimeout,
		hydrations:       make(map[string]<-chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		var engineOpts []rbac.Option
		if m.metrics != nil {
			engineOpts = append(engineOpts, rbac.WithDenialCounter(m.metrics.PermissionDenials))
		}
		m.engine = rbac.NewEngine(engineOpts...)
	}
	if m.logger == nil {
		m.logger = observability.NewNopLogger()
	}
	return m
}

// Engine returns the permission engine shared with other components
func (m *Manager) Engine() *rbac.Engine {
	return m.engine
}

// PersistenceEnabled reports whether mutations are written behind
func (m *Manager) PersistenceEnabled() bool {
	return m.repo != nil && m.outbox != nil
}

// CreateWorkspace creates a workspace owned by ownerUserID. No permission
// check applies: the creator becomes the single owner.
func (m *Manager) CreateWorkspace(ctx context.Context, ownerUserID, name string) (*Workspace, error) {
	_, span := m.startSpan(ctx, "CreateWorkspace", attribute.String("user.id", ownerUserID))
	defer span.End()

	ownerUserID = strings.TrimSpace(ownerUserID)
	name = strings.TrimSpace(name)
	if ownerUserID == "" {
		return nil, m.fail(span, "create_workspace", newError(ErrInvalidArgument, "Owner user id is required."))
	}
	if err := validateName(name); err != nil {
		return nil, m.fail(span, "create_workspace", err)
	}

	now := m.now()
	id := m.newID()
	ws := Workspace{
		ID:          id,
		Name:        name,
		Slug:        Slugify(name),
		Status:      StatusActive,
		OwnerUserID: ownerUserID,
		Namespaces:  NamespacesFor(id),
		CreatedAt:   now,
		UpdatedAt:   now,
		Revision:    1,
	}
	owner := Member{
		ID:          m.newID(),
		WorkspaceID: id,
		UserID:      ownerUserID,
		Role:        rbac.RoleOwner,
		JoinedAt:    now,
		UpdatedAt:   now,
		Revision:    1,
	}

	var snap Snapshot
	m.store.Update(func(tx *Tx) error {
		tx.PutWorkspace(ws)
		tx.PutMember(owner)
		snap, _ = tx.Snapshot(id)
		return nil
	})

	m.persist(snap)
	m.succeed(span, "create_workspace")
	m.logger.WithWorkspace(id).WithField("user_id", ownerUserID).Info("Workspace created")
	return &ws, nil
}

// RenameWorkspace changes the display name and slug. The namespace keys
// stay the same.
func (m *Manager) RenameWorkspace(ctx context.Context, workspaceID, actorUserID, name string) (*Workspace, error) {
	_, span := m.startSpan(ctx, "RenameWorkspace", attribute.String("workspace.id", workspaceID))
	defer span.End()

	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, m.fail(span, "rename_workspace", err)
	}

	var out Workspace
	var snap Snapshot
	err := m.store.Update(func(tx *Tx) error {
		ws, actor, err := m.activeWorkspaceAndMember(tx, workspaceID, actorUserID)
		if err != nil {
			return err
		}
		if err := m.engine.Assert(actor.Role, rbac.ActionSettingsManage, rbac.EvalContext{ActorUserID: actorUserID}); err != nil {
			return err
		}
		ws.Name = name
		ws.Slug = Slugify(name)
		ws.UpdatedAt = m.now()
		ws.Revision++
		tx.PutWorkspace(ws)
		out = ws
		snap, _ = tx.Snapshot(workspaceID)
		return nil
	})
	if err != nil {
		return nil, m.fail(span, "rename_workspace", err)
	}

	m.persist(snap)
	m.succeed(span, "rename_workspace")
	return &out, nil
}

// ArchiveWorkspace archives the workspace. Archived workspaces reject
// further mutations and disappear from ListWorkspacesForUser.
func (m *Manager) ArchiveWorkspace(ctx context.Context, workspaceID, actorUserID string) (*Workspace, error) {
	_, span := m.startSpan(ctx, "ArchiveWorkspace", attribute.String("workspace.id", workspaceID))
	defer span.End()

	var out Workspace
	var snap Snapshot
	err := m.store.Update(func(tx *Tx) error {
		ws, actor, err := m.activeWorkspaceAndMember(tx, workspaceID, actorUserID)
		if err != nil {
			return err
		}
		if err := m.engine.Assert(actor.Role, rbac.ActionArchive, rbac.EvalContext{ActorUserID: actorUserID}); err != nil {
			return err
		}
		ws.Status = StatusArchived
		ws.UpdatedAt = m.now()
		ws.Revision++
		tx.PutWorkspace(ws)
		out = ws
		snap, _ = tx.Snapshot(workspaceID)
		return nil
	})
	if err != nil {
		return nil, m.fail(span, "archive_workspace", err)
	}

	m.persist(snap)
	m.succeed(span, "archive_workspace")
	m.logger.WithWorkspace(workspaceID).WithField("user_id", actorUserID).Info("Workspace archived")
	return &out, nil
}

// InviteMember creates a pending invite for email at role. The inviter
// must be an active member who outranks role.
func (m *Manager) InviteMember(ctx context.Context, workspaceID, email string, role rbac.Role, inviterUserID string) (*Invite, error) {
	_, span := m.startSpan(ctx, "InviteMember",
		attribute.String("workspace.id", workspaceID),
		attribute.String("invite.role", string(role)),
	)
	defer span.End()

	email = NormalizeEmail(email)
	if !validEmail(email) {
		return nil, m.fail(span, "invite_member", newError(ErrInvalidArgument, "Invite email %q is not a valid email address.", email))
	}
	if !role.Valid() {
		return nil, m.fail(span, "invite_member", newError(ErrInvalidArgument, "Unknown workspace role %q.", role))
	}

	var out Invite
	var snap Snapshot
	err := m.store.Update(func(tx *Tx) error {
		_, inviter, err := m.activeWorkspaceAndMember(tx, workspaceID, inviterUserID)
		if err != nil {
			return err
		}
		if err := m.engine.Assert(inviter.Role, rbac.ActionMembersInvite, rbac.EvalContext{
			ActorUserID: inviterUserID,
			TargetRole:  role,
		}); err != nil {
			return err
		}

		now := m.now()
		for _, existing := range tx.Invites(workspaceID) {
			if existing.Email == email && existing.Pending(now) {
				return newError(ErrConflict, "%s already has a pending invite to workspace %s.", email, workspaceID)
			}
		}

		out = Invite{
			ID:            m.newID(),
			WorkspaceID:   workspaceID,
			Email:         email,
			Role:          role,
			InviterUserID: inviterUserID,
			Status:        InvitePending,
			CreatedAt:     now,
			ExpiresAt:     now.Add(m.inviteTTL),
			Revision:      1,
		}
		tx.PutInvite(out)
		snap, _ = tx.Snapshot(workspaceID)
		return nil
	})
	if err != nil {
		return nil, m.fail(span, "invite_member", err)
	}

	m.persist(snap)
	m.succeed(span, "invite_member")
	m.logger.WithWorkspace(workspaceID).WithFields(map[string]interface{}{
		"invite_id": out.ID,
		"role":      role,
		"inviter":   inviterUserID,
	}).Info("Member invited")
	return &out, nil
}

// RespondToInvite accepts or rejects a pending invite. The status check and
// transition happen under the store write lock, so of two concurrent
// responses exactly one succeeds. Accepting creates the member or
// reactivates a removed one with the invite's role.
func (m *Manager) RespondToInvite(ctx context.Context, inviteID, responderUserID, responderEmail string, decision Decision) (*Invite, *Member, error) {
	_, span := m.startSpan(ctx, "RespondToInvite",
		attribute.String("invite.id", inviteID),
		attribute.String("invite.decision", string(decision)),
	)
	defer span.End()

	if decision != DecisionAccept && decision != DecisionReject {
		return nil, nil, m.fail(span, "respond_invite", newError(ErrInvalidArgument, "Unknown invite decision %q.", decision))
	}
	if strings.TrimSpace(responderUserID) == "" {
		return nil, nil, m.fail(span, "respond_invite", newError(ErrInvalidArgument, "Responder user id is required."))
	}

	var (
		outInvite Invite
		outMember *Member
		snap      Snapshot
		expired   bool
	)
	err := m.store.Update(func(tx *Tx) error {
		inv, ok := tx.Invite(inviteID)
		if !ok {
			return inviteNotFound(inviteID)
		}
		if inv.Status != InvitePending {
			return newError(ErrInvalidState, "Invite %s is already %s.", inviteID, inv.Status)
		}
		now := m.now()
		if !inv.Pending(now) {
			inv.Status = InviteExpired
			inv.Revision++
			tx.PutInvite(inv)
			snap, _ = tx.Snapshot(inv.WorkspaceID)
			expired = true
			return nil
		}
		if NormalizeEmail(responderEmail) != inv.Email {
			return newError(ErrEmailMismatch, "Invite %s was sent to a different email address.", inviteID)
		}
		ws, ok := tx.Workspace(inv.WorkspaceID)
		if !ok {
			return workspaceNotFound(inv.WorkspaceID)
		}
		if ws.Status == StatusArchived {
			return archived(ws.ID)
		}

		if decision == DecisionAccept {
			member, err := m.admit(tx, inv, responderUserID, now)
			if err != nil {
				return err
			}
			outMember = &member
			inv.Status = InviteAccepted
		} else {
			inv.Status = InviteRejected
		}
		inv.RespondedAt = &now
		inv.ResponderUserID = responderUserID
		inv.Revision++
		tx.PutInvite(inv)

		outInvite = inv
		snap, _ = tx.Snapshot(inv.WorkspaceID)
		return nil
	})
	if err != nil {
		return nil, nil, m.fail(span, "respond_invite", err)
	}
	m.persist(snap)
	if expired {
		return nil, nil, m.fail(span, "respond_invite", newError(ErrInvalidState, "Invite %s is already %s.", inviteID, InviteExpired))
	}

	m.succeed(span, "respond_invite")
	m.logger.WithWorkspace(outInvite.WorkspaceID).WithFields(map[string]interface{}{
		"invite_id": inviteID,
		"status":    outInvite.Status,
		"user_id":   responderUserID,
	}).Info("Invite answered")
	return &outInvite, outMember, nil
}

func (m *Manager) admit(tx *Tx, inv Invite, userID string, now time.Time) (Member, error) {
	member, ok := tx.Member(inv.WorkspaceID, userID)
	if !ok {
		member = Member{
			ID:          m.newID(),
			WorkspaceID: inv.WorkspaceID,
			UserID:      userID,
			Role:        inv.Role,
			JoinedAt:    now,
			UpdatedAt:   now,
			Revision:    1,
		}
		tx.PutMember(member)
		return member, nil
	}

	if member.Active() && member.Role == rbac.RoleOwner {
		return Member{}, &rbac.PermissionError{
			Role:   member.Role,
			Action: rbac.ActionMembersInvite,
			Reason: "Workspace owner membership cannot be modified.",
		}
	}
	if !member.Active() {
		member.JoinedAt = now
	}
	member.Role = inv.Role
	member.RemovedAt = nil
	member.UpdatedAt = now
	member.Revision++
	tx.PutMember(member)
	return member, nil
}

// RevokeInvite withdraws a pending invite
func (m *Manager) RevokeInvite(ctx context.Context, inviteID, actorUserID string) (*Invite, error) {
	_, span := m.startSpan(ctx, "RevokeInvite", attribute.String("invite.id", inviteID))
	defer span.End()

	var out Invite
	var snap Snapshot
	err := m.store.Update(func(tx *Tx) error {
		inv, ok := tx.Invite(inviteID)
		if !ok {
			return inviteNotFound(inviteID)
		}
		_, actor, err := m.activeWorkspaceAndMember(tx, inv.WorkspaceID, actorUserID)
		if err != nil {
			return err
		}
		if err := m.engine.Assert(actor.Role, rbac.ActionMembersInvite, rbac.EvalContext{
			ActorUserID: actorUserID,
			TargetRole:  inv.Role,
		}); err != nil {
			return err
		}
		if inv.Status != InvitePending {
			return newError(ErrInvalidState, "Invite %s is already %s.", inviteID, inv.Status)
		}
		now := m.now()
		inv.Status = InviteRevoked
		inv.RespondedAt = &now
		inv.ResponderUserID = actorUserID
		inv.Revision++
		tx.PutInvite(inv)
		out = inv
		snap, _ = tx.Snapshot(inv.WorkspaceID)
		return nil
	})
	if err != nil {
		return nil, m.fail(span, "revoke_invite", err)
	}

	m.persist(snap)
	m.succeed(span, "revoke_invite")
	return &out, nil
}

// RemoveMember soft-deletes targetUserID's membership
func (m *Manager) RemoveMember(ctx context.Context, workspaceID, actorUserID, targetUserID string) (*Member, error) {
	_, span := m.startSpan(ctx, "RemoveMember", attribute.String("workspace.id", workspaceID))
	defer span.End()

	var out Member
	var snap Snapshot
	err := m.store.Update(func(tx *Tx) error {
		_, actor, err := m.activeWorkspaceAndMember(tx, workspaceID, actorUserID)
		if err != nil {
			return err
		}
		target, ok := tx.ActiveMember(workspaceID, targetUserID)
		if !ok {
			return newError(ErrNotFound, "User %s is not an active member of workspace %s.", targetUserID, workspaceID)
		}
		if err := m.engine.Assert(actor.Role, rbac.ActionMembersRemove, rbac.EvalContext{
			ActorUserID:  actorUserID,
			TargetUserID: targetUserID,
			TargetRole:   target.Role,
		}); err != nil {
			return err
		}

		now := m.now()
		target.RemovedAt = &now
		target.UpdatedAt = now
		target.Revision++
		tx.PutMember(target)
		out = target
		snap, _ = tx.Snapshot(workspaceID)
		return nil
	})
	if err != nil {
		return nil, m.fail(span, "remove_member", err)
	}

	m.persist(snap)
	m.succeed(span, "remove_member")
	m.logger.WithWorkspace(workspaceID).WithFields(map[string]interface{}{
		"actor":  actorUserID,
		"target": targetUserID,
	}).Info("Member removed")
	return &out, nil
}

// UpdateMemberRole changes targetUserID's role. The actor must outrank both
// the target's current role and the new role. Ownership cannot be assigned.
func (m *Manager) UpdateMemberRole(ctx context.Context, workspaceID, actorUserID, targetUserID string, role rbac.Role) (*Member, error) {
	_, span := m.startSpan(ctx, "UpdateMemberRole",
		attribute.String("workspace.id", workspaceID),
		attribute.String("member.role", string(role)),
	)
	defer span.End()

	if !role.Valid() {
		return nil, m.fail(span, "update_member_role", newError(ErrInvalidArgument, "Unknown workspace role %q.", role))
	}

	var out Member
	var snap Snapshot
	changed := false
	err := m.store.Update(func(tx *Tx) error {
		_, actor, err := m.activeWorkspaceAndMember(tx, workspaceID, actorUserID)
		if err != nil {
			return err
		}
		target, ok := tx.ActiveMember(workspaceID, targetUserID)
		if !ok {
			return newError(ErrNotFound, "User %s is not an active member of workspace %s.", targetUserID, workspaceID)
		}
		ectx := rbac.EvalContext{
			ActorUserID:  actorUserID,
			TargetUserID: targetUserID,
			TargetRole:   target.Role,
		}
		if err := m.engine.Assert(actor.Role, rbac.ActionMembersRoleManage, ectx); err != nil {
			return err
		}
		if role == rbac.RoleOwner {
			reason := "Workspace ownership cannot be transferred."
			if actor.Role != rbac.RoleOwner {
				reason = "Only the workspace owner can assign the owner role."
			}
			return &rbac.PermissionError{Role: actor.Role, Action: rbac.ActionMembersRoleManage, Reason: reason}
		}
		ectx.TargetRole = role
		if err := m.engine.Assert(actor.Role, rbac.ActionMembersRoleManage, ectx); err != nil {
			return err
		}

		out = target
		if target.Role == role {
			return nil
		}
		target.Role = role
		target.UpdatedAt = m.now()
		target.Revision++
		tx.PutMember(target)
		out = target
		changed = true
		snap, _ = tx.Snapshot(workspaceID)
		return nil
	})
	if err != nil {
		return nil, m.fail(span, "update_member_role", err)
	}

	if changed {
		m.persist(snap)
		m.logger.WithWorkspace(workspaceID).WithFields(map[string]interface{}{
			"actor":  actorUserID,
			"target": targetUserID,
			"role":   role,
		}).Info("Member role changed")
	}
	m.succeed(span, "update_member_role")
	return &out, nil
}

// ExpireInvites moves every pending invite past its expiry to expired and
// returns how many changed
func (m *Manager) ExpireInvites(ctx context.Context) (int, error) {
	_, span := m.startSpan(ctx, "ExpireInvites")
	defer span.End()

	var snaps []Snapshot
	expired := 0
	m.store.Update(func(tx *Tx) error {
		now := m.now()
		touched := make(map[string]bool)
		for _, inv := range tx.PendingInvites() {
			if inv.Pending(now) {
				continue
			}
			inv.Status = InviteExpired
			inv.Revision++
			tx.PutInvite(inv)
			touched[inv.WorkspaceID] = true
			expired++
		}
		ids := make([]string, 0, len(touched))
		for id := range touched {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if snap, ok := tx.Snapshot(id); ok {
				snaps = append(snaps, snap)
			}
		}
		return nil
	})

	for _, snap := range snaps {
		m.persist(snap)
	}
	span.SetAttributes(attribute.Int("invites.expired", expired))
	if m.metrics != nil {
		m.metrics.InvitesExpiredTotal.Add(float64(expired))
	}
	m.succeed(span, "expire_invites")
	return expired, nil
}

// GetWorkspace returns a workspace by id
func (m *Manager) GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	var out Workspace
	err := m.store.View(func(tx *Tx) error {
		ws, ok := tx.Workspace(workspaceID)
		if !ok {
			return workspaceNotFound(workspaceID)
		}
		out = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetInvite returns an invite by id
func (m *Manager) GetInvite(ctx context.Context, inviteID string) (*Invite, error) {
	var out Invite
	err := m.store.View(func(tx *Tx) error {
		inv, ok := tx.Invite(inviteID)
		if !ok {
			return inviteNotFound(inviteID)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkspacesForUser returns the active workspaces userID is a member of
func (m *Manager) ListWorkspacesForUser(ctx context.Context, userID string) []Workspace {
	m.ensureHydrated(ctx, userID)

	var out []Workspace
	m.store.View(func(tx *Tx) error {
		for _, ws := range tx.WorkspacesForUser(userID) {
			if ws.Status == StatusActive {
				out = append(out, ws)
			}
		}
		return nil
	})
	return out
}

// ListMembers returns the active members of a workspace. When actorUserID
// is set the actor must be a member allowed workspace.members.read.
func (m *Manager) ListMembers(ctx context.Context, workspaceID, actorUserID string) ([]Member, error) {
	m.ensureHydrated(ctx, actorUserID)

	var out []Member
	err := m.store.View(func(tx *Tx) error {
		if err := m.checkRead(tx, workspaceID, actorUserID); err != nil {
			return err
		}
		for _, member := range tx.Members(workspaceID) {
			if member.Active() {
				out = append(out, member)
			}
		}
		return nil
	})
	return out, err
}

// ListInvites returns every invite of a workspace, newest last
func (m *Manager) ListInvites(ctx context.Context, workspaceID, actorUserID string) ([]Invite, error) {
	m.ensureHydrated(ctx, actorUserID)

	var out []Invite
	err := m.store.View(func(tx *Tx) error {
		if err := m.checkRead(tx, workspaceID, actorUserID); err != nil {
			return err
		}
		out = tx.Invites(workspaceID)
		return nil
	})
	return out, err
}

// GetMemberRole returns userID's role when they are an active member
func (m *Manager) GetMemberRole(ctx context.Context, workspaceID, userID string) (rbac.Role, bool) {
	m.ensureHydrated(ctx, userID)

	var role rbac.Role
	var ok bool
	m.store.View(func(tx *Tx) error {
		var member Member
		member, ok = tx.ActiveMember(workspaceID, userID)
		role = member.Role
		return nil
	})
	return role, ok
}

// Authorize checks that userID is an active member of an existing
// workspace whose role permits action, and returns that role
func (m *Manager) Authorize(ctx context.Context, workspaceID, userID string, action rbac.Action) (rbac.Role, error) {
	m.ensureHydrated(ctx, userID)

	var role rbac.Role
	err := m.store.View(func(tx *Tx) error {
		if _, ok := tx.Workspace(workspaceID); !ok {
			return workspaceNotFound(workspaceID)
		}
		member, ok := tx.ActiveMember(workspaceID, userID)
		if !ok {
			return notMember(workspaceID, userID)
		}
		role = member.Role
		return m.engine.Assert(member.Role, action, rbac.EvalContext{ActorUserID: userID})
	})
	return role, err
}

func (m *Manager) checkRead(tx *Tx, workspaceID, actorUserID string) error {
	if _, ok := tx.Workspace(workspaceID); !ok {
		return workspaceNotFound(workspaceID)
	}
	if actorUserID == "" {
		return nil
	}
	actor, ok := tx.ActiveMember(workspaceID, actorUserID)
	if !ok {
		return notMember(workspaceID, actorUserID)
	}
	return m.engine.Assert(actor.Role, rbac.ActionMembersRead, rbac.EvalContext{ActorUserID: actorUserID})
}

func (m *Manager) activeWorkspaceAndMember(tx *Tx, workspaceID, userID string) (Workspace, Member, error) {
	ws, ok := tx.Workspace(workspaceID)
	if !ok {
		return Workspace{}, Member{}, workspaceNotFound(workspaceID)
	}
	if ws.Status == StatusArchived {
		return Workspace{}, Member{}, archived(workspaceID)
	}
	member, ok := tx.ActiveMember(workspaceID, userID)
	if !ok {
		return Workspace{}, Member{}, notMember(workspaceID, userID)
	}
	return ws, member, nil
}

func validateName(name string) error {
	if name == "" {
		return newError(ErrInvalidArgument, "Workspace name is required.")
	}
	if len(name) > maxWorkspaceNameLength {
		return newError(ErrInvalidArgument, "Workspace name must be at most %d characters.", maxWorkspaceNameLength)
	}
	return nil
}

func (m *Manager) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "workspace.Manager."+name, trace.WithAttributes(attrs...))
}

func (m *Manager) fail(span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if m.metrics != nil {
		status := "error"
		if errors.Is(err, rbac.ErrPermissionDenied) {
			status = "denied"
		}
		m.metrics.MutationsTotal.WithLabelValues(operation, status).Inc()
	}
	return err
}

func (m *Manager) succeed(span trace.Span, operation string) {
	span.SetStatus(codes.Ok, "")
	if m.metrics != nil {
		m.metrics.MutationsTotal.WithLabelValues(operation, "ok").Inc()
	}
}
