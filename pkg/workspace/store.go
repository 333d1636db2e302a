package workspace

import (
	"sort"
	"sync"
	"time"
)

// Store is the in-memory system of record for workspaces, members and
// invites. Members live in an arena keyed by member id; indexes map a
// workspace to its member ids, a (workspace, user) pair to a member id and
// a user to the member ids they hold. Nothing is ever physically deleted.
//
// All access goes through View and Update so compound check-and-set
// operations are atomic.
type Store struct {
	mu sync.RWMutex

	workspaces map[string]*Workspace
	members    map[string]*Member
	invites    map[string]*Invite

	membersByWorkspace map[string][]string
	membersByUser      map[string][]string
	memberByKey        map[memberKey]string
	invitesByWorkspace map[string][]string
}

type memberKey struct {
	workspaceID string
	userID      string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		workspaces:         make(map[string]*Workspace),
		members:            make(map[string]*Member),
		invites:            make(map[string]*Invite),
		membersByWorkspace: make(map[string][]string),
		membersByUser:      make(map[string][]string),
		memberByKey:        make(map[memberKey]string),
		invitesByWorkspace: make(map[string][]string),
	}
}

// Tx is a view of the store inside View or Update. Getters return copies;
// puts are only allowed in Update. A Tx must not be used after its callback
// returns.
type Tx struct {
	s        *Store
	writable bool
}

// View runs fn under the read lock
func (s *Store) View(fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{s: s})
}

// Update runs fn under the write lock. There is no rollback: fn validates
// before it writes.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s, writable: true})
}

func (tx *Tx) mustWrite() {
	if !tx.writable {
		panic("workspace: write in read-only transaction")
	}
}

// Workspace returns the workspace with the given id
func (tx *Tx) Workspace(id string) (Workspace, bool) {
	ws, ok := tx.s.workspaces[id]
	if !ok {
		return Workspace{}, false
	}
	return *ws, true
}

// Member returns the (possibly removed) member record of userID in workspaceID
func (tx *Tx) Member(workspaceID, userID string) (Member, bool) {
	id, ok := tx.s.memberByKey[memberKey{workspaceID, userID}]
	if !ok {
		return Member{}, false
	}
	return copyMember(tx.s.members[id]), true
}

// ActiveMember returns the member record only when it is not removed
func (tx *Tx) ActiveMember(workspaceID, userID string) (Member, bool) {
	m, ok := tx.Member(workspaceID, userID)
	if !ok || !m.Active() {
		return Member{}, false
	}
	return m, true
}

// Members returns every member record of a workspace, removed ones
// included, in join order
func (tx *Tx) Members(workspaceID string) []Member {
	ids := tx.s.membersByWorkspace[workspaceID]
	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyMember(tx.s.members[id]))
	}
	return out
}

// WorkspacesForUser returns the workspaces userID holds an active
// membership in, oldest first
func (tx *Tx) WorkspacesForUser(userID string) []Workspace {
	var out []Workspace
	for _, id := range tx.s.membersByUser[userID] {
		m := tx.s.members[id]
		if !m.Active() {
			continue
		}
		if ws, ok := tx.s.workspaces[m.WorkspaceID]; ok {
			out = append(out, *ws)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Invite returns the invite with the given id
func (tx *Tx) Invite(id string) (Invite, bool) {
	inv, ok := tx.s.invites[id]
	if !ok {
		return Invite{}, false
	}
	return copyInvite(inv), true
}

// Invites returns every invite of a workspace in creation order
func (tx *Tx) Invites(workspaceID string) []Invite {
	ids := tx.s.invitesByWorkspace[workspaceID]
	out := make([]Invite, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyInvite(tx.s.invites[id]))
	}
	return out
}

// PendingInvites returns every pending invite across workspaces
func (tx *Tx) PendingInvites() []Invite {
	var out []Invite
	for _, inv := range tx.s.invites {
		if inv.Status == InvitePending {
			out = append(out, copyInvite(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutWorkspace inserts or replaces a workspace
func (tx *Tx) PutWorkspace(ws Workspace) {
	tx.mustWrite()
	tx.s.workspaces[ws.ID] = &ws
}

// PutMember inserts or replaces a member record, keeping the indexes in
// step. A record for an existing (workspace, user) pair keeps the arena
// slot of the existing member id.
func (tx *Tx) PutMember(m Member) {
	tx.mustWrite()
	key := memberKey{m.WorkspaceID, m.UserID}
	if existingID, ok := tx.s.memberByKey[key]; ok {
		m.ID = existingID
	} else {
		tx.s.memberByKey[key] = m.ID
		tx.s.membersByWorkspace[m.WorkspaceID] = append(tx.s.membersByWorkspace[m.WorkspaceID], m.ID)
		tx.s.membersByUser[m.UserID] = append(tx.s.membersByUser[m.UserID], m.ID)
	}
	stored := copyMember(&m)
	tx.s.members[m.ID] = &stored
}

// PutInvite inserts or replaces an invite
func (tx *Tx) PutInvite(inv Invite) {
	tx.mustWrite()
	if _, ok := tx.s.invites[inv.ID]; !ok {
		tx.s.invitesByWorkspace[inv.WorkspaceID] = append(tx.s.invitesByWorkspace[inv.WorkspaceID], inv.ID)
	}
	stored := copyInvite(&inv)
	tx.s.invites[inv.ID] = &stored
}

// Snapshot returns the workspace with all of its members and invites
func (tx *Tx) Snapshot(workspaceID string) (Snapshot, bool) {
	ws, ok := tx.Workspace(workspaceID)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Workspace: ws,
		Members:   tx.Members(workspaceID),
		Invites:   tx.Invites(workspaceID),
	}, true
}

// Snapshot is the full persisted state of one workspace
type Snapshot struct {
	Workspace Workspace
	Members   []Member
	Invites   []Invite
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyMember(m *Member) Member {
	out := *m
	out.RemovedAt = copyTime(m.RemovedAt)
	return out
}

func copyInvite(inv *Invite) Invite {
	out := *inv
	out.RespondedAt = copyTime(inv.RespondedAt)
	return out
}
