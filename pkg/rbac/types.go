package rbac

import (
	"fmt"
	"strings"
)

// Role is a workspace membership role
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// roleOrder lists roles from lowest to highest. It is the only place the
// hierarchy is defined.
var roleOrder = []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}

// Roles returns every role, highest first
func Roles() []Role {
	out := make([]Role, 0, len(roleOrder))
	for i := len(roleOrder) - 1; i >= 0; i-- {
		out = append(out, roleOrder[i])
	}
	return out
}

func (r Role) rank() int {
	for i, candidate := range roleOrder {
		if candidate == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.rank() >= 0
}

// Compare returns -1, 0 or 1 when r ranks below, equal to or above other.
// Unknown roles rank below every known role.
func (r Role) Compare(other Role) int {
	a, b := r.rank(), other.rank()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether r is strictly above other
func (r Role) Outranks(other Role) bool {
	return r.Compare(other) > 0
}

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown workspace role %q", s)
	}
	return role, nil
}

// Action is a permission-checked operation on a workspace
type Action string

const (
	ActionRead           Action = "workspace.read"
	ActionSettingsManage Action = "workspace.settings.manage"
	ActionArchive        Action = "workspace.archive"

	ActionMembersRead       Action = "workspace.members.read"
	ActionMembersInvite     Action = "workspace.members.invite"
	ActionMembersRemove     Action = "workspace.members.remove"
	ActionMembersRoleManage Action = "workspace.members.role.manage"

	ActionConversationsRead  Action = "workspace.conversations.read"
	ActionConversationsWrite Action = "workspace.conversations.write"
	ActionKnowledgeRead      Action = "workspace.knowledge.read"
	ActionKnowledgeWrite     Action = "workspace.knowledge.write"
	ActionMemoryRead         Action = "workspace.memory.read"
	ActionMemoryWrite        Action = "workspace.memory.write"
	ActionWorkflowsRead      Action = "workspace.workflows.read"
	ActionWorkflowsWrite     Action = "workspace.workflows.write"
	ActionWorkflowsRun       Action = "workspace.workflows.run"
)

// String returns the action name
func (a Action) String() string {
	return string(a)
}

// IsMembershipChange reports whether the action mutates another member and
// is therefore subject to the hierarchy rules
func (a Action) IsMembershipChange() bool {
	switch a {
	case ActionMembersInvite, ActionMembersRemove, ActionMembersRoleManage:
		return true
	}
	return false
}

var readActions = []Action{
	ActionRead,
	ActionMembersRead,
	ActionConversationsRead,
	ActionKnowledgeRead,
	ActionMemoryRead,
	ActionWorkflowsRead,
}

var contentWriteActions = []Action{
	ActionConversationsWrite,
	ActionKnowledgeWrite,
	ActionMemoryWrite,
	ActionWorkflowsWrite,
	ActionWorkflowsRun,
}

var adminActions = []Action{
	ActionSettingsManage,
	ActionMembersInvite,
	ActionMembersRemove,
	ActionMembersRoleManage,
}

// AllActions returns every known action
func AllActions() []Action {
	all := make([]Action, 0, len(readActions)+len(contentWriteActions)+len(adminActions)+1)
	all = append(all, readActions...)
	all = append(all, contentWriteActions...)
	all = append(all, adminActions...)
	return append(all, ActionArchive)
}

// defaultMatrix builds the built-in role to action matrix
func defaultMatrix() map[Role]map[Action]bool {
	grant := func(groups ...[]Action) map[Action]bool {
		set := make(map[Action]bool)
		for _, group := range groups {
			for _, a := range group {
				set[a] = true
			}
		}
		return set
	}

	return map[Role]map[Action]bool{
		RoleOwner:  grant(readActions, contentWriteActions, adminActions, []Action{ActionArchive}),
		RoleAdmin:  grant(readActions, contentWriteActions, adminActions),
		RoleMember: grant(readActions, contentWriteActions, []Action{ActionMembersInvite}),
		RoleViewer: grant(readActions),
	}
}
