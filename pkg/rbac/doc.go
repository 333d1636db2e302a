// Package rbac provides the workspace permission engine.
//
// # Overview
//
// Every workspace member holds exactly one role. Roles form a total order:
//
//	owner > admin > member > viewer
//
// The order is defined once (Role.Compare) and is shared by the permission
// engine and the workspace manager, so hierarchy comparisons cannot drift.
//
// # Actions
//
// Actions are dotted strings grouped by the surface they protect:
//
//	workspace.read                    - see the workspace at all
//	workspace.settings.manage         - rename, notification and API routing settings
//	workspace.archive                 - archive the workspace
//	workspace.members.read            - list members and invites
//	workspace.members.invite          - create and revoke invites
//	workspace.members.remove          - soft-delete a member
//	workspace.members.role.manage     - change a member's role
//	workspace.{conversations,knowledge,memory,workflows}.{read,write}
//	workspace.workflows.run
//
// # Evaluation
//
// Evaluate first looks the action up in the role's permission set. For the
// membership-changing actions (invite, remove, role manage) with a known
// target it then applies the hierarchy rules:
//
//   - the owner membership is immutable
//   - a non-owner actor must strictly outrank the target
//   - nobody changes their own role
//
// Usage:
//
//	engine := rbac.NewEngine()
//	err := engine.Assert(rbac.RoleMember, rbac.ActionMembersInvite, rbac.EvalContext{
//		ActorUserID: "u1",
//		TargetRole:  rbac.RoleAdmin,
//	})
//	// err: Role member cannot manage members with role admin.
package rbac
