package rbac

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrPermissionDenied is wrapped by every PermissionError
var ErrPermissionDenied = errors.New("permission denied")

// EvalContext describes who the action is performed on. Leave TargetRole
// empty when the action has no member target.
type EvalContext struct {
	ActorUserID  string
	TargetUserID string
	TargetRole   Role
}

func (c EvalContext) hasTarget() bool {
	return c.TargetRole != ""
}

// Decision is the result of a permission evaluation
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Role      Role      `json:"role"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// PermissionError is returned by Assert when a decision denies the action
type PermissionError struct {
	Role   Role
	Action Action
	Reason string
}

func (e *PermissionError) Error() string {
	return e.Reason
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// Engine evaluates role permissions and hierarchy rules. It holds no
// per-workspace state and is safe for concurrent use.
type Engine struct {
	matrix  map[Role]map[Action]bool
	denials *prometheus.CounterVec
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithDenialCounter counts denials labelled by action and role
func WithDenialCounter(counter *prometheus.CounterVec) Option {
	return func(e *Engine) {
		e.denials = counter
	}
}

// WithClock overrides the clock used to stamp decisions
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine with the built-in role matrix
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		matrix: defaultMatrix(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Can reports whether the role's permission set contains the action,
// ignoring hierarchy rules
func (e *Engine) Can(role Role, action Action) bool {
	return e.matrix[role][action]
}

// Permissions returns the role's actions in lexical order
func (e *Engine) Permissions(role Role) []Action {
	actions := make([]Action, 0, len(e.matrix[role]))
	for action := range e.matrix[role] {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Evaluate decides whether actorRole may perform action in the given context
func (e *Engine) Evaluate(actorRole Role, action Action, ectx EvalContext) Decision {
	decision := Decision{
		Role:      actorRole,
		Action:    action,
		CheckedAt: e.now(),
	}

	if !e.Can(actorRole, action) {
		return e.deny(decision, fmt.Sprintf("Role %s cannot perform %s.", actorRole, action))
	}

	if action.IsMembershipChange() && ectx.hasTarget() {
		if ectx.TargetRole == RoleOwner {
			return e.deny(decision, "Workspace owner membership cannot be modified.")
		}
		if action == ActionMembersRoleManage && ectx.TargetUserID != "" && ectx.TargetUserID == ectx.ActorUserID {
			return e.deny(decision, "Users cannot change their own workspace role.")
		}
		if actorRole != RoleOwner && !actorRole.Outranks(ectx.TargetRole) {
			return e.deny(decision, fmt.Sprintf("Role %s cannot manage members with role %s.", actorRole, ectx.TargetRole))
		}
	}

	decision.Allowed = true
	return decision
}

// Assert evaluates and converts a denial into a *PermissionError
func (e *Engine) Assert(actorRole Role, action Action, ectx EvalContext) error {
	decision := e.Evaluate(actorRole, action, ectx)
	if decision.Allowed {
		return nil
	}
	return &PermissionError{
		Role:   actorRole,
		Action: action,
		Reason: decision.Reason,
	}
}

func (e *Engine) deny(decision Decision, reason string) Decision {
	decision.Allowed = false
	decision.Reason = reason
	if e.denials != nil {
		e.denials.WithLabelValues(string(decision.Action), string(decision.Role)).Inc()
	}
	return decision
}
