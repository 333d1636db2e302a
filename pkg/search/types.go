package search

import (
	"context"
	"time"

	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// Domain is the kind of data a result comes from
type Domain string

const (
	DomainActivity  Domain = "activity"
	DomainKnowledge Domain = "knowledge"
	DomainWorkflow  Domain = "workflow"
)

// Scope tells whether a result is the actor's own data or a workspace
// member's data
type Scope string

const (
	ScopePersonal  Scope = "personal"
	ScopeWorkspace Scope = "workspace"
)

// PersonalOriginLabel is the origin label of personal results
const PersonalOriginLabel = "Personal"

// ActivityEvent is one entry of a user's activity log
type ActivityEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityFilter narrows an activity listing by search term and/or time
type ActivityFilter struct {
	SearchTerm string
	From       *time.Time
	To         *time.Time
}

// ActivityQuery lists one user's activity events
type ActivityQuery struct {
	UserID string
	Filter ActivityFilter
	Limit  int
}

// ActivityLog is the read side of the activity log
type ActivityLog interface {
	ListActivityEvents(ctx context.Context, query ActivityQuery) ([]ActivityEvent, error)
}

// KnowledgeSource is a document in a user's knowledge store
type KnowledgeSource struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeQuery searches one user's knowledge sources. An empty Type
// matches every type.
type KnowledgeQuery struct {
	UserID string
	Term   string
	Type   string
}

// KnowledgeStore is the read side of the knowledge store
type KnowledgeStore interface {
	SearchKnowledgeSources(ctx context.Context, query KnowledgeQuery) ([]KnowledgeSource, error)
}

// Workflow is an automation owned by a user
type Workflow struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkflowEngine lists workflows
type WorkflowEngine interface {
	ListWorkflows(ctx context.Context, userID string) ([]Workflow, error)
}

// Directory is the part of workspace.Manager search needs to find what an
// actor may see
type Directory interface {
	ListWorkspacesForUser(ctx context.Context, userID string) []workspace.Workspace
	ListMembers(ctx context.Context, workspaceID, actorUserID string) ([]workspace.Member, error)
	Authorize(ctx context.Context, workspaceID, userID string, action rbac.Action) (rbac.Role, error)
}

// Request is a cross-workspace search
type Request struct {
	ActorUserID     string `json:"actor_user_id"`
	Query           string `json:"query"`
	IncludePersonal bool   `json:"include_personal"`
	Limit           int    `json:"limit"`
}

// Result is one ranked search hit with its provenance
type Result struct {
	ID          string    `json:"id"`
	Domain      Domain    `json:"domain"`
	Scope       Scope     `json:"scope"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	OwnerUserID string    `json:"owner_user_id"`
	OriginLabel string    `json:"origin_label"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet,omitempty"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

// Response contains search results and metadata
type Response struct {
	Results            []Result     `json:"results"`
	TotalCount         int          `json:"total_count"`
	Query              string       `json:"query"`
	ParsedQuery        *ParsedQuery `json:"-"`
	WorkspacesSearched int          `json:"workspaces_searched"`
}
