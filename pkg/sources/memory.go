package sources

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/workspaces/pkg/search"
)

// matches reports whether any token of term appears in text. An empty term
// matches everything.
func matches(term, text string) bool {
	tokens := search.Tokenize(term)
	if len(tokens) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// MemoryActivityLog is an in-process search.ActivityLog
type MemoryActivityLog struct {
	mu     sync.RWMutex
	events map[string][]search.ActivityEvent
}

// NewMemoryActivityLog creates an empty activity log
func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{events: make(map[string][]search.ActivityEvent)}
}

// Record appends an event to its user's log
func (l *MemoryActivityLog) Record(event search.ActivityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[event.UserID] = append(l.events[event.UserID], event)
}

// ListActivityEvents implements search.ActivityLog. Events are returned
// newest first.
func (l *MemoryActivityLog) ListActivityEvents(ctx context.Context, query search.ActivityQuery) ([]search.ActivityEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []search.ActivityEvent
	for _, ev := range l.events[query.UserID] {
		if query.Filter.From != nil && ev.CreatedAt.Before(*query.Filter.From) {
			continue
		}
		if query.Filter.To != nil && ev.CreatedAt.After(*query.Filter.To) {
			continue
		}
		if !matches(query.Filter.SearchTerm, ev.Title+" "+ev.Content) {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// MemoryKnowledgeStore is an in-process search.KnowledgeStore
type MemoryKnowledgeStore struct {
	mu      sync.RWMutex
	sources map[string][]search.KnowledgeSource
}

// NewMemoryKnowledgeStore creates an empty knowledge store
func NewMemoryKnowledgeStore() *MemoryKnowledgeStore {
	return &MemoryKnowledgeStore{sources: make(map[string][]search.KnowledgeSource)}
}

// Add stores a knowledge source for its user
func (s *MemoryKnowledgeStore) Add(source search.KnowledgeSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.UserID] = append(s.sources[source.UserID], source)
}

// SearchKnowledgeSources implements search.KnowledgeStore
func (s *MemoryKnowledgeStore) SearchKnowledgeSources(ctx context.Context, query search.KnowledgeQuery) ([]search.KnowledgeSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []search.KnowledgeSource
	for _, src := range s.sources[query.UserID] {
		if query.Type != "" && src.Type != query.Type {
			continue
		}
		if matches(query.Term, src.Title+" "+src.Content) {
			out = append(out, src)
		}
	}
	return out, nil
}

// MemoryWorkflowEngine is an in-process search.WorkflowEngine
type MemoryWorkflowEngine struct {
	mu        sync.RWMutex
	workflows map[string][]search.Workflow
}

// NewMemoryWorkflowEngine creates an engine with no workflows
func NewMemoryWorkflowEngine() *MemoryWorkflowEngine {
	return &MemoryWorkflowEngine{workflows: make(map[string][]search.Workflow)}
}

// Add registers a workflow under its owner
func (e *MemoryWorkflowEngine) Add(workflow search.Workflow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[workflow.OwnerUserID] = append(e.workflows[workflow.OwnerUserID], workflow)
}

// ListWorkflows implements search.WorkflowEngine
func (e *MemoryWorkflowEngine) ListWorkflows(ctx context.Context, userID string) ([]search.Workflow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]search.Workflow(nil), e.workflows[userID]...), nil
}
