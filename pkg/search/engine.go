package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

var searchTracer = otel.Tracer("github.com/platinummonkey/workspaces/pkg/search")

const (
	DefaultLimit       = 20
	MaxLimit           = 100
	DefaultConcurrency = 8
)

// Engine federates a query across the actor's personal data and the data
// of every member of every workspace the actor belongs to
type Engine struct {
	directory   Directory
	activity    ActivityLog
	knowledge   KnowledgeStore
	workflows   WorkflowEngine
	parser      *QueryParser
	logger      *observability.Logger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	now         func() time.Time

	defaultLimit int
	maxLimit     int
	concurrency  int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics records search latency and result counts
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithOTelMetrics exports search latency and result counts over OTLP
func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(e *Engine) {
		e.otelMetrics = metrics
	}
}

// WithClock overrides time.Now for recency scoring
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLimits sets the limit applied when a request has none and the
// largest limit accepted
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(e *Engine) {
		if defaultLimit > 0 {
			e.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			e.maxLimit = maxLimit
		}
	}
}

// WithConcurrency bounds how many users are searched at once
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates a search engine. Any source may be nil.
func NewEngine(directory Directory, activity ActivityLog, knowledge KnowledgeStore, workflows WorkflowEngine, opts ...Option) *Engine {
	e := &Engine{
		directory:    directory,
		activity:     activity,
		knowledge:    knowledge,
		workflows:    workflows,
		parser:       NewQueryParser(),
		now:          time.Now,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		concurrency:  DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = observability.NewNopLogger()
	}
	return e
}

// target is one user's data in one scope
type target struct {
	scope         Scope
	workspaceID   string
	workspaceName string
	ownerUserID   string
}

func (t target) originLabel() string {
	if t.scope == ScopePersonal {
		return PersonalOriginLabel
	}
	return fmt.Sprintf("%s (%s)", t.workspaceName, t.ownerUserID)
}

func (t target) compositeID(domain Domain, sourceID string) string {
	workspaceID := t.workspaceID
	if workspaceID == "" {
		workspaceID = "-"
	}
	return strings.Join([]string{string(domain), string(t.scope), workspaceID, t.ownerUserID, sourceID}, ":")
}

// SearchAcrossWorkspaces runs req and returns at most the requested number
// of results, best first
func (e *Engine) SearchAcrossWorkspaces(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ctx, span := searchTracer.Start(ctx, "search.Engine.SearchAcrossWorkspaces",
		trace.WithAttributes(
			attribute.String("actor.user_id", req.ActorUserID),
			attribute.Bool("include_personal", req.IncludePersonal),
			attribute.Int("limit", req.Limit),
		),
	)
	defer span.End()

	resp, err := e.search(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("result_count", len(resp.Results)),
			attribute.Int("workspaces_searched", resp.WorkspacesSearched),
		)
		span.SetStatus(codes.Ok, "search completed")
	}
	if e.metrics != nil {
		e.metrics.SearchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		if resp != nil {
			e.metrics.SearchResults.Observe(float64(len(resp.Results)))
		}
	}
	if e.otelMetrics != nil {
		count := 0
		if resp != nil {
			count = len(resp.Results)
		}
		e.otelMetrics.RecordSearch(ctx, time.Since(start), count, err)
	}
	return resp, err
}

func (e *Engine) search(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.ActorUserID) == "" {
		return nil, invalid("Actor user id is required.")
	}
	pq, err := e.parser.Parse(req.Query)
	if err != nil {
		return nil, invalid("Invalid search query: %v.", err)
	}
	if len(pq.Tokens) == 0 {
		return nil, invalid("Search query is required.")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	targets, searched, err := e.targets(ctx, req, pq)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		hits []Result
	)
	now := e.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, t := range targets {
		g.Go(func() error {
			found, err := e.searchTarget(gctx, t, pq, limit, now)
			if err != nil {
				return err
			}
			mu.Lock()
			hits = append(hits, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := rank(hits, limit)
	e.logger.WithFields(map[string]interface{}{
		"user_id":    req.ActorUserID,
		"workspaces": searched,
		"targets":    len(targets),
		"results":    len(results),
	}).Debug("Search completed")

	return &Response{
		Results:            results,
		TotalCount:         len(results),
		Query:              req.Query,
		ParsedQuery:        pq,
		WorkspacesSearched: searched,
	}, nil
}

// targets lists whose data the actor may search: the actor in personal
// scope, then every active member of every visible workspace
func (e *Engine) targets(ctx context.Context, req Request, pq *ParsedQuery) ([]target, int, error) {
	var out []target
	if req.IncludePersonal && pq.Scope != ScopeWorkspace {
		out = append(out, target{scope: ScopePersonal, ownerUserID: req.ActorUserID})
	}
	if pq.Scope == ScopePersonal || e.directory == nil {
		return out, 0, nil
	}

	searched := 0
	for _, ws := range e.directory.ListWorkspacesForUser(ctx, req.ActorUserID) {
		if pq.WorkspaceID != "" && ws.ID != pq.WorkspaceID {
			continue
		}
		if _, err := e.directory.Authorize(ctx, ws.ID, req.ActorUserID, rbac.ActionRead); err != nil {
			if gone(err) {
				continue
			}
			return nil, 0, err
		}
		members, err := e.directory.ListMembers(ctx, ws.ID, req.ActorUserID)
		if err != nil {
			if gone(err) {
				continue
			}
			return nil, 0, err
		}
		searched++
		for _, member := range members {
			out = append(out, target{
				scope:         ScopeWorkspace,
				workspaceID:   ws.ID,
				workspaceName: ws.Name,
				ownerUserID:   member.UserID,
			})
		}
	}
	return out, searched, nil
}

// gone reports a membership or workspace that vanished between listing and
// checking
func gone(err error) bool {
	return errors.Is(err, workspace.ErrNotMember) || errors.Is(err, workspace.ErrNotFound)
}

func (e *Engine) searchTarget(ctx context.Context, t target, pq *ParsedQuery, limit int, now time.Time) ([]Result, error) {
	var out []Result
	add := func(domain Domain, sourceID, title, body string, createdAt time.Time, requireLexical bool) {
		lexical := LexicalScore(pq.Tokens, pq.Text, title+" "+body)
		if requireLexical && lexical <= 0 {
			return
		}
		out = append(out, Result{
			ID:          t.compositeID(domain, sourceID),
			Domain:      domain,
			Scope:       t.scope,
			WorkspaceID: t.workspaceID,
			OwnerUserID: t.ownerUserID,
			OriginLabel: t.originLabel(),
			SourceID:    sourceID,
			Title:       title,
			Snippet:     snippet(body),
			Score:       Score(lexical, RecencyScore(createdAt, now)),
			CreatedAt:   createdAt,
		})
	}

	if e.activity != nil && pq.HasDomain(DomainActivity) {
		events, err := e.activity.ListActivityEvents(ctx, ActivityQuery{
			UserID: t.ownerUserID,
			Filter: ActivityFilter{SearchTerm: pq.Text},
			Limit:  limit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list activity for %s: %w", t.ownerUserID, err)
		}
		for _, ev := range events {
			add(DomainActivity, ev.ID, ev.Title, ev.Content, ev.CreatedAt, false)
		}
	}

	if e.knowledge != nil && pq.HasDomain(DomainKnowledge) {
		sources, err := e.knowledge.SearchKnowledgeSources(ctx, KnowledgeQuery{UserID: t.ownerUserID, Term: pq.Text})
		if err != nil {
			return nil, fmt.Errorf("failed to search knowledge for %s: %w", t.ownerUserID, err)
		}
		for _, src := range sources {
			add(DomainKnowledge, src.ID, src.Title, src.Content, src.CreatedAt, false)
		}
	}

	if e.workflows != nil && pq.HasDomain(DomainWorkflow) {
		workflows, err := e.workflows.ListWorkflows(ctx, t.ownerUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows for %s: %w", t.ownerUserID, err)
		}
		for _, wf := range workflows {
			add(DomainWorkflow, wf.ID, wf.Name, wf.Description, wf.CreatedAt, true)
		}
	}
	return out, nil
}

// rank collapses duplicate ids keeping the best score, then orders by score
// and creation time, newest first, and truncates to limit. Full ties are
// ordered by id so results are stable.
func rank(hits []Result, limit int) []Result {
	best := make(map[string]int, len(hits))
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if i, ok := best[hit.ID]; ok {
			if hit.Score > results[i].Score {
				results[i] = hit
			}
			continue
		}
		best[hit.ID] = len(results)
		results = append(results, hit)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func invalid(format string, args ...interface{}) *workspace.Error {
	return &workspace.Error{Kind: workspace.ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}
