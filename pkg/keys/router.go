package keys

import (
	"context"
	"fmt"
	"sync"

	"github.com/platinummonkey/workspaces/pkg/observability"
)

// Provider names an upstream model provider, e.g. "openai" or "anthropic"
type Provider string

// Source tags where a resolved key came from
type Source string

const (
	SourceWorkspaceMember  Source = "workspace_member"
	SourceWorkspaceDefault Source = "workspace_default"
	SourceBYOKFallback     Source = "byok_fallback"
)

// Resolution is the key chosen for one operation. It is computed per call
// and never stored.
type Resolution struct {
	WorkspaceID string   `json:"workspace_id"`
	Provider    Provider `json:"provider"`
	Key         string   `json:"-"`
	UserID      string   `json:"user_id"`
	Source      Source   `json:"source"`
}

// NoKeyError is returned when no link of the fallback chain yields a key
type NoKeyError struct {
	WorkspaceID string
	UserID      string
	Provider    Provider
}

func (e *NoKeyError) Error() string {
	return fmt.Sprintf("No BYOK key available for workspace member %s (%s).", e.UserID, e.Provider)
}

// FallbackKeyStore is the process-wide bring-your-own-key store consulted
// last. GetDecryptedKey returns an empty string when the provider has no key.
type FallbackKeyStore interface {
	GetDecryptedKey(ctx context.Context, provider Provider) (string, error)
}

// MemberKeyResolver looks a member key up in an external system. An empty
// result means the member has no key there and the chain continues.
type MemberKeyResolver func(ctx context.Context, workspaceID, userID string, provider Provider) (string, error)

// WorkflowKeyRequest selects whose credentials a workflow run uses
type WorkflowKeyRequest struct {
	WorkspaceID         string
	WorkflowOwnerUserID string
	InitiatorUserID     string
	Provider            Provider
	// UseInitiatorKey tries the initiator before the workflow owner
	UseInitiatorKey bool
}

type memberSlot struct {
	workspaceID string
	userID      string
	provider    Provider
}

type defaultSlot struct {
	workspaceID string
	provider    Provider
}

// Router resolves provider keys through the ordered chain: external member
// resolver, in-memory member key, workspace default key, global fallback.
// The first non-empty key wins.
type Router struct {
	fallback    FallbackKeyStore
	resolver    MemberKeyResolver
	logger      *observability.Logger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics

	mu         sync.RWMutex
	memberKeys map[memberSlot]string
	defaults   map[defaultSlot]string
}

// Option configures a Router
type Option func(*Router)

// WithMemberKeyResolver installs an external member key lookup that runs
// before the in-memory member keys
func WithMemberKeyResolver(fn MemberKeyResolver) Option {
	return func(r *Router) {
		r.resolver = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithMetrics counts resolutions by entry point and source
func WithMetrics(metrics *observability.Metrics) Option {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// WithOTelMetrics exports resolutions as OpenTelemetry metrics
func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(r *Router) {
		r.otelMetrics = metrics
	}
}

// NewRouter creates a router. fallback may be nil.
func NewRouter(fallback FallbackKeyStore, opts ...Option) *Router {
	r := &Router{
		fallback:   fallback,
		memberKeys: make(map[memberSlot]string),
		defaults:   make(map[defaultSlot]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = observability.NewNopLogger()
	}
	return r
}

// SetWorkspaceMemberKey stores a key for one member and provider. An empty
// key clears it.
func (r *Router) SetWorkspaceMemberKey(workspaceID, userID string, provider Provider, key string) {
	if key == "" {
		r.ClearWorkspaceMemberKey(workspaceID, userID, provider)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memberKeys[memberSlot{workspaceID, userID, provider}] = key
}

// ClearWorkspaceMemberKey removes a member key
func (r *Router) ClearWorkspaceMemberKey(workspaceID, userID string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memberKeys, memberSlot{workspaceID, userID, provider})
}

// SetWorkspaceDefaultKey stores the workspace-wide key for a provider. An
// empty key removes it.
func (r *Router) SetWorkspaceDefaultKey(workspaceID string, provider Provider, key string) {
	if key == "" {
		r.RemoveWorkspaceDefaultKey(workspaceID, provider)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[defaultSlot{workspaceID, provider}] = key
}

// RemoveWorkspaceDefaultKey removes the workspace-wide key for a provider
func (r *Router) RemoveWorkspaceDefaultKey(workspaceID string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defaults, defaultSlot{workspaceID, provider})
}

// HasWorkspaceDefaultKey reports whether a workspace-wide key is installed
func (r *Router) HasWorkspaceDefaultKey(workspaceID string, provider Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defaults[defaultSlot{workspaceID, provider}]
	return ok
}

// ResolveChatKey resolves a key for a chat turn by userID
func (r *Router) ResolveChatKey(ctx context.Context, workspaceID, userID string, provider Provider) (*Resolution, error) {
	res, err := r.resolve(ctx, workspaceID, userID, provider)
	if err != nil {
		return nil, err
	}
	if res == nil {
		r.record(ctx, "chat", "none")
		return nil, &NoKeyError{WorkspaceID: workspaceID, UserID: userID, Provider: provider}
	}
	r.record(ctx, "chat", string(res.Source))
	return res, nil
}

// ResolveWorkflowKey runs the whole chain for the primary user (the
// workflow owner, or the initiator when UseInitiatorKey is set) and then
// for the other user before giving up
func (r *Router) ResolveWorkflowKey(ctx context.Context, req WorkflowKeyRequest) (*Resolution, error) {
	primary, secondary := req.WorkflowOwnerUserID, req.InitiatorUserID
	if req.UseInitiatorKey {
		primary, secondary = secondary, primary
	}

	users := []string{primary}
	if secondary != primary {
		users = append(users, secondary)
	}
	for _, userID := range users {
		if userID == "" {
			continue
		}
		res, err := r.resolve(ctx, req.WorkspaceID, userID, req.Provider)
		if err != nil {
			return nil, err
		}
		if res != nil {
			r.record(ctx, "workflow", string(res.Source))
			return res, nil
		}
	}

	r.record(ctx, "workflow", "none")
	return nil, &NoKeyError{WorkspaceID: req.WorkspaceID, UserID: primary, Provider: req.Provider}
}

// resolve walks the chain for one user. A nil resolution with a nil error
// means every link came back empty.
func (r *Router) resolve(ctx context.Context, workspaceID, userID string, provider Provider) (*Resolution, error) {
	found := func(key string, source Source) *Resolution {
		return &Resolution{WorkspaceID: workspaceID, Provider: provider, Key: key, UserID: userID, Source: source}
	}

	if r.resolver != nil {
		key, err := r.resolver(ctx, workspaceID, userID, provider)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve member key: %w", err)
		}
		if key != "" {
			return found(key, SourceWorkspaceMember), nil
		}
	}

	r.mu.RLock()
	memberKey := r.memberKeys[memberSlot{workspaceID, userID, provider}]
	defaultKey := r.defaults[defaultSlot{workspaceID, provider}]
	r.mu.RUnlock()

	if memberKey != "" {
		return found(memberKey, SourceWorkspaceMember), nil
	}
	if defaultKey != "" {
		return found(defaultKey, SourceWorkspaceDefault), nil
	}

	if r.fallback != nil {
		key, err := r.fallback.GetDecryptedKey(ctx, provider)
		if err != nil {
			return nil, fmt.Errorf("failed to read fallback key: %w", err)
		}
		if key != "" {
			return found(key, SourceBYOKFallback), nil
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"workspace_id": workspaceID,
		"user_id":      userID,
		"provider":     provider,
	}).Debug("No key in any source")
	return nil, nil
}

func (r *Router) record(ctx context.Context, kind, source string) {
	if r.metrics != nil {
		r.metrics.KeyResolutionsTotal.WithLabelValues(kind, source).Inc()
	}
	if r.otelMetrics != nil {
		r.otelMetrics.RecordKeyResolution(ctx, kind, source)
	}
}
