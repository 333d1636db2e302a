// Package contextkeys provides centralized context key definitions
//
// All context keys used across the service are defined here so that the
// packages setting a value and the packages reading it agree on one key.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/workspaces/pkg/contextkeys"
//	ctx = contextkeys.WithActor(ctx, contextkeys.Actor{UserID: "u1", Email: "a@x.com"})
//	actor, ok := contextkeys.GetActor(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains Actor
	// Set by: httputil.ActorMiddleware from gateway headers
	// Required by: every workspace endpoint
	// Type: Actor
	ActorKey Key = "actor"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Actor identifies the authenticated caller
type Actor struct {
	UserID string
	Email  string
}

// WithActor adds the calling actor to the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the calling actor from context
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(Actor)
	if !ok || actor.UserID == "" {
		return Actor{}, false
	}
	return actor, true
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
