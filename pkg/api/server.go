package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/workspaces/pkg/httputil"
	"github.com/platinummonkey/workspaces/pkg/observability"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Services are the domain services exposed over HTTP. A nil service leaves
// its routes unregistered.
type Services struct {
	Workspaces WorkspaceService
	Settings   SettingsService
	MemberKeys MemberKeys
	Search     Searcher
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
	metrics *observability.Metrics
	tracing bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used by the request middleware
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics instruments requests with Prometheus metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracing wraps the handler with an OpenTelemetry server span per request
func WithTracing() Option {
	return func(s *Server) {
		s.tracing = true
	}
}

// NewServer creates a new API server
func NewServer(services Services, opts ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes(services)

	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	var handler http.Handler = s.router
	handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.ActorMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(handler)
	if s.tracing {
		handler = otelhttp.NewHandler(handler, "workspaces.api")
	}
	s.handler = handler
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(services Services) {
	if services.Workspaces != nil {
		NewWorkspaceHandlers(services.Workspaces, services.MemberKeys).RegisterRoutes(s.router)
	}
	if services.Settings != nil {
		NewSettingsHandlers(services.Settings).RegisterRoutes(s.router)
	}
	if services.Search != nil {
		NewSearchHandlers(services.Search).RegisterRoutes(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

// Router returns the underlying router so callers can add routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
