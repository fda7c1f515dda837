package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/caldera-labs/resolvd/internal/ratelimit"
)

// Server is the resolvd HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	Handlers HandlersDeps

	// Limiter applies to the solver-bound and process-spawning routes.
	// Nil disables rate limiting.
	Limiter ratelimit.Limiter

	// OpenAPISpec, when non-nil, is served at GET /api/v1/openapi.yaml.
	OpenAPISpec []byte

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(cfg.Handlers)
	logger := cfg.Handlers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	// Resolve and execute are the expensive routes: one solver round-trip or
	// one spawned process per request.
	expensive := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Environments.
	mux.Handle("POST /api/v1/environments/resolve", expensive(http.HandlerFunc(h.HandleResolve)))
	mux.HandleFunc("GET /api/v1/environments", h.HandleListEnvironments)
	mux.HandleFunc("GET /api/v1/environments/{id}", h.HandleGetEnvironment)
	mux.HandleFunc("DELETE /api/v1/environments/{id}", h.HandleDeleteEnvironment)
	mux.Handle("POST /api/v1/environments/{id}/execute", expensive(http.HandlerFunc(h.HandleExecute)))

	// Suites. Load resolves every member context, so it shares the limit.
	mux.HandleFunc("POST /api/v1/suites", h.HandleCreateSuite)
	mux.HandleFunc("GET /api/v1/suites", h.HandleListSuites)
	mux.HandleFunc("GET /api/v1/suites/{id}", h.HandleGetSuite)
	mux.HandleFunc("DELETE /api/v1/suites/{id}", h.HandleDeleteSuite)
	mux.HandleFunc("POST /api/v1/suites/{id}/contexts", h.HandleAddSuiteContext)
	mux.HandleFunc("POST /api/v1/suites/{id}/tools/alias", h.HandleAliasTool)
	mux.HandleFunc("GET /api/v1/suites/{id}/tools", h.HandleSuiteTools)
	mux.HandleFunc("POST /api/v1/suites/{id}/save", h.HandleSaveSuite)
	mux.Handle("POST /api/v1/suites/load", expensive(http.HandlerFunc(h.HandleLoadSuite)))

	// Resolver utilities.
	mux.HandleFunc("POST /api/v1/resolver/validate", h.HandleValidate)
	mux.Handle("POST /api/v1/resolver/conflicts", expensive(http.HandlerFunc(h.HandleConflicts)))

	// System.
	mux.HandleFunc("GET /api/v1/system/status", h.HandleSystemStatus)
	mux.HandleFunc("GET /health", h.HandleHealth)

	if len(cfg.OpenAPISpec) > 0 {
		mux.HandleFunc("GET /api/v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(cfg.OpenAPISpec)
		})
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger, handler)
	handler = loggingMiddleware(logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
