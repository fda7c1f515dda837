package resolvd

import (
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port      int
	mode      string
	solverURL string
	suitesDir string
	logger    *slog.Logger
	version   string
	solver    Solver
}

// WithPort overrides the TCP port from config (RESOLVD_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithMode overrides the platform mode from config (RESOLVD_MODE env var).
// Valid values are "local" and "remote".
func WithMode(mode string) Option {
	return func(o *resolvedOptions) { o.mode = mode }
}

// WithSolverURL overrides the solver base URL from config (RESOLVD_SOLVER_URL
// env var). Ignored when WithSolver is also given.
func WithSolverURL(url string) Option {
	return func(o *resolvedOptions) { o.solverURL = url }
}

// WithSuitesDir overrides the directory suite definitions are saved under
// (RESOLVD_SUITES_DIR env var).
func WithSuitesDir(dir string) Option {
	return func(o *resolvedOptions) { o.suitesDir = dir }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithSolver replaces the HTTP solver with an external implementation.
// Only the last call wins. Timeout classification and failure handling in the
// gateway apply to the injected solver the same way they apply to the built-in
// one.
func WithSolver(s Solver) Option {
	return func(o *resolvedOptions) { o.solver = s }
}
