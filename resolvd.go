// Package resolvd is the public API for embedding the resolvd environment
// resolution server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := resolvd.New(
//	    resolvd.WithVersion(version),
//	    resolvd.WithLogger(logger),
//	    resolvd.WithSolver(mySolver),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: resolvd (root) imports
// internal/*, but internal/* never imports resolvd (root). Public types
// (Platform, SolvedPackage, etc.) are standalone structs with no internal
// imports; the solver adapter lives here because this is the only file that
// sees both sides of the boundary.
package resolvd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/caldera-labs/resolvd/api"
	"github.com/caldera-labs/resolvd/internal/config"
	"github.com/caldera-labs/resolvd/internal/executor"
	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/platform"
	"github.com/caldera-labs/resolvd/internal/ratelimit"
	"github.com/caldera-labs/resolvd/internal/resolver"
	"github.com/caldera-labs/resolvd/internal/server"
	"github.com/caldera-labs/resolvd/internal/store"
	"github.com/caldera-labs/resolvd/internal/suite"
	"github.com/caldera-labs/resolvd/internal/telemetry"
)

// App is the resolvd server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	store        *store.Store
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the resolvd server. It wires the solver gateway, context
// store, executor, and suite manager, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.mode != "" {
		cfg.Mode = o.mode
	}
	if o.solverURL != "" {
		cfg.SolverURL = o.solverURL
	}
	if o.suitesDir != "" {
		cfg.SuitesDir = o.suitesDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config overrides: %w", err)
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("resolvd starting", "version", version, "port", cfg.Port, "mode", cfg.Mode)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Platform propagator. cfg.Validate already pinned Mode to local/remote.
	mode, _, err := platform.ParseMode(cfg.Mode)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("platform: %w", err)
	}
	propagator := platform.New(mode)

	// Solver: an external override takes priority over the HTTP solver.
	var solver resolver.Solver
	if o.solver != nil {
		solver = &solverAdapter{s: o.solver}
		logger.Info("solver: external (injected)")
	} else {
		solver = resolver.NewHTTPSolver(cfg.SolverURL, cfg.SolverTimeout)
		logger.Info("solver: http", "url", cfg.SolverURL, "timeout", cfg.SolverTimeout)
	}
	gateway := resolver.NewGateway(solver, cfg.SolverTimeout, logger)

	// Context store with TTL eviction.
	st := store.New(gateway, store.Options{
		TTL:           cfg.ContextTTL,
		SweepInterval: cfg.ContextSweep,
		CacheSize:     cfg.ContextCacheSize,
		Logger:        logger,
	})

	// Command executor.
	exec := executor.New(st, executor.Options{
		DefaultTimeout: cfg.ExecDefaultTimeout,
		MaxTimeout:     cfg.ExecMaxTimeout,
		MaxOutputBytes: cfg.ExecMaxOutputBytes,
		BasePath:       cfg.ExecBasePath,
		Logger:         logger,
	})

	// Suite manager.
	if err := os.MkdirAll(cfg.SuitesDir, 0o750); err != nil {
		st.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("suites: create directory %s: %w", cfg.SuitesDir, err)
	}
	suites := suite.NewManager(st, cfg.SuitesDir, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitPerSecond, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Create HTTP server.
	srv := server.New(server.Config{
		Handlers: server.HandlersDeps{
			Store:               st,
			Executor:            exec,
			Suites:              suites,
			Gateway:             gateway,
			Propagator:          propagator,
			Logger:              logger,
			Version:             version,
			SolverURL:           cfg.SolverURL,
			MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		},
		Limiter:      limiter,
		OpenAPISpec:  api.OpenAPISpec,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &App{
		cfg:          cfg,
		store:        st,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server, then blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically; callers
// should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a graceful shutdown: stop accepting HTTP requests and
// drain in-flight ones, then stop the store's eviction sweep and close the
// rate limiter and OTEL provider. Running child processes are bounded by
// their own execution timeouts and finish within the HTTP drain.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("resolvd shutting down")

	httpCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	a.store.Close()
	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())

	a.logger.Info("resolvd stopped")
	return nil
}

// ── Adapters (defined here because this file imports both sides) ───────────────

// solverAdapter wraps a public resolvd.Solver to satisfy resolver.Solver.
// It converts internal model types to public resolvd types at the boundary.
type solverAdapter struct {
	s Solver
}

func (a *solverAdapter) Resolve(ctx context.Context, reqs model.RequirementSet, desc model.PlatformDescriptor) (resolver.Resolution, error) {
	res, err := a.s.Solve(ctx, reqs.Strings(), Platform{
		OS:             desc.OS,
		Arch:           desc.Arch,
		Platform:       desc.Platform,
		RuntimeVersion: desc.RuntimeVersion,
	})
	if err != nil {
		return resolver.Resolution{}, err
	}
	if res.Unsatisfiable {
		return resolver.Resolution{Failure: &resolver.SolveFailure{
			Description: res.FailureDescription,
			Conflicts:   res.Conflicts,
		}}, nil
	}

	entries := make([]model.ResolvedPackageEntry, len(res.Packages))
	for i, sp := range res.Packages {
		entries[i] = toInternalEntry(sp)
	}
	return resolver.Resolution{Packages: entries}, nil
}

// ── Type converters ────────────────────────────────────────────────────────────

// toInternalEntry converts a public SolvedPackage to the internal package
// union. Lives here because this is the only file that imports both sides of
// the boundary.
func toInternalEntry(sp SolvedPackage) model.ResolvedPackageEntry {
	pkg := model.Package{
		Name:        sp.Name,
		Version:     sp.Version,
		Description: sp.Description,
		InstallPath: sp.InstallPath,
		Tools:       sp.Tools,
		Requires:    sp.Requires,
	}
	if sp.VariantIndex != nil {
		return model.PackageVariant{
			Parent:  pkg,
			Index:   *sp.VariantIndex,
			Subpath: sp.VariantSubpath,
		}
	}
	return pkg
}
