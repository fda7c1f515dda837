package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/caldera-labs/resolvd/internal/executor"
	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/platform"
	"github.com/caldera-labs/resolvd/internal/resolver"
	"github.com/caldera-labs/resolvd/internal/store"
	"github.com/caldera-labs/resolvd/internal/suite"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               *store.Store
	exec                *executor.Executor
	suites              *suite.Manager
	gateway             *resolver.Gateway
	propagator          *platform.Propagator
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	solverURL           string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
type HandlersDeps struct {
	Store               *store.Store
	Executor            *executor.Executor
	Suites              *suite.Manager
	Gateway             *resolver.Gateway
	Propagator          *platform.Propagator
	Logger              *slog.Logger
	Version             string
	SolverURL           string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:               d.Store,
		exec:                d.Executor,
		suites:              d.Suites,
		gateway:             d.Gateway,
		propagator:          d.Propagator,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		solverURL:           d.SolverURL,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// requestPlatform determines the effective platform descriptor for one
// request, honoring the mode override header, and reports the effective mode
// back on the response.
func (h *Handlers) requestPlatform(w http.ResponseWriter, r *http.Request, supplied *model.PlatformDescriptor) (model.PlatformDescriptor, error) {
	override := r.Header.Get(ModeHeader)
	mode := h.propagator.Mode()
	if m, ok, err := platform.ParseMode(override); err != nil {
		return model.PlatformDescriptor{}, err
	} else if ok {
		mode = m
	}
	w.Header().Set(ModeHeader, string(mode))
	return h.propagator.Effective(override, supplied)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleSystemStatus handles GET /api/v1/system/status.
func (h *Handlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(ModeHeader, string(h.propagator.Mode()))
	writeJSON(w, r, http.StatusOK, model.SystemStatusResponse{
		Status:         "ok",
		Version:        h.version,
		Mode:           string(h.propagator.Mode()),
		Platform:       h.propagator.Host(),
		ActiveContexts: h.store.Len(),
		ActiveSuites:   h.suites.Len(),
		Solver:         h.solverURL,
	})
}

// HandleValidate handles POST /api/v1/resolver/validate. Pure parsing; the
// solver is never consulted.
func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}
	if len(req.Packages) == 0 {
		writeKindError(w, r, model.Errf(model.KindValidation, "packages must not be empty"))
		return
	}

	results := h.gateway.ValidateRequirements(req.Packages)
	allValid := true
	for _, res := range results {
		if !res.Valid {
			allValid = false
			break
		}
	}
	writeJSON(w, r, http.StatusOK, model.ValidateResponse{AllValid: allValid, Results: results})
}

// HandleConflicts handles POST /api/v1/resolver/conflicts: a dry-run solve
// that reports unsatisfiable constraints without creating a context.
func (h *Handlers) HandleConflicts(w http.ResponseWriter, r *http.Request) {
	var req model.ConflictsRequest
	if err := decodeJSON(w, r, h.maxRequestBodyBytes, &req); err != nil {
		writeKindError(w, r, err)
		return
	}

	desc, err := h.requestPlatform(w, r, req.Platform)
	if err != nil {
		writeKindError(w, r, err)
		return
	}
	set, err := h.gateway.ParseRequirements(req.Packages)
	if err != nil {
		writeKindError(w, r, err)
		return
	}

	_, err = h.gateway.Resolve(r.Context(), set, desc)
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, model.ConflictsResponse{
			Conflicts:        []model.ConflictInfo{},
			ResolutionStatus: "resolved",
		})
	case model.IsKind(err, model.KindUnsatisfiable):
		writeJSON(w, r, http.StatusOK, model.ConflictsResponse{
			HasConflicts: true,
			Conflicts: []model.ConflictInfo{{
				Type:        "unsatisfiable",
				Description: err.Error(),
				Packages:    set.Strings(),
			}},
			ResolutionStatus: "failed",
		})
	default:
		writeKindError(w, r, err)
	}
}
