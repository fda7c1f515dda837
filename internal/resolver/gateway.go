package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/caldera-labs/resolvd/internal/model"
)

// Gateway fronts a Solver with input validation, a per-call timeout, and
// failure classification. Callers never see raw solver errors: everything
// comes back as a typed model.Error or a Resolution.
type Gateway struct {
	solver  Solver
	timeout time.Duration
	logger  *slog.Logger
}

// NewGateway wraps solver. timeout bounds each solve call; zero disables the
// gateway-level bound (the caller's ctx still applies).
func NewGateway(solver Solver, timeout time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{solver: solver, timeout: timeout, logger: logger}
}

// ParseRequirements turns raw requirement strings into a validated set.
// Malformed input fails fast with a KindValidation error and the solver is
// never consulted.
func (g *Gateway) ParseRequirements(raw []string) (model.RequirementSet, error) {
	return model.ParseRequirementSet(raw)
}

// Resolve runs one solve. On unsatisfiable constraints it returns a
// KindUnsatisfiable error carrying the solver's description; timeouts map to
// KindResolverTimeout and transport failures to KindResolverUnavailable.
// Package order in the returned resolution is exactly the solver's order.
func (g *Gateway) Resolve(ctx context.Context, reqs model.RequirementSet, platform model.PlatformDescriptor) (Resolution, error) {
	if len(reqs) == 0 {
		return Resolution{}, model.Errf(model.KindValidation, "requirement set is empty")
	}
	if err := platform.Validate(); err != nil {
		return Resolution{}, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := g.solver.Resolve(ctx, reqs, platform)
	if err != nil {
		return Resolution{}, g.classify(err, reqs)
	}

	if res.Failure != nil {
		g.logger.Info("solve unsatisfiable",
			slog.Any("requirements", reqs.Strings()),
			slog.String("description", res.Failure.Description))
		ferr := model.Errf(model.KindUnsatisfiable, "%s", res.Failure.Description)
		if len(res.Failure.Conflicts) > 0 {
			ferr = ferr.WithDetail("conflicts", strings.Join(res.Failure.Conflicts, "; "))
		}
		return res, ferr
	}

	if len(res.Packages) == 0 {
		return Resolution{}, model.Errf(model.KindResolverUnavailable, "solver returned a solved resolution with no packages")
	}

	g.logger.Debug("solve complete",
		slog.Any("requirements", reqs.Strings()),
		slog.Int("packages", len(res.Packages)),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// ValidateRequirements reports per-requirement parse results without touching
// the solver. Used by the validation endpoint; never returns an error for
// malformed input.
func (g *Gateway) ValidateRequirements(raw []string) []model.RequirementValidation {
	out := make([]model.RequirementValidation, 0, len(raw))
	for _, s := range raw {
		v := model.RequirementValidation{Requirement: s}
		if req, err := model.ParseRequirement(s); err != nil {
			v.Error = err.Error()
		} else {
			v.Valid = true
			v.ParsedName = req.Name
			v.ParsedRange = req.Constraint
		}
		out = append(out, v)
	}
	return out
}

func (g *Gateway) classify(err error, reqs model.RequirementSet) error {
	// A typed error from a solver implementation passes through untouched.
	var terr *model.Error
	if errors.As(err, &terr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		g.logger.Warn("solve timed out", slog.Any("requirements", reqs.Strings()))
		return model.Errf(model.KindResolverTimeout, "solver did not answer within %s", g.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	g.logger.Error("solver unreachable", slog.String("error", err.Error()))
	return model.Errf(model.KindResolverUnavailable, "solver unavailable: %v", err)
}
