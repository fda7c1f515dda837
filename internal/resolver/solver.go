// Package resolver wraps the external package solver behind a typed gateway.
// The solver itself is an opaque collaborator: it accepts a requirement list
// plus platform descriptor and returns either a fully resolved package set or
// a structured failure reason. Everything long-lived (contexts, suites) is
// built on top by the store and suite packages.
package resolver

import (
	"context"

	"github.com/caldera-labs/resolvd/internal/model"
)

// Resolution is the solver's answer for one requirement set.
type Resolution struct {
	// Packages is the resolved set in solver dependency order. The order is
	// preserved downstream for deterministic environment construction.
	Packages []model.ResolvedPackageEntry
	// Failure is set instead of Packages when the constraints are
	// unsatisfiable. Transport and solver-internal errors are returned as
	// errors, not as a Failure.
	Failure *SolveFailure
}

// SolveFailure describes an unsatisfiable requirement set.
type SolveFailure struct {
	Description string
	Conflicts   []string
}

// Solver is the external dependency solver boundary. Implementations must be
// safe for concurrent use; calls may take seconds and must honor ctx
// cancellation.
type Solver interface {
	Resolve(ctx context.Context, reqs model.RequirementSet, platform model.PlatformDescriptor) (Resolution, error)
}
