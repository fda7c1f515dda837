package resolvd

import "context"

// Solver resolves a requirement list into a concrete package set for a
// platform. Implementations must be safe for concurrent use; calls may take
// seconds and must honor ctx cancellation.
//
// Return an error only for infrastructure problems (the solver is down,
// timed out, answered garbage). An unsatisfiable requirement set is a valid
// answer: report it through SolveResult.Unsatisfiable so the caller gets a
// failed context to inspect rather than an opaque error.
type Solver interface {
	Solve(ctx context.Context, requirements []string, platform Platform) (SolveResult, error)
}
