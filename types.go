package resolvd

// Platform describes the target platform a requirement set is resolved for.
// It is a curated view of the internal descriptor for use in extension
// interfaces. No internal package imports, so it is safe to use from outside the
// module.
type Platform struct {
	OS             string
	Arch           string
	Platform       string
	RuntimeVersion string
}

// SolvedPackage is one resolved package reported by an external solver.
// VariantIndex is nil for plain packages; a non-nil index marks a build
// variant whose payload lives under VariantSubpath inside InstallPath.
type SolvedPackage struct {
	Name           string
	Version        string
	Description    string
	InstallPath    string
	Tools          []string
	Requires       []string
	VariantIndex   *int
	VariantSubpath string
}

// SolveResult is an external solver's answer for one requirement set.
// Packages must be in dependency order; the order is preserved downstream
// for deterministic environment construction.
type SolveResult struct {
	Packages []SolvedPackage

	// Unsatisfiable reports that the constraints cannot be met. When set,
	// FailureDescription and Conflicts carry the reason and Packages is
	// ignored.
	Unsatisfiable      bool
	FailureDescription string
	Conflicts          []string
}
