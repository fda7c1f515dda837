package resolvd

import "time"

// Platform describes the target platform for a resolve request. Required in
// remote mode; ignored in local mode.
type Platform struct {
	OS             string `json:"os"`
	Arch           string `json:"arch"`
	Platform       string `json:"platform,omitempty"`
	RuntimeVersion string `json:"runtime_version,omitempty"`
}

// Package is one resolved package inside a context.
type Package struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description,omitempty"`
	InstallPath  string   `json:"install_path,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	VariantIndex *int     `json:"variant_index,omitempty"`
}

// FailureReason explains why a context is in the failed state.
type FailureReason struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// Context is a resolved (or failed) package environment. A failed context
// carries Failure instead of Packages and answers exactly one status query
// before the server drops it.
type Context struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Requirements []string       `json:"requirements"`
	Platform     Platform       `json:"platform"`
	Packages     []Package      `json:"packages"`
	Failure      *FailureReason `json:"failure,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ResolveRequest is the request for Resolve.
type ResolveRequest struct {
	Packages []string  `json:"packages"`
	Platform *Platform `json:"platform,omitempty"`
}

// ExecuteRequest is the request for Execute. TimeoutSeconds of zero uses the
// server default.
type ExecuteRequest struct {
	Command        string   `json:"command"`
	Args           []string `json:"args,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// ExecuteResult is the outcome of one command execution.
type ExecuteResult struct {
	ExitCode        int     `json:"exit_code"`
	Stdout          string  `json:"stdout"`
	Stderr          string  `json:"stderr"`
	DurationSeconds float64 `json:"duration_seconds"`
	TimedOut        bool    `json:"timed_out"`
	Truncated       bool    `json:"truncated,omitempty"`
}

// ToolBinding maps one exposed tool name to the context providing it.
type ToolBinding struct {
	Tool            string `json:"tool"`
	Alias           string `json:"alias,omitempty"`
	SourceContextID string `json:"source_context_id"`
}

// ToolStatus is a binding plus its live health flags.
type ToolStatus struct {
	ToolBinding
	Stale    bool `json:"stale,omitempty"`
	Shadowed bool `json:"shadowed,omitempty"`
}

// Suite is a named aggregation of contexts with a unified tool namespace.
type Suite struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Status      string                 `json:"status"`
	Contexts    []string               `json:"contexts"`
	Tools       map[string]ToolBinding `json:"tools"`
	SavePath    string                 `json:"save_path,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// SuiteTools is the full tool listing of a suite.
type SuiteTools struct {
	Tools      []ToolStatus `json:"tools"`
	TotalTools int          `json:"total_tools"`
	Conflicts  []string     `json:"conflicts"`
}

// RequirementValidation is the per-entry result of a Validate call.
type RequirementValidation struct {
	Requirement string `json:"requirement"`
	Valid       bool   `json:"valid"`
	ParsedName  string `json:"parsed_name,omitempty"`
	ParsedRange string `json:"parsed_range,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ValidateResult is the response for Validate.
type ValidateResult struct {
	AllValid bool                    `json:"all_valid"`
	Results  []RequirementValidation `json:"results"`
}

// ConflictInfo describes one detected resolution conflict.
type ConflictInfo struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Packages    []string `json:"packages"`
}

// ConflictsResult is the response for Conflicts.
type ConflictsResult struct {
	HasConflicts     bool           `json:"has_conflicts"`
	Conflicts        []ConflictInfo `json:"conflicts"`
	ResolutionStatus string         `json:"resolution_status"`
}

// SystemStatus is the response for SystemStatus.
type SystemStatus struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Mode           string   `json:"mode"`
	Platform       Platform `json:"platform"`
	ActiveContexts int      `json:"active_contexts"`
	ActiveSuites   int      `json:"active_suites"`
	Solver         string   `json:"solver"`
}

// Health is the response for Health.
type Health struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
