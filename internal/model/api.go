package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error. Code is the ErrorKind string of the
// underlying typed error.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ResolveRequest is the request body for POST /api/v1/environments/resolve.
// Platform is required in remote mode and ignored in local mode.
type ResolveRequest struct {
	Packages []string            `json:"packages"`
	Platform *PlatformDescriptor `json:"platform,omitempty"`
}

// PackageView is the API projection of one resolved package entry.
type PackageView struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description,omitempty"`
	InstallPath  string   `json:"install_path,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	VariantIndex *int     `json:"variant_index,omitempty"`
}

// NewPackageView projects a resolved entry into its API form.
func NewPackageView(entry ResolvedPackageEntry) PackageView {
	def := entry.Definition()
	view := PackageView{
		Name:        def.Name,
		Version:     def.Version,
		Description: def.Description,
		InstallPath: entry.InstallRoot(),
		Tools:       def.Tools,
	}
	if v, ok := entry.(PackageVariant); ok {
		idx := v.Index
		view.VariantIndex = &idx
	}
	return view
}

// ContextView is the API projection of a Context.
type ContextView struct {
	ID           string             `json:"id"`
	Status       ContextStatus      `json:"status"`
	Requirements []string           `json:"requirements"`
	Platform     PlatformDescriptor `json:"platform"`
	Packages     []PackageView      `json:"packages"`
	Failure      *FailureReason     `json:"failure,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewContextView projects a Context into its API form.
func NewContextView(c Context) ContextView {
	views := make([]PackageView, len(c.Packages))
	for i, entry := range c.Packages {
		views[i] = NewPackageView(entry)
	}
	return ContextView{
		ID:           c.ID,
		Status:       c.Status,
		Requirements: c.Requirements.Strings(),
		Platform:     c.Platform,
		Packages:     views,
		Failure:      c.Failure,
		CreatedAt:    c.CreatedAt,
	}
}

// ExecuteRequest is the request body for POST /api/v1/environments/{id}/execute.
type ExecuteRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	// TimeoutSeconds bounds the execution; 0 uses the server default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ExecuteResponse is the API projection of an ExecutionResult.
type ExecuteResponse struct {
	ExitCode        int     `json:"exit_code"`
	Stdout          string  `json:"stdout"`
	Stderr          string  `json:"stderr"`
	DurationSeconds float64 `json:"duration_seconds"`
	TimedOut        bool    `json:"timed_out"`
	Truncated       bool    `json:"truncated,omitempty"`
}

// NewExecuteResponse projects an ExecutionResult into its API form.
func NewExecuteResponse(res ExecutionResult) ExecuteResponse {
	return ExecuteResponse{
		ExitCode:        res.ExitCode,
		Stdout:          res.Stdout,
		Stderr:          res.Stderr,
		DurationSeconds: res.Duration.Seconds(),
		TimedOut:        res.TimedOut,
		Truncated:       res.Truncated,
	}
}

// CreateSuiteRequest is the request body for POST /api/v1/suites.
type CreateSuiteRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AddSuiteContextRequest is the request body for POST /api/v1/suites/{id}/contexts.
type AddSuiteContextRequest struct {
	ContextID string `json:"context_id"`
}

// AliasToolRequest is the request body for POST /api/v1/suites/{id}/tools/alias.
type AliasToolRequest struct {
	Tool  string `json:"tool"`
	Alias string `json:"alias"`
}

// SaveSuiteRequest is the request body for POST /api/v1/suites/{id}/save.
// Path may be empty: the suite is then saved under the configured suites
// directory using its name.
type SaveSuiteRequest struct {
	Path string `json:"path,omitempty"`
}

// LoadSuiteRequest is the request body for POST /api/v1/suites/load.
type LoadSuiteRequest struct {
	Path string `json:"path"`
}

// SuiteView is the API projection of a Suite.
type SuiteView struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Status      SuiteStatus            `json:"status"`
	Contexts    []string               `json:"contexts"`
	Tools       map[string]ToolBinding `json:"tools"`
	SavePath    string                 `json:"save_path,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewSuiteView projects a Suite into its API form.
func NewSuiteView(s Suite) SuiteView {
	contexts := s.ContextIDs
	if contexts == nil {
		contexts = []string{}
	}
	tools := s.Bindings
	if tools == nil {
		tools = map[string]ToolBinding{}
	}
	return SuiteView{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Status:      s.Status,
		Contexts:    contexts,
		Tools:       tools,
		SavePath:    s.SavePath,
		CreatedAt:   s.CreatedAt,
	}
}

// SuiteToolsResponse is the response for GET /api/v1/suites/{id}/tools.
type SuiteToolsResponse struct {
	Tools      []ToolStatus `json:"tools"`
	TotalTools int          `json:"total_tools"`
	// Conflicts lists tool names that collided across contexts; the shadowed
	// bindings appear in Tools with their Shadowed flag set.
	Conflicts []string `json:"conflicts"`
}

// ValidateRequest is the request body for POST /api/v1/resolver/validate.
type ValidateRequest struct {
	Packages []string `json:"packages"`
}

// RequirementValidation is the per-entry result of a validation request.
type RequirementValidation struct {
	Requirement string `json:"requirement"`
	Valid       bool   `json:"valid"`
	ParsedName  string `json:"parsed_name,omitempty"`
	ParsedRange string `json:"parsed_range,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ValidateResponse is the response for POST /api/v1/resolver/validate.
type ValidateResponse struct {
	AllValid bool                    `json:"all_valid"`
	Results  []RequirementValidation `json:"results"`
}

// ConflictsRequest is the request body for POST /api/v1/resolver/conflicts.
type ConflictsRequest struct {
	Packages []string            `json:"packages"`
	Platform *PlatformDescriptor `json:"platform,omitempty"`
}

// ConflictInfo describes one detected resolution conflict.
type ConflictInfo struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Packages    []string `json:"packages"`
}

// ConflictsResponse is the response for POST /api/v1/resolver/conflicts.
type ConflictsResponse struct {
	HasConflicts     bool           `json:"has_conflicts"`
	Conflicts        []ConflictInfo `json:"conflicts"`
	ResolutionStatus string         `json:"resolution_status"`
}

// SystemStatusResponse is the response for GET /api/v1/system/status.
type SystemStatusResponse struct {
	Status         string             `json:"status"`
	Version        string             `json:"version"`
	Mode           string             `json:"mode"`
	Platform       PlatformDescriptor `json:"platform"`
	ActiveContexts int                `json:"active_contexts"`
	ActiveSuites   int                `json:"active_suites"`
	Solver         string             `json:"solver"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
