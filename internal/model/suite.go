package model

import "time"

// SuiteStatus is the lifecycle state of a suite.
type SuiteStatus string

const (
	// SuiteBuilding means the suite is mutable and has never been saved.
	SuiteBuilding SuiteStatus = "building"
	// SuiteSaved means the suite has been persisted at SavePath.
	SuiteSaved SuiteStatus = "saved"
)

// ToolBinding maps one exposed tool name to the context that provides it.
// Alias, when set, is the name the tool is exposed under instead of its
// natural name.
type ToolBinding struct {
	Tool            string `json:"tool"`
	Alias           string `json:"alias,omitempty"`
	SourceContextID string `json:"source_context_id"`
}

// Exposed returns the name the binding is reachable under.
func (b ToolBinding) Exposed() string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Tool
}

// ToolStatus is one entry in a suite tool listing. Stale marks a binding
// whose source context has vanished from the store; Shadowed marks a binding
// that lost a name collision to a later context (kept in the listing so the
// overwrite is observable).
type ToolStatus struct {
	ToolBinding
	Stale    bool `json:"stale,omitempty"`
	Shadowed bool `json:"shadowed,omitempty"`
}

// Suite is a named aggregation of contexts with a unified tool namespace.
// It references contexts by id and never owns their lifetime. ContextIDs
// insertion order is precedence order: later contexts win tool collisions.
type Suite struct {
	ID          string
	Name        string
	Description string
	ContextIDs  []string
	// Bindings is keyed by exposed tool name; exactly one binding per name.
	Bindings map[string]ToolBinding
	// Shadowed holds bindings overwritten by later contexts, in the order
	// they were displaced.
	Shadowed  []ToolBinding
	Status    SuiteStatus
	SavePath  string
	CreatedAt time.Time
}

// SuiteRecord is the persisted form of a suite: enough to reconstruct
// equivalent contexts after a restart. Context ids are process-scoped, so
// each entry carries the original requirement set and platform instead.
type SuiteRecord struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	SavedAt     time.Time          `yaml:"saved_at"`
	Contexts    []SuiteRecordEntry `yaml:"contexts"`
	Aliases     map[string]string  `yaml:"aliases,omitempty"`
}

// SuiteRecordEntry is one context reference in a persisted suite.
type SuiteRecordEntry struct {
	Requirements []string           `yaml:"requirements"`
	Platform     PlatformDescriptor `yaml:"platform"`
}
