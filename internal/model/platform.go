// Package model defines the data model shared by all resolvd components:
// platform descriptors, requirements, contexts, suites, execution results,
// the typed error taxonomy, and the HTTP API request/response types.
package model

import "fmt"

// PlatformDescriptor identifies the platform a resolution or execution is
// performed against. Immutable value object: in local mode it is derived from
// the host once at startup, in remote mode it is supplied by the caller on
// each request.
type PlatformDescriptor struct {
	OS             string `json:"os" yaml:"os"`
	Arch           string `json:"arch" yaml:"arch"`
	Platform       string `json:"platform,omitempty" yaml:"platform,omitempty"`
	RuntimeVersion string `json:"runtime_version,omitempty" yaml:"runtime_version,omitempty"`
}

// Validate checks the descriptor for well-formedness. OS and Arch are
// required; the platform string and runtime version are informational.
func (p PlatformDescriptor) Validate() error {
	if p.OS == "" {
		return Errf(KindValidation, "platform descriptor: os is required")
	}
	if p.Arch == "" {
		return Errf(KindValidation, "platform descriptor: arch is required")
	}
	return nil
}

// String returns the canonical encoding used in resolution cache keys.
// Two descriptors are cache-equal iff their String values match.
func (p PlatformDescriptor) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", p.OS, p.Arch, p.Platform, p.RuntimeVersion)
}
