package model

import (
	"maps"
	"slices"
	"time"
)

// ContextStatus is the lifecycle state of a resolved environment.
type ContextStatus string

const (
	// StatusPending means resolution is in flight.
	StatusPending ContextStatus = "pending"
	// StatusResolved means the solver produced a package set; Packages is
	// non-empty and Env is populated.
	StatusResolved ContextStatus = "resolved"
	// StatusFailed means resolution failed; FailureReason is set. Failed
	// contexts are retained only long enough to answer one status query.
	StatusFailed ContextStatus = "failed"
)

// FailureReason describes why a context failed to resolve.
type FailureReason struct {
	Kind        ErrorKind `json:"kind"`
	Description string    `json:"description"`
}

// Context is a resolved (or failing) package environment, addressable by an
// opaque id. Owned exclusively by the context store; immutable once status
// leaves pending except for LastUsedAt.
type Context struct {
	ID           string
	Requirements RequirementSet
	Platform     PlatformDescriptor
	Packages     []ResolvedPackageEntry
	Env          map[string]string
	Status       ContextStatus
	Failure      *FailureReason
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// Clone returns a deep copy safe to hand outside the store. Packages entries
// are immutable values, so the slice header copy is sufficient for them.
func (c Context) Clone() Context {
	out := c
	out.Requirements = slices.Clone(c.Requirements)
	out.Packages = slices.Clone(c.Packages)
	out.Env = maps.Clone(c.Env)
	if c.Failure != nil {
		f := *c.Failure
		out.Failure = &f
	}
	return out
}

// Tools returns every tool declared by the context's resolved packages, in
// package resolution order.
func (c Context) Tools() []string {
	var tools []string
	for _, entry := range c.Packages {
		tools = append(tools, entry.Definition().Tools...)
	}
	return tools
}
