package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a core component may surface to its
// caller. Components never return an untyped error across their boundary;
// the HTTP layer maps each kind to a status code.
type ErrorKind string

const (
	// KindValidation is a malformed requirement or platform descriptor.
	// Client fault, no retry implied.
	KindValidation ErrorKind = "validation_error"
	// KindUnsatisfiable means the solver found no solution. Client fault.
	KindUnsatisfiable ErrorKind = "unsatisfiable_constraints"
	// KindResolverUnavailable is a solver transport or internal failure.
	// Service fault, safe to retry.
	KindResolverUnavailable ErrorKind = "resolver_unavailable"
	// KindResolverTimeout means the solver exceeded its configured deadline.
	// Service fault, safe to retry.
	KindResolverTimeout ErrorKind = "resolver_timeout"
	// KindNotFound is an unknown context or suite id.
	KindNotFound ErrorKind = "not_found"
	// KindNotReady means the context exists but is not resolved.
	KindNotReady ErrorKind = "not_ready"
	// KindToolNotFound means the suite has no binding for the tool name.
	KindToolNotFound ErrorKind = "tool_not_found"
	// KindStaleReference means a suite references a context that no longer
	// exists in the store.
	KindStaleReference ErrorKind = "stale_reference"
	// KindInternal is an unexpected failure inside the service.
	KindInternal ErrorKind = "internal_error"
)

// Error is the typed error returned by all core components.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errf constructs a typed error with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail key to the error and returns it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the ErrorKind from err. Untyped errors report KindInternal
// so a missed wrapping never leaks a generic error to callers.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
