// Package resolvd provides a Go client for the resolvd environment
// resolution API.
package resolvd

import (
	"errors"
	"fmt"
)

// Error represents an error from the resolvd API with the HTTP status code
// and the server's error code and message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolvd: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 (unknown context, suite, or
// tool).
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsUnsatisfiable returns true if the error is a 422, the status the server
// uses for requirement sets the solver cannot satisfy.
func IsUnsatisfiable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 422
	}
	return false
}

// IsValidation returns true if the error is a 400.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 400
	}
	return false
}

// IsConflict returns true if the error is a 409 (context not ready, or a
// stale suite reference).
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 409
	}
	return false
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}

// IsSolverUnavailable returns true if the error is a 502 or 504, the
// statuses the server uses when the upstream solver is down or timing out.
func IsSolverUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 502 || e.StatusCode == 504
	}
	return false
}
