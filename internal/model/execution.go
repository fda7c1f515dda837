package model

import "time"

// ExecutionResult is the outcome of one command execution inside a context.
// Transient: returned once per request, never persisted.
type ExecutionResult struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"-"`
	// TimedOut marks an execution killed by its deadline. Partial output
	// captured before the kill is still present in Stdout/Stderr.
	TimedOut bool `json:"timed_out"`
	// Truncated marks output capped at the configured buffer limit.
	Truncated bool `json:"truncated,omitempty"`
}
