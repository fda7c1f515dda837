// Package executor runs commands inside resolved package environments. Each
// execution works from a leased snapshot of the context, so deletes and
// eviction never pull the environment out from under a running process.
package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/store"
)

// TruncationMarker is appended to a stream that hit the output cap.
const TruncationMarker = "\n[output truncated]"

// Options tunes execution limits.
type Options struct {
	// DefaultTimeout applies when the request gives none. Defaults to 30s.
	DefaultTimeout time.Duration
	// MaxTimeout caps the per-request timeout. Defaults to 5m.
	MaxTimeout time.Duration
	// MaxOutputBytes caps each of stdout and stderr. Defaults to 1MiB.
	MaxOutputBytes int
	// BasePath is appended to the context PATH so shells and coreutils stay
	// reachable. The host process environment is never inherited.
	BasePath string
	// TmpDir becomes TMPDIR for the child. Defaults to os.TempDir().
	TmpDir string
	Logger *slog.Logger
}

// Executor runs commands against contexts held by the store.
type Executor struct {
	store *store.Store
	opts  Options
}

// New creates an executor over s.
func New(s *store.Store, opts Options) *Executor {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.MaxTimeout <= 0 {
		opts.MaxTimeout = 5 * time.Minute
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = 1 << 20
	}
	if opts.TmpDir == "" {
		opts.TmpDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{store: s, opts: opts}
}

// Execute runs command with args inside the context's environment. On timeout
// the process is killed and the partial output comes back with TimedOut set;
// a nonzero exit is a normal result, not an error. Errors are reserved for
// bad input and contexts that are missing or not resolved.
func (e *Executor) Execute(ctx context.Context, contextID, command string, args []string, timeout time.Duration) (model.ExecutionResult, error) {
	if strings.TrimSpace(command) == "" {
		return model.ExecutionResult{}, model.Errf(model.KindValidation, "command must not be empty")
	}
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	if timeout > e.opts.MaxTimeout {
		timeout = e.opts.MaxTimeout
	}

	lease, err := e.store.Snapshot(contextID)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	defer lease.Release()

	env := e.childEnv(lease.Context.Env)
	path, err := resolveCommand(command, envValue(env, "PATH"))
	if err != nil {
		return model.ExecutionResult{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := newCappedBuffer(e.opts.MaxOutputBytes)
	stderr := newCappedBuffer(e.opts.MaxOutputBytes)

	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Don't wait forever on inherited pipes after the kill.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := model.ExecutionResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  elapsed,
		Truncated: stdout.truncated || stderr.truncated,
	}

	switch {
	case runErr == nil:
		result.ExitCode = 0
	case runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = -1
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return model.ExecutionResult{}, model.Errf(model.KindInternal, "start %s: %v", command, runErr)
		}
	}

	e.opts.Logger.Info("command executed",
		slog.String("context_id", contextID),
		slog.String("command", command),
		slog.Int("exit_code", result.ExitCode),
		slog.Bool("timed_out", result.TimedOut),
		slog.Duration("elapsed", elapsed))
	return result, nil
}

// childEnv builds the process environment: the context env layered over a
// minimal base. The server's own environment is deliberately not inherited.
func (e *Executor) childEnv(ctxEnv map[string]string) []string {
	merged := map[string]string{
		"TMPDIR": e.opts.TmpDir,
	}
	for k, v := range ctxEnv {
		merged[k] = v
	}
	if e.opts.BasePath != "" {
		if p, ok := merged["PATH"]; ok && p != "" {
			merged["PATH"] = p + string(os.PathListSeparator) + e.opts.BasePath
		} else {
			merged["PATH"] = e.opts.BasePath
		}
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}

// resolveCommand finds the executable on the assembled PATH. Paths with a
// separator are used as-is. The host PATH plays no part in the lookup.
func resolveCommand(command, path string) (string, error) {
	if strings.ContainsRune(command, os.PathSeparator) {
		if isExecutable(command) {
			return command, nil
		}
		return "", model.Errf(model.KindValidation, "command %q not found", command)
	}
	for dir := range strings.SplitSeq(path, string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, command)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", model.Errf(model.KindValidation, "command %q not found in context environment", command)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// cappedBuffer accepts writes up to a byte limit and drops the rest, noting
// that it did. It never returns a write error, so the child keeps running
// after the cap is hit.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.truncated = true
		b.buf.Write(p[:remaining])
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + TruncationMarker
	}
	return b.buf.String()
}

func envValue(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}
