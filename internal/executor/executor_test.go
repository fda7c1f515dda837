package executor

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/resolver"
	"github.com/caldera-labs/resolvd/internal/store"
)

var testPlatform = model.PlatformDescriptor{OS: "linux", Arch: "x86_64", Platform: "linux-x86_64"}

type stubSolver struct {
	res resolver.Resolution
}

func (s *stubSolver) Resolve(context.Context, model.RequirementSet, model.PlatformDescriptor) (resolver.Resolution, error) {
	return s.res, nil
}

// newTestExecutor returns an executor plus a resolved context id. The context
// PATH points at a fictional install root; BasePath keeps a real shell
// reachable.
func newTestExecutor(t *testing.T, opts Options) (*Executor, string) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	solver := &stubSolver{res: resolver.Resolution{Packages: []model.ResolvedPackageEntry{
		model.Package{Name: "python", Version: "3.11.4", InstallPath: "/opt/pkgs/python/3.11.4", Tools: []string{"python"}},
	}}}
	st := store.New(resolver.NewGateway(solver, time.Second, logger), store.Options{Logger: logger})
	t.Cleanup(st.Close)

	c, err := st.Create(context.Background(), []string{"python-3.11"}, testPlatform)
	require.NoError(t, err)

	if opts.BasePath == "" {
		opts.BasePath = "/usr/bin:/bin"
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return New(st, opts), c.ID
}

func TestExecuteCapturesOutputAndExitCode(t *testing.T) {
	e, id := newTestExecutor(t, Options{})

	res, err := e.Execute(context.Background(), id, "sh", []string{"-c", "echo out; echo err >&2; exit 3"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.TimedOut)
	assert.False(t, res.Truncated)
	assert.Positive(t, res.Duration)
}

func TestExecuteSeesContextEnvOnly(t *testing.T) {
	e, id := newTestExecutor(t, Options{})

	res, err := e.Execute(context.Background(), id, "sh",
		[]string{"-c", `printf '%s|%s' "$RESOLVD_PYTHON_VERSION" "$HOME"`}, time.Second)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	version, home, _ := strings.Cut(res.Stdout, "|")
	assert.Equal(t, "3.11.4", version)
	assert.Empty(t, home, "host environment must not leak into the child")
}

func TestExecuteTimeoutReturnsPartialOutput(t *testing.T) {
	e, id := newTestExecutor(t, Options{})

	start := time.Now()
	res, err := e.Execute(context.Background(), id, "sh",
		[]string{"-c", "echo partial; sleep 30"}, 200*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stdout, "partial")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteTruncatesOutput(t *testing.T) {
	e, id := newTestExecutor(t, Options{MaxOutputBytes: 64})

	res, err := e.Execute(context.Background(), id, "sh",
		[]string{"-c", `printf '%01000d' 0`}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Truncated)
	assert.True(t, strings.HasSuffix(res.Stdout, TruncationMarker))
	assert.Len(t, res.Stdout, 64+len(TruncationMarker))
}

func TestExecuteErrors(t *testing.T) {
	e, id := newTestExecutor(t, Options{})

	_, err := e.Execute(context.Background(), "missing", "sh", nil, time.Second)
	assert.Equal(t, model.KindNotFound, model.KindOf(err))

	_, err = e.Execute(context.Background(), id, "", nil, time.Second)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = e.Execute(context.Background(), id, "definitely-not-a-tool", nil, time.Second)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestExecuteNotReady(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	solver := &stubSolver{res: resolver.Resolution{Failure: &resolver.SolveFailure{Description: "conflict"}}}
	st := store.New(resolver.NewGateway(solver, time.Second, logger), store.Options{Logger: logger})
	t.Cleanup(st.Close)

	c, err := st.Create(context.Background(), []string{"python-2"}, testPlatform)
	require.NoError(t, err)

	e := New(st, Options{BasePath: "/usr/bin:/bin", Logger: logger})
	_, err = e.Execute(context.Background(), c.ID, "sh", nil, time.Second)
	assert.Equal(t, model.KindNotReady, model.KindOf(err))
}
