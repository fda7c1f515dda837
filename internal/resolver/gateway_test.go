package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldera-labs/resolvd/internal/model"
)

var testPlatform = model.PlatformDescriptor{OS: "linux", Arch: "x86_64", Platform: "linux-x86_64"}

// fakeSolver counts calls and plays back a scripted answer.
type fakeSolver struct {
	calls int
	res   Resolution
	err   error
	block bool
}

func (f *fakeSolver) Resolve(ctx context.Context, _ model.RequirementSet, _ model.PlatformDescriptor) (Resolution, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return Resolution{}, ctx.Err()
	}
	return f.res, f.err
}

func mustParse(t *testing.T, raw ...string) model.RequirementSet {
	t.Helper()
	set, err := model.ParseRequirementSet(raw)
	require.NoError(t, err)
	return set
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGatewayValidatesBeforeSolver(t *testing.T) {
	fake := &fakeSolver{}
	g := NewGateway(fake, time.Second, testLogger())

	_, err := g.Resolve(context.Background(), nil, testPlatform)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = g.Resolve(context.Background(), mustParse(t, "python"), model.PlatformDescriptor{})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	assert.Zero(t, fake.calls, "solver must not run for invalid input")
}

func TestGatewayPreservesSolverOrder(t *testing.T) {
	fake := &fakeSolver{res: Resolution{Packages: []model.ResolvedPackageEntry{
		model.Package{Name: "platform_linux", Version: "1.0"},
		model.Package{Name: "python", Version: "3.11.4", InstallPath: "/opt/pkgs/python/3.11.4"},
		model.PackageVariant{Parent: model.Package{Name: "numpy", Version: "1.26"}, Index: 2, Subpath: "cp311"},
	}}}
	g := NewGateway(fake, time.Second, testLogger())

	res, err := g.Resolve(context.Background(), mustParse(t, "python-3.11", "numpy"), testPlatform)
	require.NoError(t, err)
	require.Len(t, res.Packages, 3)
	assert.Equal(t, "platform_linux", res.Packages[0].Definition().Name)
	assert.Equal(t, "python", res.Packages[1].Definition().Name)
	assert.Equal(t, "numpy", res.Packages[2].Definition().Name)
	assert.Equal(t, 1, fake.calls)
}

func TestGatewayUnsatisfiable(t *testing.T) {
	fake := &fakeSolver{res: Resolution{Failure: &SolveFailure{
		Description: "python-2 conflicts with python-3",
		Conflicts:   []string{"python-2", "python-3"},
	}}}
	g := NewGateway(fake, time.Second, testLogger())

	res, err := g.Resolve(context.Background(), mustParse(t, "python-2", "python-3"), testPlatform)
	require.Error(t, err)
	assert.Equal(t, model.KindUnsatisfiable, model.KindOf(err))
	assert.Contains(t, err.Error(), "conflicts with")
	require.NotNil(t, res.Failure)

	var terr *model.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "python-2; python-3", terr.Details["conflicts"])
}

func TestGatewayTimeout(t *testing.T) {
	fake := &fakeSolver{block: true}
	g := NewGateway(fake, 20*time.Millisecond, testLogger())

	_, err := g.Resolve(context.Background(), mustParse(t, "python"), testPlatform)
	require.Error(t, err)
	assert.Equal(t, model.KindResolverTimeout, model.KindOf(err))
}

func TestGatewayUnavailable(t *testing.T) {
	fake := &fakeSolver{err: errors.New("connection refused")}
	g := NewGateway(fake, time.Second, testLogger())

	_, err := g.Resolve(context.Background(), mustParse(t, "python"), testPlatform)
	require.Error(t, err)
	assert.Equal(t, model.KindResolverUnavailable, model.KindOf(err))
}

func TestGatewayEmptySolvedResolution(t *testing.T) {
	fake := &fakeSolver{}
	g := NewGateway(fake, time.Second, testLogger())

	_, err := g.Resolve(context.Background(), mustParse(t, "python"), testPlatform)
	require.Error(t, err)
	assert.Equal(t, model.KindResolverUnavailable, model.KindOf(err))
}

func TestValidateRequirements(t *testing.T) {
	g := NewGateway(&fakeSolver{}, time.Second, testLogger())

	results := g.ValidateRequirements([]string{"python-3.11", "maya>=2024", "bad name!"})
	require.Len(t, results, 3)

	assert.True(t, results[0].Valid)
	assert.Equal(t, "python", results[0].ParsedName)
	assert.Equal(t, "3.11", results[0].ParsedRange)

	assert.True(t, results[1].Valid)
	assert.Equal(t, "maya", results[1].ParsedName)
	assert.Equal(t, ">=2024", results[1].ParsedRange)

	assert.False(t, results[2].Valid)
	assert.NotEmpty(t, results[2].Error)
}

func TestHTTPSolverSolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/solve", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "solved",
			"packages": [
				{"name": "python", "version": "3.11.4", "install_path": "/opt/pkgs/python/3.11.4", "tools": ["python"]},
				{"name": "numpy", "version": "1.26.0", "install_path": "/opt/pkgs/numpy/1.26.0", "variant_index": 1, "variant_subpath": "cp311"}
			]
		}`))
	}))
	defer srv.Close()

	s := NewHTTPSolver(srv.URL, time.Second)
	res, err := s.Resolve(context.Background(), mustParse(t, "python-3.11", "numpy"), testPlatform)
	require.NoError(t, err)
	require.Len(t, res.Packages, 2)

	assert.IsType(t, model.Package{}, res.Packages[0])
	variant, ok := res.Packages[1].(model.PackageVariant)
	require.True(t, ok)
	assert.Equal(t, 1, variant.Index)
	assert.Equal(t, "/opt/pkgs/numpy/1.26.0/cp311", variant.InstallRoot())
}

func TestHTTPSolverFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "failed", "failure": {"description": "no version of maya satisfies >=2099", "conflicts": ["maya>=2099"]}}`))
	}))
	defer srv.Close()

	s := NewHTTPSolver(srv.URL, time.Second)
	res, err := s.Resolve(context.Background(), mustParse(t, "maya>=2099"), testPlatform)
	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.Contains(t, res.Failure.Description, "maya")
	assert.Equal(t, []string{"maya>=2099"}, res.Failure.Conflicts)
}

func TestHTTPSolverBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "solver exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSolver(srv.URL, time.Second)
	_, err := s.Resolve(context.Background(), mustParse(t, "python"), testPlatform)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
