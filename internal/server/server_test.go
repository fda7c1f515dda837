package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldera-labs/resolvd/internal/executor"
	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/platform"
	"github.com/caldera-labs/resolvd/internal/ratelimit"
	"github.com/caldera-labs/resolvd/internal/resolver"
	"github.com/caldera-labs/resolvd/internal/store"
	"github.com/caldera-labs/resolvd/internal/suite"
)

type scriptedSolver struct {
	calls atomic.Int32
}

func (s *scriptedSolver) Resolve(_ context.Context, reqs model.RequirementSet, _ model.PlatformDescriptor) (resolver.Resolution, error) {
	s.calls.Add(1)
	if reqs[0].Name == "impossible" {
		return resolver.Resolution{Failure: &resolver.SolveFailure{
			Description: "impossible conflicts with itself",
			Conflicts:   []string{"impossible"},
		}}, nil
	}
	name := reqs[0].Name
	return resolver.Resolution{Packages: []model.ResolvedPackageEntry{
		model.Package{Name: name, Version: "1.0.0", InstallPath: "/opt/pkgs/" + name + "/1.0.0", Tools: []string{name}},
	}}, nil
}

type testEnv struct {
	srv    *httptest.Server
	solver *scriptedSolver
}

func newTestEnv(t *testing.T, mode platform.Mode, limiter ratelimit.Limiter) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	solver := &scriptedSolver{}
	gateway := resolver.NewGateway(solver, time.Second, logger)
	st := store.New(gateway, store.Options{Logger: logger})
	t.Cleanup(st.Close)
	exec := executor.New(st, executor.Options{BasePath: "/usr/bin:/bin", Logger: logger})
	suites := suite.NewManager(st, t.TempDir(), logger)

	s := New(Config{
		Handlers: HandlersDeps{
			Store:               st,
			Executor:            exec,
			Suites:              suites,
			Gateway:             gateway,
			Propagator:          platform.New(mode),
			Logger:              logger,
			Version:             "test",
			SolverURL:           "http://solver.internal:8191",
			MaxRequestBodyBytes: 1 << 20,
		},
		Limiter: limiter,
	})

	httpSrv := httptest.NewServer(s.Handler())
	t.Cleanup(httpSrv.Close)
	return &testEnv{srv: httpSrv, solver: solver}
}

type envelope struct {
	Data  json.RawMessage   `json:"data"`
	Error model.ErrorDetail `json:"error"`
	Meta  model.ResponseMeta
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestResolveGetExecuteDelete(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"python-3.11"}}, nil)
	require.Equal(t, http.StatusOK, status)
	ctx := decodeData[model.ContextView](t, env)
	assert.Equal(t, model.StatusResolved, ctx.Status)
	assert.NotEmpty(t, env.Meta.RequestID)
	require.Len(t, ctx.Packages, 1)
	assert.Equal(t, "python", ctx.Packages[0].Name)

	status, env = e.do(t, http.MethodGet, "/api/v1/environments/"+ctx.ID, nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ctx.ID, decodeData[model.ContextView](t, env).ID)

	status, env = e.do(t, http.MethodGet, "/api/v1/environments", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]model.ContextView](t, env), 1)

	status, env = e.do(t, http.MethodPost, "/api/v1/environments/"+ctx.ID+"/execute",
		model.ExecuteRequest{Command: "sh", Args: []string{"-c", "echo hello"}}, nil)
	require.Equal(t, http.StatusOK, status)
	exec := decodeData[model.ExecuteResponse](t, env)
	assert.Equal(t, 0, exec.ExitCode)
	assert.Equal(t, "hello\n", exec.Stdout)

	status, _ = e.do(t, http.MethodDelete, "/api/v1/environments/"+ctx.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, env = e.do(t, http.MethodGet, "/api/v1/environments/"+ctx.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(model.KindNotFound), env.Error.Code)
}

func TestResolveReusesContext(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	_, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"maya"}}, nil)
	first := decodeData[model.ContextView](t, env)
	_, env = e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"maya"}}, nil)
	second := decodeData[model.ContextView](t, env)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), e.solver.calls.Load())
}

func TestResolveValidationNeverReachesSolver(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"not a package!"}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(model.KindValidation), env.Error.Code)
	assert.Zero(t, e.solver.calls.Load())

	status, env = e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Zero(t, e.solver.calls.Load())
}

func TestResolveUnsatisfiable(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"impossible"}}, nil)
	require.Equal(t, http.StatusOK, status)
	ctx := decodeData[model.ContextView](t, env)
	assert.Equal(t, model.StatusFailed, ctx.Status)
	require.NotNil(t, ctx.Failure)
	assert.Equal(t, model.KindUnsatisfiable, ctx.Failure.Kind)
}

func TestRemoteModeRequiresPlatform(t *testing.T) {
	e := newTestEnv(t, platform.ModeRemote, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"python"}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(model.KindValidation), env.Error.Code)
	assert.Zero(t, e.solver.calls.Load(), "platform validation precedes the solver")

	status, env = e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{
			Packages: []string{"python"},
			Platform: &model.PlatformDescriptor{OS: "linux", Arch: "aarch64"},
		}, nil)
	require.Equal(t, http.StatusOK, status)
	ctx := decodeData[model.ContextView](t, env)
	assert.Equal(t, "aarch64", ctx.Platform.Arch)
}

func TestModeOverrideHeader(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	// A local-mode server handles this request as remote and now requires a
	// descriptor.
	status, _ := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"python"}},
		map[string]string{ModeHeader: "remote"})
	assert.Equal(t, http.StatusBadRequest, status)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/v1/environments/resolve",
		bytes.NewBufferString(`{"packages":["python"]}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "local", resp.Header.Get(ModeHeader))
}

func TestExecuteTimeoutAndErrors(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	_, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"python"}}, nil)
	ctx := decodeData[model.ContextView](t, env)

	status, env := e.do(t, http.MethodPost, "/api/v1/environments/"+ctx.ID+"/execute",
		model.ExecuteRequest{Command: "sh", Args: []string{"-c", "echo partial; sleep 30"}, TimeoutSeconds: 1}, nil)
	require.Equal(t, http.StatusOK, status)
	exec := decodeData[model.ExecuteResponse](t, env)
	assert.True(t, exec.TimedOut)
	assert.Contains(t, exec.Stdout, "partial")

	status, env = e.do(t, http.MethodPost, "/api/v1/environments/missing/execute",
		model.ExecuteRequest{Command: "sh"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(model.KindNotFound), env.Error.Code)
}

func TestSuiteFlow(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	_, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"maya"}}, nil)
	ctx := decodeData[model.ContextView](t, env)

	status, env := e.do(t, http.MethodPost, "/api/v1/suites",
		model.CreateSuiteRequest{Name: "animation", Description: "dcc tools"}, nil)
	require.Equal(t, http.StatusCreated, status)
	s := decodeData[model.SuiteView](t, env)
	assert.Equal(t, model.SuiteBuilding, s.Status)

	status, env = e.do(t, http.MethodPost, "/api/v1/suites/"+s.ID+"/contexts",
		model.AddSuiteContextRequest{ContextID: ctx.ID}, nil)
	require.Equal(t, http.StatusOK, status)
	s = decodeData[model.SuiteView](t, env)
	assert.Contains(t, s.Tools, "maya")

	status, env = e.do(t, http.MethodPost, "/api/v1/suites/"+s.ID+"/tools/alias",
		model.AliasToolRequest{Tool: "maya", Alias: "maya2024"}, nil)
	require.Equal(t, http.StatusOK, status)
	s = decodeData[model.SuiteView](t, env)
	assert.Contains(t, s.Tools, "maya2024")
	assert.NotContains(t, s.Tools, "maya")

	status, env = e.do(t, http.MethodGet, "/api/v1/suites/"+s.ID+"/tools", nil, nil)
	require.Equal(t, http.StatusOK, status)
	tools := decodeData[model.SuiteToolsResponse](t, env)
	assert.Equal(t, 1, tools.TotalTools)

	status, env = e.do(t, http.MethodPost, "/api/v1/suites/"+s.ID+"/save",
		model.SaveSuiteRequest{}, nil)
	require.Equal(t, http.StatusOK, status)
	s = decodeData[model.SuiteView](t, env)
	assert.Equal(t, model.SuiteSaved, s.Status)
	assert.NotEmpty(t, s.SavePath)

	status, env = e.do(t, http.MethodPost, "/api/v1/suites/load",
		model.LoadSuiteRequest{Path: s.SavePath}, nil)
	require.Equal(t, http.StatusCreated, status)
	loaded := decodeData[model.SuiteView](t, env)
	assert.Equal(t, "animation", loaded.Name)
	assert.NotEqual(t, s.ID, loaded.ID)
	assert.Contains(t, loaded.Tools, "maya2024")

	status, _ = e.do(t, http.MethodDelete, "/api/v1/suites/"+s.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, env = e.do(t, http.MethodPost, "/api/v1/suites/"+s.ID+"/contexts",
		model.AddSuiteContextRequest{ContextID: ctx.ID}, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(model.KindNotFound), env.Error.Code)
}

func TestSuiteToolNotFound(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	_, env := e.do(t, http.MethodPost, "/api/v1/suites",
		model.CreateSuiteRequest{Name: "empty"}, nil)
	s := decodeData[model.SuiteView](t, env)

	status, env := e.do(t, http.MethodPost, "/api/v1/suites/"+s.ID+"/tools/alias",
		model.AliasToolRequest{Tool: "nuke", Alias: "nk"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(model.KindToolNotFound), env.Error.Code)
}

func TestValidateEndpoint(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/resolver/validate",
		model.ValidateRequest{Packages: []string{"python-3.11", "bad name!"}}, nil)
	require.Equal(t, http.StatusOK, status)
	res := decodeData[model.ValidateResponse](t, env)
	assert.False(t, res.AllValid)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].Valid)
	assert.Equal(t, "python", res.Results[0].ParsedName)
	assert.False(t, res.Results[1].Valid)
	assert.Zero(t, e.solver.calls.Load(), "validation is pure parsing")
}

func TestConflictsEndpoint(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/resolver/conflicts",
		model.ConflictsRequest{Packages: []string{"impossible"}}, nil)
	require.Equal(t, http.StatusOK, status)
	res := decodeData[model.ConflictsResponse](t, env)
	assert.True(t, res.HasConflicts)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "unsatisfiable", res.Conflicts[0].Type)

	status, env = e.do(t, http.MethodPost, "/api/v1/resolver/conflicts",
		model.ConflictsRequest{Packages: []string{"python"}}, nil)
	require.Equal(t, http.StatusOK, status)
	res = decodeData[model.ConflictsResponse](t, env)
	assert.False(t, res.HasConflicts)
	assert.Equal(t, "resolved", res.ResolutionStatus)

	// Dry runs never create contexts.
	_, env = e.do(t, http.MethodGet, "/api/v1/environments", nil, nil)
	assert.Empty(t, decodeData[[]model.ContextView](t, env))
}

func TestSystemStatusAndHealth(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	_, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"python"}}, nil)
	require.NotEmpty(t, env.Data)

	status, env := e.do(t, http.MethodGet, "/api/v1/system/status", nil, nil)
	require.Equal(t, http.StatusOK, status)
	sys := decodeData[model.SystemStatusResponse](t, env)
	assert.Equal(t, "ok", sys.Status)
	assert.Equal(t, "local", sys.Mode)
	assert.Equal(t, 1, sys.ActiveContexts)
	assert.Equal(t, "http://solver.internal:8191", sys.Solver)

	status, env = e.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, status)
	health := decodeData[model.HealthResponse](t, env)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestUnknownFieldsRejected(t *testing.T) {
	e := newTestEnv(t, platform.ModeLocal, nil)

	status, env := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		map[string]any{"packages": []string{"python"}, "bogus": true}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(model.KindValidation), env.Error.Code)
}

func TestRateLimitAppliesToResolve(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	t.Cleanup(func() { _ = limiter.Close() })
	e := newTestEnv(t, platform.ModeLocal, limiter)

	status, _ := e.do(t, http.MethodPost, "/api/v1/environments/resolve",
		model.ResolveRequest{Packages: []string{"python"}}, nil)
	require.Equal(t, http.StatusOK, status)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/v1/environments/resolve",
		bytes.NewBufferString(`{"packages":["maya"]}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Unlimited routes keep working.
	status, _ = e.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}
