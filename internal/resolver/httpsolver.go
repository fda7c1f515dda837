package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caldera-labs/resolvd/internal/model"
)

// HTTPSolver talks to a solver daemon over its JSON API. This is the
// production implementation: the solver runs as a separate process (often on
// another host, colocated with the package repository) and this client posts
// one solve per request.
type HTTPSolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSolver creates a client for the solver at baseURL. The HTTP client
// timeout is a transport-level backstop; per-solve deadlines come from the
// caller's context.
func NewHTTPSolver(baseURL string, timeout time.Duration) *HTTPSolver {
	if baseURL == "" {
		baseURL = "http://localhost:8191"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type solveRequest struct {
	Requirements []string                 `json:"requirements"`
	Platform     model.PlatformDescriptor `json:"platform"`
}

type solvePackage struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Description    string   `json:"description,omitempty"`
	InstallPath    string   `json:"install_path,omitempty"`
	Tools          []string `json:"tools,omitempty"`
	Requires       []string `json:"requires,omitempty"`
	VariantIndex   *int     `json:"variant_index,omitempty"`
	VariantSubpath string   `json:"variant_subpath,omitempty"`
}

type solveResponse struct {
	Status   string         `json:"status"`
	Packages []solvePackage `json:"packages,omitempty"`
	Failure  *struct {
		Description string   `json:"description"`
		Conflicts   []string `json:"conflicts,omitempty"`
	} `json:"failure,omitempty"`
}

// Resolve posts one solve to the daemon and decodes the answer. A "failed"
// status is a normal outcome and comes back as Resolution.Failure; anything
// else that goes wrong is an error.
func (s *HTTPSolver) Resolve(ctx context.Context, reqs model.RequirementSet, platform model.PlatformDescriptor) (Resolution, error) {
	reqBody, err := json.Marshal(solveRequest{
		Requirements: reqs.Strings(),
		Platform:     platform,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("solver: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/solve", bytes.NewReader(reqBody))
	if err != nil {
		return Resolution{}, fmt.Errorf("solver: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Surface the context error so the gateway can classify timeouts.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Resolution{}, ctxErr
		}
		return Resolution{}, fmt.Errorf("solver: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Resolution{}, fmt.Errorf("solver: status %d: %s", resp.StatusCode, string(body))
	}

	var result solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Resolution{}, fmt.Errorf("solver: decode response: %w", err)
	}

	switch result.Status {
	case "failed":
		if result.Failure == nil {
			return Resolution{}, fmt.Errorf("solver: failed status without failure body")
		}
		return Resolution{Failure: &SolveFailure{
			Description: result.Failure.Description,
			Conflicts:   result.Failure.Conflicts,
		}}, nil
	case "solved":
		entries := make([]model.ResolvedPackageEntry, 0, len(result.Packages))
		for _, p := range result.Packages {
			entries = append(entries, p.entry())
		}
		return Resolution{Packages: entries}, nil
	default:
		return Resolution{}, fmt.Errorf("solver: unknown status %q", result.Status)
	}
}

func (p solvePackage) entry() model.ResolvedPackageEntry {
	def := model.Package{
		Name:        p.Name,
		Version:     p.Version,
		Description: p.Description,
		InstallPath: p.InstallPath,
		Tools:       p.Tools,
		Requires:    p.Requires,
	}
	if p.VariantIndex == nil {
		return def
	}
	return model.PackageVariant{Parent: def, Index: *p.VariantIndex, Subpath: p.VariantSubpath}
}
