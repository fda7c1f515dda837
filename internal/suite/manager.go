// Package suite manages named aggregations of contexts with a unified tool
// namespace. Suites reference contexts by id and never own their lifetime;
// persistence stores requirement sets, not ids, so a saved suite can be
// rebuilt in any process.
package suite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/store"
)

// loadConcurrency bounds parallel context reconstruction during Load.
const loadConcurrency = 4

type suiteEntry struct {
	mu    sync.Mutex
	suite *model.Suite
	// aliases maps a tool's natural name to its exposed alias.
	aliases map[string]string
	// toolsByCtx caches each member context's tool list as observed when the
	// context was added, so bindings survive the context's later eviction.
	toolsByCtx map[string][]string
}

// Manager owns the suite table. Safe for concurrent use; operations on
// different suites proceed independently.
type Manager struct {
	store     *store.Store
	suitesDir string
	logger    *slog.Logger

	mu     sync.RWMutex
	suites map[string]*suiteEntry
}

// NewManager creates a manager persisting suites under suitesDir by default.
func NewManager(st *store.Store, suitesDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     st,
		suitesDir: suitesDir,
		logger:    logger,
		suites:    make(map[string]*suiteEntry),
	}
}

// Create makes an empty suite in the building state.
func (m *Manager) Create(name, description string) (model.Suite, error) {
	e, err := newEntry(name, description)
	if err != nil {
		return model.Suite{}, err
	}
	m.publish(e)

	m.logger.Info("suite created", slog.String("suite_id", e.suite.ID), slog.String("name", e.suite.Name))
	return cloneSuite(e.suite), nil
}

func newEntry(name, description string) (*suiteEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Errf(model.KindValidation, "suite name must not be empty")
	}
	return &suiteEntry{
		suite: &model.Suite{
			ID:          uuid.NewString(),
			Name:        name,
			Description: description,
			Bindings:    make(map[string]model.ToolBinding),
			Status:      model.SuiteBuilding,
			CreatedAt:   time.Now(),
		},
		aliases:    make(map[string]string),
		toolsByCtx: make(map[string][]string),
	}, nil
}

func (m *Manager) publish(e *suiteEntry) {
	m.mu.Lock()
	m.suites[e.suite.ID] = e
	m.mu.Unlock()
}

// Get returns a copy of the suite.
func (m *Manager) Get(id string) (model.Suite, error) {
	e, err := m.entry(id)
	if err != nil {
		return model.Suite{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSuite(e.suite), nil
}

// List returns copies of all suites, oldest first.
func (m *Manager) List() []model.Suite {
	m.mu.RLock()
	entries := make([]*suiteEntry, 0, len(m.suites))
	for _, e := range m.suites {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]model.Suite, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneSuite(e.suite))
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b model.Suite) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Delete removes the suite. Member contexts are untouched; saved files stay
// on disk.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.suites[id]
	delete(m.suites, id)
	m.mu.Unlock()

	if !ok {
		return model.Errf(model.KindNotFound, "suite %s not found", id)
	}
	m.logger.Info("suite deleted", slog.String("suite_id", id))
	return nil
}

// AddContext appends a resolved context to the suite and rebuilds the tool
// namespace. Later contexts win name collisions; displaced bindings are kept
// on the suite's shadowed list so the overwrite stays observable.
func (m *Manager) AddContext(id, contextID string) (model.Suite, error) {
	e, err := m.entry(id)
	if err != nil {
		return model.Suite{}, err
	}

	c, err := m.store.Get(contextID)
	if err != nil {
		return model.Suite{}, err
	}
	if c.Status != model.StatusResolved {
		return model.Suite{}, model.Errf(model.KindNotReady, "context %s is %s, not resolved", contextID, c.Status)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if slices.Contains(e.suite.ContextIDs, contextID) {
		return model.Suite{}, model.Errf(model.KindValidation, "context %s already in suite %s", contextID, id)
	}
	e.suite.ContextIDs = append(e.suite.ContextIDs, contextID)
	e.toolsByCtx[contextID] = c.Tools()
	e.rebuildBindings()

	m.logger.Info("suite context added",
		slog.String("suite_id", id),
		slog.String("context_id", contextID),
		slog.Int("tools", len(e.toolsByCtx[contextID])))
	return cloneSuite(e.suite), nil
}

// AliasTool exposes tool under alias. A second alias for the same tool
// replaces the first; the natural name is no longer exposed.
func (m *Manager) AliasTool(id, tool, alias string) (model.Suite, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return model.Suite{}, model.Errf(model.KindValidation, "alias must not be empty")
	}

	e, err := m.entry(id)
	if err != nil {
		return model.Suite{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.providesTool(tool) {
		return model.Suite{}, model.Errf(model.KindToolNotFound, "tool %q is not provided by any context in suite %s", tool, id)
	}
	e.aliases[tool] = alias
	e.rebuildBindings()

	m.logger.Info("suite tool aliased",
		slog.String("suite_id", id),
		slog.String("tool", tool),
		slog.String("alias", alias))
	return cloneSuite(e.suite), nil
}

// ListTools reports every tool provided by the suite's contexts in context
// order: winners, shadowed losers, and bindings whose source context has
// vanished from the store (stale). The second return lists exposed names
// claimed by more than one context.
func (m *Manager) ListTools(id string) ([]model.ToolStatus, []string, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stale := make(map[string]bool, len(e.suite.ContextIDs))
	for _, ctxID := range e.suite.ContextIDs {
		if _, err := m.store.Get(ctxID); err != nil {
			stale[ctxID] = true
		}
	}

	var (
		tools     []model.ToolStatus
		providers = make(map[string]int)
	)
	for _, ctxID := range e.suite.ContextIDs {
		for _, tool := range e.toolsByCtx[ctxID] {
			b := model.ToolBinding{Tool: tool, Alias: e.aliases[tool], SourceContextID: ctxID}
			exposed := b.Exposed()
			providers[exposed]++
			winner, ok := e.suite.Bindings[exposed]
			tools = append(tools, model.ToolStatus{
				ToolBinding: b,
				Stale:       stale[ctxID],
				Shadowed:    !ok || winner.SourceContextID != ctxID || winner.Tool != tool,
			})
		}
	}

	var conflicts []string
	for name, n := range providers {
		if n > 1 {
			conflicts = append(conflicts, name)
		}
	}
	slices.Sort(conflicts)
	return tools, conflicts, nil
}

// Save persists the suite as a YAML record. A bare filename lands under the
// configured suites directory; a path with separators is used as-is. The
// first successful save pins SavePath; later saves to other paths write
// there without unpinning it.
func (m *Manager) Save(id, path string) (model.Suite, error) {
	e, err := m.entry(id)
	if err != nil {
		return model.Suite{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target := m.savePath(e, path)
	record := model.SuiteRecord{
		Name:        e.suite.Name,
		Description: e.suite.Description,
		SavedAt:     time.Now().UTC(),
		Aliases:     make(map[string]string),
	}
	for tool, alias := range e.aliases {
		record.Aliases[tool] = alias
	}
	for _, ctxID := range e.suite.ContextIDs {
		c, err := m.store.Get(ctxID)
		if err != nil {
			return model.Suite{}, model.Errf(model.KindStaleReference,
				"context %s referenced by suite %s no longer exists", ctxID, id)
		}
		record.Contexts = append(record.Contexts, model.SuiteRecordEntry{
			Requirements: c.Requirements.Strings(),
			Platform:     c.Platform,
		})
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return model.Suite{}, fmt.Errorf("suite: marshal record: %w", err)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return model.Suite{}, fmt.Errorf("suite: create directory: %w", err)
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return model.Suite{}, fmt.Errorf("suite: write %s: %w", target, err)
	}

	if e.suite.SavePath == "" {
		e.suite.SavePath = target
	}
	e.suite.Status = model.SuiteSaved

	m.logger.Info("suite saved", slog.String("suite_id", id), slog.String("path", target))
	return cloneSuite(e.suite), nil
}

// Load reads a suite record and rebuilds its contexts through the store,
// fanning the resolutions out concurrently. Identical requirement sets reuse
// live contexts instead of solving again.
func (m *Manager) Load(ctx context.Context, path string) (model.Suite, error) {
	if !strings.ContainsRune(path, os.PathSeparator) {
		path = filepath.Join(m.suitesDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Suite{}, model.Errf(model.KindNotFound, "suite file %s not found", path)
		}
		return model.Suite{}, fmt.Errorf("suite: read %s: %w", path, err)
	}

	var record model.SuiteRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return model.Suite{}, model.Errf(model.KindValidation, "suite file %s is not a valid record: %v", path, err)
	}
	if record.Name == "" {
		return model.Suite{}, model.Errf(model.KindValidation, "suite file %s has no name", path)
	}

	ids := make([]string, len(record.Contexts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, entry := range record.Contexts {
		g.Go(func() error {
			c, err := m.store.Create(gctx, entry.Requirements, entry.Platform)
			if err != nil {
				return err
			}
			if c.Status != model.StatusResolved {
				desc := string(c.Status)
				if c.Failure != nil {
					desc = c.Failure.Description
				}
				return model.Errf(model.KindUnsatisfiable,
					"suite context %v no longer resolves: %s", entry.Requirements, desc)
			}
			ids[i] = c.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Suite{}, err
	}

	e, err := newEntry(record.Name, record.Description)
	if err != nil {
		return model.Suite{}, err
	}
	for _, ctxID := range ids {
		c, err := m.store.Get(ctxID)
		if err != nil {
			return model.Suite{}, model.Errf(model.KindStaleReference, "context %s vanished during load", ctxID)
		}
		e.suite.ContextIDs = append(e.suite.ContextIDs, ctxID)
		e.toolsByCtx[ctxID] = c.Tools()
	}
	for tool, alias := range record.Aliases {
		e.aliases[tool] = alias
	}
	e.rebuildBindings()
	e.suite.Status = model.SuiteSaved
	e.suite.SavePath = path

	// The entry joins the table only once fully built; a concurrent Delete
	// or Get can never observe a half-loaded suite.
	m.publish(e)

	m.logger.Info("suite loaded",
		slog.String("suite_id", e.suite.ID),
		slog.String("path", path),
		slog.Int("contexts", len(ids)))
	return cloneSuite(e.suite), nil
}

// Len reports the number of live suites.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.suites)
}

func (m *Manager) entry(id string) (*suiteEntry, error) {
	m.mu.RLock()
	e, ok := m.suites[id]
	m.mu.RUnlock()
	if !ok {
		return nil, model.Errf(model.KindNotFound, "suite %s not found", id)
	}
	return e, nil
}

// savePath picks the target file: the request's path when given, else the
// pinned SavePath, else "<suites dir>/<name>.yaml". Callers hold e.mu.
func (m *Manager) savePath(e *suiteEntry, requested string) string {
	if requested == "" {
		if e.suite.SavePath != "" {
			return e.suite.SavePath
		}
		requested = e.suite.Name + ".yaml"
	}
	if strings.ContainsRune(requested, os.PathSeparator) {
		return requested
	}
	return filepath.Join(m.suitesDir, requested)
}

// rebuildBindings recomputes the exposed tool namespace from scratch in
// context order. Callers hold e.mu.
func (e *suiteEntry) rebuildBindings() {
	bindings := make(map[string]model.ToolBinding)
	var shadowed []model.ToolBinding
	for _, ctxID := range e.suite.ContextIDs {
		for _, tool := range e.toolsByCtx[ctxID] {
			b := model.ToolBinding{Tool: tool, Alias: e.aliases[tool], SourceContextID: ctxID}
			exposed := b.Exposed()
			if prev, ok := bindings[exposed]; ok {
				shadowed = append(shadowed, prev)
			}
			bindings[exposed] = b
		}
	}
	e.suite.Bindings = bindings
	e.suite.Shadowed = shadowed
}

func (e *suiteEntry) providesTool(tool string) bool {
	for _, tools := range e.toolsByCtx {
		if slices.Contains(tools, tool) {
			return true
		}
	}
	return false
}

func cloneSuite(s *model.Suite) model.Suite {
	out := *s
	out.ContextIDs = slices.Clone(s.ContextIDs)
	out.Shadowed = slices.Clone(s.Shadowed)
	out.Bindings = make(map[string]model.ToolBinding, len(s.Bindings))
	for k, v := range s.Bindings {
		out.Bindings[k] = v
	}
	return out
}
