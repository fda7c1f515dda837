// Package store owns the table of resolved package environments. Contexts
// are created through the resolver gateway, cached by requirement set and
// platform, aged out on a TTL, and handed to callers only as deep copies.
package store

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/caldera-labs/resolvd/internal/model"
	"github.com/caldera-labs/resolvd/internal/resolver"
)

type entry struct {
	ctx      *model.Context
	cacheKey string
	leases   int
}

// Options tunes the store's cache and eviction behavior.
type Options struct {
	// TTL is how long an unused context stays alive. Zero disables eviction.
	TTL time.Duration
	// SweepInterval is how often the background sweep runs. Defaults to one
	// minute when TTL is set.
	SweepInterval time.Duration
	// CacheSize bounds the requirement-set index. Defaults to 1024.
	CacheSize int
	Logger    *slog.Logger
}

// Store is the owning home of every context. Constructed once at startup and
// shared by reference; all methods are safe for concurrent use.
type Store struct {
	gateway *resolver.Gateway
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	contexts map[string]*entry
	// index maps cache key -> context id so identical requests reuse the
	// same context. Failed contexts are never indexed.
	index *expirable.LRU[string, string]
	group singleflight.Group

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a store backed by gateway. Call Close to stop the eviction
// goroutine.
func New(gateway *resolver.Gateway, opts Options) *Store {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}

	s := &Store{
		gateway:  gateway,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		contexts: make(map[string]*entry),
		index:    expirable.NewLRU[string, string](opts.CacheSize, nil, opts.TTL),
		done:     make(chan struct{}),
	}
	if opts.TTL > 0 {
		go s.sweepLoop(sweep)
	}
	return s
}

// Close stops the background sweep.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Create resolves a requirement set into a context. An identical in-flight or
// cached request reuses the existing context instead of consulting the solver
// again. Unsatisfiable sets come back as a failed context with a nil error;
// only validation and solver-infrastructure problems are returned as errors.
func (s *Store) Create(ctx context.Context, raw []string, platform model.PlatformDescriptor) (model.Context, error) {
	set, err := s.gateway.ParseRequirements(raw)
	if err != nil {
		return model.Context{}, err
	}
	if err := platform.Validate(); err != nil {
		return model.Context{}, err
	}

	key := set.CacheKey(platform)
	if c, ok := s.lookupByKey(key); ok {
		return c, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A winner may have finished between our cache check and joining
		// the flight.
		if c, ok := s.lookupByKey(key); ok {
			return c, nil
		}
		return s.resolve(ctx, set, platform, key)
	})
	if err != nil {
		return model.Context{}, err
	}
	// Clone per caller: collapsed flights must not share one Env map.
	return v.(model.Context).Clone(), nil
}

func (s *Store) resolve(ctx context.Context, set model.RequirementSet, platform model.PlatformDescriptor, key string) (model.Context, error) {
	now := time.Now()
	c := &model.Context{
		ID:           uuid.NewString(),
		Requirements: set,
		Platform:     platform,
		Status:       model.StatusPending,
		CreatedAt:    now,
		LastUsedAt:   now,
	}

	res, rerr := s.gateway.Resolve(ctx, set, platform)
	if rerr != nil {
		if model.KindOf(rerr) != model.KindUnsatisfiable {
			// Infrastructure fault: nothing worth keeping.
			return model.Context{}, rerr
		}
		c.Status = model.StatusFailed
		c.Failure = &model.FailureReason{Kind: model.KindUnsatisfiable, Description: rerr.Error()}
		// Copy before publishing: once c is in the table, Get may touch it.
		out := c.Clone()
		s.store(c, "")
		s.logger.Info("context failed", slog.String("context_id", out.ID), slog.Any("requirements", set.Strings()))
		return out, nil
	}

	c.Status = model.StatusResolved
	c.Packages = res.Packages
	c.Env = buildEnv(set, platform, res.Packages)
	out := c.Clone()
	s.store(c, key)
	s.logger.Info("context resolved",
		slog.String("context_id", out.ID),
		slog.Any("requirements", set.Strings()),
		slog.Int("packages", len(res.Packages)))
	return out, nil
}

func (s *Store) store(c *model.Context, key string) {
	s.mu.Lock()
	s.contexts[c.ID] = &entry{ctx: c, cacheKey: key}
	s.mu.Unlock()
	if key != "" {
		s.index.Add(key, c.ID)
	}
}

// lookupByKey returns a copy of the resolved context indexed under key. The
// copy is taken while holding the lock, so it never races a LastUsedAt update
// from another reader.
func (s *Store) lookupByKey(key string) (model.Context, bool) {
	id, ok := s.index.Get(key)
	if !ok {
		return model.Context{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.contexts[id]
	if !ok || e.ctx.Status != model.StatusResolved {
		// Index entry outlived the context; drop it lazily.
		s.index.Remove(key)
		return model.Context{}, false
	}
	e.ctx.LastUsedAt = time.Now()
	return e.ctx.Clone(), true
}

// Get returns a copy of the context. A failed context answers exactly one
// status query: the first Get that observes the failure also removes it.
func (s *Store) Get(id string) (model.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.contexts[id]
	if !ok {
		return model.Context{}, model.Errf(model.KindNotFound, "context %s not found", id)
	}
	if e.ctx.Status == model.StatusFailed {
		delete(s.contexts, id)
		return e.ctx.Clone(), nil
	}
	e.ctx.LastUsedAt = time.Now()
	return e.ctx.Clone(), nil
}

// Delete removes the context immediately. In-flight executions keep working
// from their leased snapshots.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.contexts[id]
	if ok {
		delete(s.contexts, id)
	}
	s.mu.Unlock()

	if !ok {
		return model.Errf(model.KindNotFound, "context %s not found", id)
	}
	if e.cacheKey != "" {
		s.index.Remove(e.cacheKey)
	}
	s.logger.Info("context deleted", slog.String("context_id", id))
	return nil
}

// List returns copies of every live context, oldest first.
func (s *Store) List() []model.Context {
	s.mu.Lock()
	out := make([]model.Context, 0, len(s.contexts))
	for _, e := range s.contexts {
		out = append(out, e.ctx.Clone())
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Context) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len reports the number of live contexts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// Lease is a point-in-time copy of a context handed to an executor. The
// copied environment stays valid even if the context is deleted or evicted
// while the execution runs. Call Release when done.
type Lease struct {
	Context model.Context

	store *Store
	once  sync.Once
}

// Release returns the lease. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.store.mu.Lock()
		if e, ok := l.store.contexts[l.Context.ID]; ok && e.leases > 0 {
			e.leases--
		}
		l.store.mu.Unlock()
	})
}

// Snapshot leases the context for an execution. Only resolved contexts can be
// leased: pending or failed ones report NotReady, missing ones NotFound.
func (s *Store) Snapshot(id string) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.contexts[id]
	if !ok {
		return nil, model.Errf(model.KindNotFound, "context %s not found", id)
	}
	if e.ctx.Status != model.StatusResolved {
		return nil, model.Errf(model.KindNotReady, "context %s is %s, not resolved", id, e.ctx.Status)
	}
	e.leases++
	e.ctx.LastUsedAt = time.Now()
	return &Lease{Context: e.ctx.Clone(), store: s}, nil
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Store) sweep(now time.Time) {
	var evicted []string
	s.mu.Lock()
	for id, e := range s.contexts {
		if e.leases > 0 {
			continue
		}
		if now.Sub(e.ctx.LastUsedAt) > s.ttl {
			delete(s.contexts, id)
			if e.cacheKey != "" {
				evicted = append(evicted, e.cacheKey)
			}
		}
	}
	s.mu.Unlock()

	for _, key := range evicted {
		s.index.Remove(key)
	}
	if n := len(evicted); n > 0 {
		s.logger.Debug("contexts evicted", slog.Int("count", n))
	}
}

// buildEnv constructs the process environment for a resolved context. PATH is
// assembled from each package's bin directory in solver dependency order, so
// earlier packages win tool-name collisions deterministically.
func buildEnv(set model.RequirementSet, platform model.PlatformDescriptor, packages []model.ResolvedPackageEntry) map[string]string {
	env := map[string]string{
		"RESOLVD_REQUEST":  strings.Join(set.Strings(), " "),
		"RESOLVD_PLATFORM": platform.String(),
	}

	var binDirs, resolved []string
	for _, pkg := range packages {
		def := pkg.Definition()
		root := pkg.InstallRoot()
		resolved = append(resolved, def.Name+"-"+def.Version)
		if root != "" {
			binDirs = append(binDirs, root+"/bin")
		}

		prefix := "RESOLVD_" + envName(def.Name)
		env[prefix+"_VERSION"] = def.Version
		if root != "" {
			env[prefix+"_ROOT"] = root
		}
	}

	env["RESOLVD_RESOLVED_PACKAGES"] = strings.Join(resolved, " ")
	if len(binDirs) > 0 {
		env["PATH"] = strings.Join(binDirs, string(os.PathListSeparator))
	}
	return env
}

func envName(name string) string {
	up := strings.ToUpper(name)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, up)
}
