package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/simcache/cache"
	"github.com/jonwraymond/simcache/invalidation"
	"github.com/jonwraymond/simcache/observe"
	"github.com/jonwraymond/simcache/pressure"
	"github.com/jonwraymond/simcache/warmer"
)

// Config configures a Manager.
type Config struct {
	// MemoryBudget is the aggregate byte budget across all registered
	// caches.
	// Default: 256 MiB
	MemoryBudget uint64

	// Thresholds are the pressure-level boundaries.
	// Default: pressure.DefaultThresholds()
	Thresholds pressure.Thresholds

	// LowEvictFraction is the share of entries dropped from low-priority
	// caches at Low pressure.
	// Default: 0.1
	LowEvictFraction float64

	// MediumEvictFraction is the share of entries dropped from every
	// cache at Medium pressure.
	// Default: 0.25
	MediumEvictFraction float64

	// RecentWindow is the access age treated as the essential working
	// set at High pressure: entries not touched within it are evicted.
	// Default: 100ms (roughly the current and previous tick at 20 Hz)
	RecentWindow time.Duration

	// OnOverBudget is invoked at most once, the first time Critical-tier
	// eviction leaves usage above budget. Optional.
	OnOverBudget func(usage, budget uint64)

	// Logger receives structured subsystem logs. Nil disables logging.
	Logger observe.Logger

	// Metrics receives OpenTelemetry cache events. Nil disables.
	Metrics *observe.Metrics

	// Tracer wraps miss-path compute calls in spans. Nil disables.
	Tracer observe.Tracer
}

// registration pairs a cache with its registration flags.
type registration struct {
	cache       cache.Cache
	essential   bool
	lowPriority bool
}

// RegisterOption modifies how a cache is registered.
type RegisterOption func(*registration)

// Essential marks a cache as exempt from Critical-tier clearing, for
// caches whose loss would force the simulation to immediately recompute
// its own eviction inputs.
func Essential() RegisterOption {
	return func(r *registration) { r.essential = true }
}

// LowPriority marks a cache as a first candidate for Low-tier eviction
// (typically UI and animation data).
func LowPriority() RegisterOption {
	return func(r *registration) { r.lowPriority = true }
}

// Manager owns all registered caches and orchestrates invalidation and
// memory-pressure handling.
//
// Contract:
// - Concurrency: GetOrCompute and Notify are safe for concurrent use
//   from worker threads. Register, AddDependency, and AddRule are setup
//   operations; the per-tick hooks belong to the simulation loop alone.
// - Ownership: the manager exclusively owns registered caches and the
//   dependency graph; caches never reference each other.
type Manager struct {
	mu     sync.RWMutex
	caches map[cache.ID]*registration
	order  []cache.ID
	rules  map[invalidation.TriggerKey][]invalidation.Rule

	graph   *invalidation.Graph
	queue   *invalidation.Queue
	monitor *pressure.Monitor
	warmer  *warmer.Warmer

	cfg     Config
	logger  observe.Logger
	metrics *observe.Metrics
	tracer  observe.Tracer

	sf             singleflight.Group
	overBudgetOnce sync.Once
}

// New creates a Manager with the given configuration.
func New(cfg Config) (*Manager, error) {
	if cfg.MemoryBudget == 0 {
		cfg.MemoryBudget = 256 << 20
	}
	if cfg.Thresholds == (pressure.Thresholds{}) {
		cfg.Thresholds = pressure.DefaultThresholds()
	}
	if cfg.LowEvictFraction <= 0 {
		cfg.LowEvictFraction = 0.1
	}
	if cfg.MediumEvictFraction <= 0 {
		cfg.MediumEvictFraction = 0.25
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observe.NopTracer()
	}

	monitor, err := pressure.NewMonitor(cfg.MemoryBudget, cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	return &Manager{
		caches:  make(map[cache.ID]*registration),
		rules:   make(map[invalidation.TriggerKey][]invalidation.Rule),
		graph:   invalidation.NewGraph(),
		queue:   invalidation.NewQueue(),
		monitor: monitor,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}, nil
}

// Register adds a cache to the registry keyed by its ID. Registering the
// same identifier twice is a caller error.
func (m *Manager) Register(c cache.Cache, opts ...RegisterOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := c.ID()
	if _, exists := m.caches[id]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicateCacheID, id)
	}
	reg := &registration{cache: c}
	for _, opt := range opts {
		opt(reg)
	}
	m.caches[id] = reg
	m.order = append(m.order, id)
	return nil
}

// AddDependency records that invalidating from must also invalidate to.
// Both identifiers must name registered caches.
func (m *Manager) AddDependency(from, to cache.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []cache.ID{from, to} {
		if _, ok := m.caches[id]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownCacheID, id)
		}
	}
	m.graph.AddEdge(from, to)
	return nil
}

// AddRule registers an invalidation rule. Every referenced cache must
// already be registered.
func (m *Manager) AddRule(rule invalidation.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range rule.Affected {
		if _, ok := m.caches[id]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownCacheID, id)
		}
	}
	m.rules[rule.Trigger] = append(m.rules[rule.Trigger], rule)
	return nil
}

// Notify submits a mutating event. Rules with immediate propagation are
// applied synchronously; everything else is queued for the next
// ProcessInvalidations call.
func (m *Manager) Notify(ctx context.Context, trigger invalidation.Trigger) {
	m.mu.RLock()
	rules := m.rules[trigger.Key()]
	m.mu.RUnlock()

	now := time.Now()
	for _, rule := range rules {
		strategy := rule.Strategy.Materialize(trigger)
		for _, id := range rule.Affected {
			if rule.Propagation.Kind == invalidation.PropagateImmediate {
				m.applyToSet(ctx, m.graph.Propagate(id, 0, nil), strategy)
				continue
			}
			m.queue.Enqueue(invalidation.Request{
				CacheID:     id,
				Strategy:    strategy,
				Propagation: rule.Propagation,
				Priority:    rule.Priority,
				Timestamp:   now,
			})
		}
	}
}

// PendingInvalidations returns the number of queued requests.
func (m *Manager) PendingInvalidations() int {
	return m.queue.Len()
}

// ProcessInvalidations drains the pending queue in (priority, timestamp)
// order, resolves each request's propagation set against the dependency
// graph, and applies its strategy to every cache in the set. Returns the
// number of requests processed. Called once per tick.
func (m *Manager) ProcessInvalidations(ctx context.Context) int {
	requests := m.queue.Drain()
	for _, req := range requests {
		maxDepth := 0
		var filter func(cache.ID) bool
		switch req.Propagation.Kind {
		case invalidation.PropagateCascading:
			maxDepth = req.Propagation.MaxDepth
		case invalidation.PropagateSelective:
			filter = req.Propagation.Filter
		}
		m.applyToSet(ctx, m.graph.Propagate(req.CacheID, maxDepth, filter), req.Strategy)
	}
	return len(requests)
}

// applyToSet applies one strategy to every cache in the propagation set.
func (m *Manager) applyToSet(ctx context.Context, set []cache.ID, strategy invalidation.Strategy) {
	for _, id := range set {
		m.mu.RLock()
		reg, ok := m.caches[id]
		m.mu.RUnlock()
		if !ok {
			continue // edge to a cache unregistered since setup
		}
		m.applyStrategy(ctx, reg.cache, strategy)
		m.metrics.RecordInvalidation(ctx, id)
	}
}

// applyStrategy applies one strategy to one cache. A cache that does not
// support the requested strategy is cleared outright; invalidation never
// fails.
func (m *Manager) applyStrategy(ctx context.Context, c cache.Cache, s invalidation.Strategy) {
	switch s.Kind {
	case invalidation.StrategySelective:
		if ki, ok := c.(cache.KeyInvalidator); ok {
			for _, key := range s.Keys {
				ki.InvalidateKey(key)
			}
			return
		}
	case invalidation.StrategySpatial:
		if ai, ok := c.(cache.AreaInvalidator); ok {
			ai.InvalidateArea(s.Center, s.Radius)
			return
		}
	case invalidation.StrategyAge:
		if ae, ok := c.(cache.AgeEvicter); ok {
			ae.EvictOlderThan(s.MaxAge)
			return
		}
	case invalidation.StrategyKeepRecent:
		if re, ok := c.(cache.RecencyEvicter); ok {
			re.KeepMostRecent(s.Keep)
			return
		}
	}

	// StrategyFull, or unsupported strategy degrading to full.
	if s.Kind != invalidation.StrategyFull {
		m.logger.WithCache(c.ID()).Debug(ctx, "strategy unsupported, clearing cache",
			observe.Field{Key: "strategy", Value: s.Kind.String()})
	}
	c.Clear()
}

// Tick runs the per-tick sequence: drain warm results, process pending
// invalidations, handle memory pressure, and rotate the hit-rate
// windows. Returns the pressure diagnostic, if any.
func (m *Manager) Tick(ctx context.Context) error {
	m.DrainWarmResults()
	m.ProcessInvalidations(ctx)
	_, err := m.HandleMemoryPressure(ctx)

	m.mu.RLock()
	for _, id := range m.order {
		m.caches[id].cache.RotateStats()
	}
	m.mu.RUnlock()
	return err
}

// lookup returns the cache registered under id.
func (m *Manager) lookup(id cache.ID) (cache.Cache, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.caches[id]
	if !ok {
		return nil, false
	}
	return reg.cache, true
}

// snapshot returns the registrations in registration order.
func (m *Manager) snapshot() []*registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*registration, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.caches[id])
	}
	return out
}

// AttachWarmer hands the manager a started warmer. WarmArea submissions
// and DrainWarmResults are no-ops until a warmer is attached.
func (m *Manager) AttachWarmer(w *warmer.Warmer) {
	m.mu.Lock()
	m.warmer = w
	m.mu.Unlock()
}

// WarmArea asks the warmer to pre-populate spatial caches around center.
// Purely additive and never blocks; returns false when warming is
// unavailable or the request was dropped.
func (m *Manager) WarmArea(id cache.ID, center cache.Vec2, radius float64) bool {
	m.mu.RLock()
	w := m.warmer
	m.mu.RUnlock()
	if w == nil {
		return false
	}
	return w.Submit(warmer.Request{CacheID: id, Center: center, Radius: radius})
}

// DrainWarmResults applies buffered warm results to their target caches.
// Results for caches that cannot store cells are dropped.
func (m *Manager) DrainWarmResults() int {
	m.mu.RLock()
	w := m.warmer
	m.mu.RUnlock()
	if w == nil {
		return 0
	}
	return w.Drain(func(res warmer.Result) {
		c, ok := m.lookup(res.CacheID)
		if !ok {
			return
		}
		if sp, ok := c.(*cache.Spatial); ok {
			// Do not overwrite a cell recomputed after the warm task
			// was produced.
			if sp.PeekCell(res.Cell) == cache.CellCached {
				return
			}
			sp.StoreCell(res.Cell, res.Entities, res.Size)
		}
	})
}
