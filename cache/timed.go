package cache

import (
	"container/heap"
	"sync"
	"time"
)

// TimedConfig configures a TTL cache.
type TimedConfig struct {
	// DefaultTTL applies to Insert calls that do not name a TTL.
	// Default: 5 minutes
	DefaultTTL time.Duration

	// MaxEntries caps the number of entries.
	// Default: 1024
	MaxEntries int

	// MaxBytes caps the summed size estimates of all entries. Zero means
	// no byte budget.
	MaxBytes uint64

	// Clock overrides the time source, mainly for tests.
	// Default: time.Now
	Clock func() time.Time
}

type timedEntry[V any] struct {
	value      V
	size       uint64
	expiresAt  time.Time
	lastAccess time.Time
	gen        uint64
}

// expiryItem is one heap record. Re-inserting a key leaves its old item
// in the heap; the generation check on pop discards it as stale.
type expiryItem[K comparable] struct {
	expiresAt time.Time
	seq       uint64
	gen       uint64
	key       K
}

type expiryHeap[K comparable] []expiryItem[K]

func (h expiryHeap[K]) Len() int { return len(h) }

func (h expiryHeap[K]) Less(i, j int) bool {
	if !h[i].expiresAt.Equal(h[j].expiresAt) {
		return h[i].expiresAt.Before(h[j].expiresAt)
	}
	return h[i].seq < h[j].seq
}

func (h expiryHeap[K]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap[K]) Push(x any) { *h = append(*h, x.(expiryItem[K])) }

func (h *expiryHeap[K]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Timed is a TTL-expiring cache. Every lookup first purges entries whose
// expiry has passed (lazy expiry, driven by a min-heap ordered by expiry
// time), so an expired-but-unpurged entry is never returned. Eviction
// under pressure removes nearest-expiry entries first; they are the least
// valuable going forward.
//
// Contract:
// - Concurrency: safe for concurrent use (single internal mutex).
// - Accounting: MemoryUsage changes atomically with every structural change.
type Timed[K comparable, V any] struct {
	mu      sync.Mutex
	id      ID
	cfg     TimedConfig
	entries map[K]*timedEntry[V]
	expiry  expiryHeap[K]
	bytes   uint64
	seq     uint64
	gen     uint64
	stats   statsWindow
}

// NewTimed creates a TTL cache registered under id.
func NewTimed[K comparable, V any](id ID, cfg TimedConfig) *Timed[K, V] {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Timed[K, V]{
		id:      id,
		cfg:     cfg,
		entries: make(map[K]*timedEntry[V]),
	}
}

// Get returns the cached value for key if it has not expired.
func (c *Timed[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Clock()
	c.purge(now)

	e, ok := c.entries[key]
	if !ok || !e.expiresAt.After(now) {
		c.stats.miss()
		var zero V
		return zero, false
	}
	e.lastAccess = now
	c.stats.hit()
	return e.value, true
}

// Insert stores value under key with the default TTL.
func (c *Timed[K, V]) Insert(key K, value V, size uint64) error {
	return c.InsertTTL(key, value, size, c.cfg.DefaultTTL)
}

// InsertTTL stores value under key, expiring ttl from now. Re-inserting a
// key resets its TTL; the superseded heap record is invalidated by the
// entry's bumped generation rather than removed in place.
func (c *Timed[K, V]) InsertTTL(key K, value V, size uint64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxBytes > 0 && size > c.cfg.MaxBytes {
		return ErrEntryTooLarge
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	now := c.cfg.Clock()
	c.purge(now)

	c.gen++
	c.seq++
	expiresAt := now.Add(ttl)

	if e, ok := c.entries[key]; ok {
		c.bytes -= e.size
		e.value = value
		e.size = size
		e.expiresAt = expiresAt
		e.lastAccess = now
		e.gen = c.gen
		c.bytes += size
	} else {
		for len(c.entries) >= c.cfg.MaxEntries {
			if c.popNearest() == 0 {
				break
			}
			c.stats.evicted(1)
		}
		c.entries[key] = &timedEntry[V]{
			value:      value,
			size:       size,
			expiresAt:  expiresAt,
			lastAccess: now,
			gen:        c.gen,
		}
		c.bytes += size
	}
	heap.Push(&c.expiry, expiryItem[K]{expiresAt: expiresAt, seq: c.seq, gen: c.gen, key: key})

	if c.cfg.MaxBytes > 0 {
		// The entry just stored is exempt from its own budget pass, the
		// same way the LRU never evicts the entry it is inserting.
		for c.bytes > c.cfg.MaxBytes && len(c.entries) > 1 {
			if c.popNearestExcept(c.gen) == 0 {
				break
			}
			c.stats.evicted(1)
		}
	}
	return nil
}

// purge removes every entry whose expiry is at or before now. Stale heap
// records for superseded keys are discarded by the generation check.
func (c *Timed[K, V]) purge(now time.Time) {
	for len(c.expiry) > 0 {
		top := c.expiry[0]
		if top.expiresAt.After(now) {
			return
		}
		heap.Pop(&c.expiry)
		e, ok := c.entries[top.key]
		if !ok || e.gen != top.gen {
			continue // superseded or already removed
		}
		c.bytes -= e.size
		delete(c.entries, top.key)
		c.stats.evicted(1)
	}
}

// popNearest removes the live entry with the nearest expiry. Returns the
// number of entries removed (0 or 1).
func (c *Timed[K, V]) popNearest() int {
	return c.popNearestExcept(0)
}

// popNearestExcept is popNearest with one protected generation: a live
// heap record carrying spareGen is set aside and restored afterwards.
// Generations start at 1, so 0 protects nothing.
func (c *Timed[K, V]) popNearestExcept(spareGen uint64) int {
	var spared *expiryItem[K]
	removed := 0
	for len(c.expiry) > 0 {
		top := heap.Pop(&c.expiry).(expiryItem[K])
		e, ok := c.entries[top.key]
		if !ok || e.gen != top.gen {
			continue
		}
		if top.gen == spareGen {
			spared = &top
			continue
		}
		c.bytes -= e.size
		delete(c.entries, top.key)
		removed = 1
		break
	}
	if spared != nil {
		heap.Push(&c.expiry, *spared)
	}
	return removed
}

// Invalidate removes the entry for key, reporting whether it was present.
func (c *Timed[K, V]) Invalidate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.bytes -= e.size
	delete(c.entries, key)
	c.stats.invalidated(1)
	return true
}

// InvalidateKey implements KeyInvalidator.
func (c *Timed[K, V]) InvalidateKey(key any) bool {
	k, ok := key.(K)
	if !ok {
		return false
	}
	return c.Invalidate(k)
}

// EvictOldest removes up to n entries, nearest expiry first. This
// coincides with normal min-heap order.
func (c *Timed[K, V]) EvictOldest(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for evicted < n {
		if c.popNearest() == 0 {
			break
		}
		evicted++
	}
	c.stats.evicted(evicted)
	return evicted
}

// EvictOlderThan implements AgeEvicter. The map scan is O(n); under
// pressure that beats keeping a second ordering.
func (c *Timed[K, V]) EvictOlderThan(age time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.cfg.Clock().Add(-age)
	evicted := 0
	for key, e := range c.entries {
		if e.lastAccess.Before(cutoff) {
			c.bytes -= e.size
			delete(c.entries, key)
			evicted++
		}
	}
	c.stats.evicted(evicted)
	return evicted
}

// Clear removes every entry. Idempotent.
func (c *Timed[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.invalidated(len(c.entries))
	c.entries = make(map[K]*timedEntry[V])
	c.expiry = nil
	c.bytes = 0
}

// ShrinkToFit rebuilds the expiry heap without stale records.
func (c *Timed[K, V]) ShrinkToFit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.expiry) <= len(c.entries) {
		return
	}
	live := make(expiryHeap[K], 0, len(c.entries))
	for _, item := range c.expiry {
		if e, ok := c.entries[item.key]; ok && e.gen == item.gen {
			live = append(live, item)
		}
	}
	heap.Init(&live)
	c.expiry = live
}

// ID implements Cache.
func (c *Timed[K, V]) ID() ID { return c.id }

// MemoryUsage implements Cache.
func (c *Timed[K, V]) MemoryUsage() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// EntryCount implements Cache.
func (c *Timed[K, V]) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// HitRate implements Cache.
func (c *Timed[K, V]) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.hitRate()
}

// Stats implements Cache.
func (c *Timed[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot()
}

// RotateStats implements Cache.
func (c *Timed[K, V]) RotateStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.rotate()
}

// Ensure Timed implements the cache interfaces.
var (
	_ Cache              = (*Timed[string, int])(nil)
	_ Store[string, int] = (*Timed[string, int])(nil)
	_ KeyInvalidator     = (*Timed[string, int])(nil)
	_ AgeEvicter         = (*Timed[string, int])(nil)
)
