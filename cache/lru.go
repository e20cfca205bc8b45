package cache

import (
	"sync"
	"time"
)

// nilIdx marks the end of the recency list and unused links.
const nilIdx = -1

// LRUConfig configures an LRU cache.
type LRUConfig struct {
	// MaxEntries caps the number of entries.
	// Default: 1024
	MaxEntries int

	// MaxBytes caps the summed size estimates of all entries. An insert
	// whose single entry exceeds MaxBytes is rejected with
	// ErrEntryTooLarge. Zero means no byte budget.
	MaxBytes uint64

	// Clock overrides the time source, mainly for tests.
	// Default: time.Now
	Clock func() time.Time
}

// lruNode is one arena slot. Nodes are linked by arena index rather than
// by pointer, so the key map never holds a reference that can dangle.
type lruNode[K comparable, V any] struct {
	key        K
	value      V
	size       uint64
	seq        uint64
	lastAccess time.Time
	prev, next int
}

// LRU is a fixed-capacity, recency-ordered cache.
//
// The recency list lives in an arena: nodes are stored in a slice and
// referenced by index, with the key map pointing at indices. A lookup
// moves the entry to the head in O(1); eviction pops the tail. Entries
// touched at the same instant keep insertion order on the list, so the
// earliest-inserted one is evicted first.
//
// Contract:
// - Concurrency: safe for concurrent use (single internal mutex).
// - Accounting: MemoryUsage changes atomically with every structural change.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	id    ID
	cfg   LRUConfig
	index map[K]int
	arena []lruNode[K, V]
	free  []int
	head  int
	tail  int
	bytes uint64
	seq   uint64
	stats statsWindow
}

// NewLRU creates an LRU cache registered under id.
func NewLRU[K comparable, V any](id ID, cfg LRUConfig) *LRU[K, V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &LRU[K, V]{
		id:    id,
		cfg:   cfg,
		index: make(map[K]int),
		head:  nilIdx,
		tail:  nilIdx,
	}
}

// Get returns the cached value for key. A hit refreshes the entry's
// recency; both outcomes feed the rolling hit-rate window.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[key]
	if !ok {
		c.stats.miss()
		var zero V
		return zero, false
	}

	c.stats.hit()
	c.arena[idx].lastAccess = c.cfg.Clock()
	c.moveToFront(idx)
	return c.arena[idx].value, true
}

// Insert stores value under key. An existing key is updated in place and
// refreshed. When the cache is full, least-recently-used entries are
// evicted until the new entry fits. An entry whose size alone exceeds
// MaxBytes is rejected with ErrEntryTooLarge.
func (c *LRU[K, V]) Insert(key K, value V, size uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxBytes > 0 && size > c.cfg.MaxBytes {
		return ErrEntryTooLarge
	}

	now := c.cfg.Clock()

	if idx, ok := c.index[key]; ok {
		n := &c.arena[idx]
		c.bytes -= n.size
		n.value = value
		n.size = size
		n.lastAccess = now
		c.bytes += size
		c.moveToFront(idx)
		c.evictForBudget()
		return nil
	}

	for len(c.index) >= c.cfg.MaxEntries && c.tail != nilIdx {
		c.removeNode(c.tail)
		c.stats.evicted(1)
	}
	c.bytes += size
	idx := c.alloc()
	c.seq++
	c.arena[idx] = lruNode[K, V]{
		key:        key,
		value:      value,
		size:       size,
		seq:        c.seq,
		lastAccess: now,
		prev:       nilIdx,
		next:       nilIdx,
	}
	c.index[key] = idx
	c.pushFront(idx)
	c.evictForBudget()
	return nil
}

// evictForBudget pops the tail until the byte budget is met, sparing the
// head so an insert can never evict its own entry.
func (c *LRU[K, V]) evictForBudget() {
	if c.cfg.MaxBytes == 0 {
		return
	}
	for c.bytes > c.cfg.MaxBytes && c.tail != nilIdx && c.tail != c.head {
		c.removeNode(c.tail)
		c.stats.evicted(1)
	}
}

// Invalidate removes the entry for key, reporting whether it was present.
func (c *LRU[K, V]) Invalidate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[key]
	if !ok {
		return false
	}
	c.removeNode(idx)
	c.stats.invalidated(1)
	return true
}

// InvalidateKey implements KeyInvalidator. Keys of the wrong type are
// ignored.
func (c *LRU[K, V]) InvalidateKey(key any) bool {
	k, ok := key.(K)
	if !ok {
		return false
	}
	return c.Invalidate(k)
}

// EvictOldest removes up to n entries from the tail of the recency order.
func (c *LRU[K, V]) EvictOldest(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for evicted < n && c.tail != nilIdx {
		c.removeNode(c.tail)
		evicted++
	}
	c.stats.evicted(evicted)
	return evicted
}

// EvictOlderThan implements AgeEvicter. The tail-first walk stops at the
// first entry young enough to keep, since recency order is total.
func (c *LRU[K, V]) EvictOlderThan(age time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.cfg.Clock().Add(-age)
	evicted := 0
	for c.tail != nilIdx && c.arena[c.tail].lastAccess.Before(cutoff) {
		c.removeNode(c.tail)
		evicted++
	}
	c.stats.evicted(evicted)
	return evicted
}

// KeepMostRecent implements RecencyEvicter.
func (c *LRU[K, V]) KeepMostRecent(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 0 {
		n = 0
	}
	evicted := 0
	for len(c.index) > n && c.tail != nilIdx {
		c.removeNode(c.tail)
		evicted++
	}
	c.stats.evicted(evicted)
	return evicted
}

// Clear removes every entry. Idempotent.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.invalidated(len(c.index))
	c.index = make(map[K]int)
	c.arena = nil
	c.free = nil
	c.head = nilIdx
	c.tail = nilIdx
	c.bytes = 0
}

// ShrinkToFit rebuilds the arena without the free slots accumulated by
// evictions, releasing the values they still referenced.
func (c *LRU[K, V]) ShrinkToFit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.free) == 0 {
		return
	}
	arena := make([]lruNode[K, V], 0, len(c.index))
	index := make(map[K]int, len(c.index))
	newHead, newTail := nilIdx, nilIdx
	for idx := c.head; idx != nilIdx; idx = c.arena[idx].next {
		n := c.arena[idx]
		n.prev = len(arena) - 1
		n.next = nilIdx
		if len(arena) > 0 {
			arena[len(arena)-1].next = len(arena)
		} else {
			newHead = 0
			n.prev = nilIdx
		}
		arena = append(arena, n)
		index[n.key] = len(arena) - 1
		newTail = len(arena) - 1
	}
	c.arena = arena
	c.index = index
	c.free = nil
	c.head = newHead
	c.tail = newTail
}

// ID implements Cache.
func (c *LRU[K, V]) ID() ID { return c.id }

// MemoryUsage implements Cache.
func (c *LRU[K, V]) MemoryUsage() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// EntryCount implements Cache.
func (c *LRU[K, V]) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// HitRate implements Cache.
func (c *LRU[K, V]) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.hitRate()
}

// Stats implements Cache.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot()
}

// RotateStats implements Cache.
func (c *LRU[K, V]) RotateStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.rotate()
}

// alloc returns a free arena slot, growing the arena when none is spare.
func (c *LRU[K, V]) alloc() int {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}
	c.arena = append(c.arena, lruNode[K, V]{})
	return len(c.arena) - 1
}

// removeNode unlinks the node, updates the byte count, and recycles the
// slot. The slot's value is zeroed so evicted entries do not pin memory.
func (c *LRU[K, V]) removeNode(idx int) {
	n := &c.arena[idx]
	c.unlink(idx)
	c.bytes -= n.size
	delete(c.index, n.key)
	var zero lruNode[K, V]
	zero.prev, zero.next = nilIdx, nilIdx
	*n = zero
	c.free = append(c.free, idx)
}

func (c *LRU[K, V]) unlink(idx int) {
	n := &c.arena[idx]
	if n.prev != nilIdx {
		c.arena[n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nilIdx {
		c.arena[n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nilIdx, nilIdx
}

func (c *LRU[K, V]) pushFront(idx int) {
	n := &c.arena[idx]
	n.prev = nilIdx
	n.next = c.head
	if c.head != nilIdx {
		c.arena[c.head].prev = idx
	}
	c.head = idx
	if c.tail == nilIdx {
		c.tail = idx
	}
}

func (c *LRU[K, V]) moveToFront(idx int) {
	if c.head == idx {
		return
	}
	c.unlink(idx)
	c.pushFront(idx)
}

// Ensure LRU implements the cache interfaces.
var (
	_ Cache              = (*LRU[string, int])(nil)
	_ Store[string, int] = (*LRU[string, int])(nil)
	_ KeyInvalidator     = (*LRU[string, int])(nil)
	_ AgeEvicter         = (*LRU[string, int])(nil)
	_ RecencyEvicter     = (*LRU[string, int])(nil)
)
