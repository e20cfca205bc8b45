package cache

import (
	"fmt"
	"time"
)

// ID identifies a registered cache. It is a stable, small identifier used
// as the registry key and as a node in the invalidation graph.
type ID uint32

// Well-known cache identifiers.
const (
	Pathfinding ID = iota
	SpatialQueries
	Animation
	Conversation
	Rendering
	UI
)

// customBase is the first identifier reserved for application-defined IDs.
const customBase ID = 1 << 16

// Custom returns an application-defined cache identifier. Distinct values
// of n never collide with each other or with the well-known identifiers.
func Custom(n uint32) ID { return customBase + ID(n) }

func (id ID) String() string {
	switch id {
	case Pathfinding:
		return "pathfinding"
	case SpatialQueries:
		return "spatial_queries"
	case Animation:
		return "animation"
	case Conversation:
		return "conversation"
	case Rendering:
		return "rendering"
	case UI:
		return "ui"
	}
	if id >= customBase {
		return fmt.Sprintf("custom(%d)", uint32(id-customBase))
	}
	return fmt.Sprintf("cache(%d)", uint32(id))
}

// Cache is the management-side interface every storage policy implements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: eviction and clearing never error; misses are values, not failures.
// - Accounting: MemoryUsage must stay consistent with actual contents
//   across every mutating operation.
type Cache interface {
	// ID returns the identifier the cache was created with.
	ID() ID

	// MemoryUsage returns the estimated resident size of all entries in bytes.
	MemoryUsage() uint64

	// EntryCount returns the number of live entries.
	EntryCount() int

	// HitRate returns the hit ratio over the rolling stats window, in [0, 1].
	HitRate() float64

	// Stats returns a snapshot of the lifetime counters.
	Stats() Stats

	// RotateStats advances the rolling hit-rate window by one tick.
	RotateStats()

	// Clear removes every entry. Idempotent.
	Clear()

	// EvictOldest removes up to n of the least valuable entries and
	// returns how many were removed. Never errors.
	EvictOldest(n int) int

	// ShrinkToFit releases internal storage left over from evicted entries.
	ShrinkToFit()
}

// Store is the typed read/write surface a cache exposes to callers that
// know its key and value types. The manager's GetOrCompute asserts a
// registered Cache down to this interface.
type Store[K comparable, V any] interface {
	Cache

	// Get returns the cached value for key and whether it was present.
	Get(key K) (V, bool)

	// Insert stores value under key with the given size estimate in
	// bytes. Returns ErrEntryTooLarge when the entry alone exceeds the
	// cache's byte budget; callers should skip caching that value.
	Insert(key K, value V, size uint64) error
}

// KeyInvalidator is implemented by caches that can drop a single entry by
// key. InvalidateKey reports whether an entry was removed; keys of the
// wrong type are ignored.
type KeyInvalidator interface {
	InvalidateKey(key any) bool
}

// AgeEvicter is implemented by caches that can drop entries not accessed
// within the given age.
type AgeEvicter interface {
	EvictOlderThan(age time.Duration) int
}

// RecencyEvicter is implemented by caches that can keep only their n most
// recently used entries.
type RecencyEvicter interface {
	KeepMostRecent(n int) int
}

// AreaInvalidator is implemented by caches whose contents are keyed by
// world position.
type AreaInvalidator interface {
	InvalidateArea(center Vec2, radius float64) int
}
