package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrEntryTooLarge is returned by Insert when a single entry exceeds
	// the cache's configured byte budget. The caller may bypass caching
	// for that item; the cache state is unchanged.
	ErrEntryTooLarge = errors.New("cache: entry exceeds byte budget")
)
