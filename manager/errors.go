package manager

import "errors"

// Sentinel errors for manager operations.
var (
	// ErrDuplicateCacheID is returned when registering a cache under an
	// identifier that is already taken. A configuration mistake, fatal
	// at startup.
	ErrDuplicateCacheID = errors.New("manager: duplicate cache id")

	// ErrUnknownCacheID is returned when a rule, dependency edge, or
	// lookup references an identifier with no registered cache.
	ErrUnknownCacheID = errors.New("manager: unknown cache id")

	// ErrCacheTypeMismatch is returned by GetOrCompute when the
	// registered cache does not store the requested key/value types.
	ErrCacheTypeMismatch = errors.New("manager: cache does not store the requested types")

	// ErrOverBudget is the diagnostic returned when Critical-tier
	// eviction still leaves aggregate usage above the memory budget.
	// Non-fatal: the subsystem keeps operating with degraded hit rates.
	ErrOverBudget = errors.New("manager: cache usage exceeds memory budget after critical eviction")
)
