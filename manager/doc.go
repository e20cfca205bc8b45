// Package manager owns the cache registry, the invalidation rule table
// and dependency graph, the pending-request queue, and the memory
// pressure monitor, and orchestrates the per-tick processing that ties
// them together.
//
// Callers read through GetOrCompute, submit mutating events through
// Notify, and drive ProcessInvalidations and HandleMemoryPressure (or
// the combined Tick) exactly once per simulation tick. Cache reads and
// writes may happen concurrently from worker threads within a tick;
// the per-tick hooks belong to the owning simulation loop alone.
package manager
