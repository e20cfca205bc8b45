// Package pressure tracks aggregate cache memory usage against a fixed
// budget and derives a discrete pressure level from it. The manager
// recomputes the level once per tick and dispatches its eviction tiers
// on the result.
package pressure
