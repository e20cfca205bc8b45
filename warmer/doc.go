// Package warmer pre-populates caches for areas likely to be queried
// soon. Warming requests go onto a bounded channel, a fixed pool of
// workers computes results off the critical path, and finished results
// are published on a second channel the manager drains on its own tick.
// Workers never touch cache internals, and a full queue drops requests
// silently; warming is an optimization, not a correctness requirement.
package warmer
