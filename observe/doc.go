// Package observe provides observability primitives for the cache
// subsystem: a structured JSON logger, OpenTelemetry metrics for cache
// events (lookups, evictions, invalidations, compute durations, memory,
// pressure level), and a tracer for miss-path compute calls.
//
// It is a pure instrumentation library: no cache logic, no I/O beyond
// exporter setup. The manager wires these into its tick and lookup paths.
package observe
