package manager

import "github.com/jonwraymond/simcache/cache"

// CacheMetrics is the per-cache diagnostics snapshot polled by profiling
// and debug overlays.
type CacheMetrics struct {
	HitRate       float64
	MemoryUsage   uint64
	EntryCount    int
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
}

// Metrics returns a diagnostics snapshot for every registered cache.
func (m *Manager) Metrics() map[cache.ID]CacheMetrics {
	out := make(map[cache.ID]CacheMetrics)
	for _, reg := range m.snapshot() {
		c := reg.cache
		stats := c.Stats()
		out[c.ID()] = CacheMetrics{
			HitRate:       c.HitRate(),
			MemoryUsage:   c.MemoryUsage(),
			EntryCount:    c.EntryCount(),
			Hits:          stats.Hits,
			Misses:        stats.Misses,
			Evictions:     stats.Evictions,
			Invalidations: stats.Invalidations,
		}
	}
	return out
}

// TotalMemoryUsage sums current usage across every registered cache.
func (m *Manager) TotalMemoryUsage() uint64 {
	var total uint64
	for _, reg := range m.snapshot() {
		total += reg.cache.MemoryUsage()
	}
	return total
}
