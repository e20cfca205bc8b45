package cache

// Stats is a snapshot of a cache's lifetime counters.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
}

// statsWindowBuckets is the number of ticks the rolling hit-rate window
// spans. One bucket is rotated out per RotateStats call.
const statsWindowBuckets = 32

// statsWindow tracks hit/miss counts over a rolling window of ticks plus
// lifetime totals. It is not self-synchronized; the owning cache holds
// its own lock around every call.
type statsWindow struct {
	hits   [statsWindowBuckets]uint64
	misses [statsWindowBuckets]uint64
	cur    int
	total  Stats
}

func (w *statsWindow) hit() {
	w.hits[w.cur]++
	w.total.Hits++
}

func (w *statsWindow) miss() {
	w.misses[w.cur]++
	w.total.Misses++
}

func (w *statsWindow) evicted(n int) {
	w.total.Evictions += uint64(n)
}

func (w *statsWindow) invalidated(n int) {
	w.total.Invalidations += uint64(n)
}

// rotate advances to the next bucket, dropping the counts that fall out
// of the window.
func (w *statsWindow) rotate() {
	w.cur = (w.cur + 1) % statsWindowBuckets
	w.hits[w.cur] = 0
	w.misses[w.cur] = 0
}

// hitRate returns the hit ratio over the live window, or 0 when the
// window saw no lookups.
func (w *statsWindow) hitRate() float64 {
	var hits, misses uint64
	for i := 0; i < statsWindowBuckets; i++ {
		hits += w.hits[i]
		misses += w.misses[i]
	}
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (w *statsWindow) snapshot() Stats {
	return w.total
}
