package cache

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Vec2 is a 2D world position.
type Vec2 struct {
	X, Y float64
}

// CellCoord addresses one grid cell. Cell (x, y) covers the half-open
// world rectangle [x*size, (x+1)*size) × [y*size, (y+1)*size).
type CellCoord struct {
	X, Y int32
}

// CellState reports what the spatial cache knows about a cell.
type CellState int

const (
	// CellMissing means the cell was never computed.
	CellMissing CellState = iota

	// CellDirty means the cell was invalidated and needs recomputation.
	CellDirty

	// CellCached means the cell holds a current entity list.
	CellCached
)

func (s CellState) String() string {
	switch s {
	case CellMissing:
		return "missing"
	case CellDirty:
		return "dirty"
	case CellCached:
		return "cached"
	default:
		return "unknown"
	}
}

// SpatialConfig configures a spatial cache.
type SpatialConfig struct {
	// CellSize is the world-unit edge length of one grid cell.
	// Default: 50
	CellSize float64

	// MaxQueryEntries caps the query-result LRU.
	// Default: 256
	MaxQueryEntries int

	// MaxQueryBytes caps the query-result LRU's byte budget. Zero means
	// no byte budget.
	MaxQueryBytes uint64

	// Clock overrides the time source, mainly for tests.
	// Default: time.Now
	Clock func() time.Time
}

type cellEntry struct {
	entities   []uint64
	size       uint64
	lastAccess time.Time
}

// Spatial caches spatial proximity results: a grid of per-cell entity
// lists plus an LRU of arbitrary query results keyed by string. Area
// invalidation removes exactly the grid cells whose bounds intersect the
// given disk and clears the query LRU wholesale, since any cached query
// may have sampled entities whose cell membership is now stale.
//
// Cells that were invalidated but not yet recomputed are tracked in a
// dirty set, so a lookup can distinguish "never computed" from
// "recompute needed".
//
// Contract:
// - Concurrency: safe for concurrent use (single internal mutex).
// - Accounting: MemoryUsage covers both the grid and the query LRU.
type Spatial struct {
	mu      sync.Mutex
	id      ID
	cfg     SpatialConfig
	cells   map[CellCoord]*cellEntry
	dirty   map[CellCoord]struct{}
	queries *LRU[string, []uint64]
	bytes   uint64
	stats   statsWindow
}

// NewSpatial creates a spatial cache registered under id.
func NewSpatial(id ID, cfg SpatialConfig) *Spatial {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 50
	}
	if cfg.MaxQueryEntries <= 0 {
		cfg.MaxQueryEntries = 256
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Spatial{
		id:    id,
		cfg:   cfg,
		cells: make(map[CellCoord]*cellEntry),
		dirty: make(map[CellCoord]struct{}),
		queries: NewLRU[string, []uint64](id, LRUConfig{
			MaxEntries: cfg.MaxQueryEntries,
			MaxBytes:   cfg.MaxQueryBytes,
			Clock:      cfg.Clock,
		}),
	}
}

// CellAt returns the grid cell containing the world position.
func (c *Spatial) CellAt(pos Vec2) CellCoord {
	return CellCoord{
		X: int32(math.Floor(pos.X / c.cfg.CellSize)),
		Y: int32(math.Floor(pos.Y / c.cfg.CellSize)),
	}
}

// LookupCell returns the cached entity list for a cell and the cell's
// state. Only CellCached carries a usable list.
func (c *Spatial) LookupCell(coord CellCoord) ([]uint64, CellState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.cells[coord]; ok {
		e.lastAccess = c.cfg.Clock()
		c.stats.hit()
		return e.entities, CellCached
	}
	c.stats.miss()
	if _, ok := c.dirty[coord]; ok {
		return nil, CellDirty
	}
	return nil, CellMissing
}

// PeekCell reports a cell's state without touching recency or the
// hit-rate window.
func (c *Spatial) PeekCell(coord CellCoord) CellState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cells[coord]; ok {
		return CellCached
	}
	if _, ok := c.dirty[coord]; ok {
		return CellDirty
	}
	return CellMissing
}

// StoreCell records the entity list for a cell, clearing its dirty flag.
func (c *Spatial) StoreCell(coord CellCoord, entities []uint64, size uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.cells[coord]; ok {
		c.bytes -= old.size
	}
	c.cells[coord] = &cellEntry{
		entities:   entities,
		size:       size,
		lastAccess: c.cfg.Clock(),
	}
	c.bytes += size
	delete(c.dirty, coord)
}

// LookupQuery returns a cached query result by key.
func (c *Spatial) LookupQuery(key string) ([]uint64, bool) {
	entities, ok := c.queries.Get(key)
	c.mu.Lock()
	if ok {
		c.stats.hit()
	} else {
		c.stats.miss()
	}
	c.mu.Unlock()
	return entities, ok
}

// StoreQuery caches a query result under key.
func (c *Spatial) StoreQuery(key string, entities []uint64, size uint64) error {
	return c.queries.Insert(key, entities, size)
}

// InvalidateArea removes every grid cell whose bounds intersect the disk
// (center, radius), marks those cells dirty, and clears the query LRU
// outright. Cells strictly outside the disk are untouched. Returns the
// number of cells removed.
func (c *Spatial) InvalidateArea(center Vec2, radius float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if radius < 0 {
		return 0
	}

	size := c.cfg.CellSize
	minX := int32(math.Floor((center.X - radius) / size))
	maxX := int32(math.Floor((center.X + radius) / size))
	minY := int32(math.Floor((center.Y - radius) / size))
	maxY := int32(math.Floor((center.Y + radius) / size))

	removed := 0
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			coord := CellCoord{X: x, Y: y}
			if !c.cellIntersectsDisk(coord, center, radius) {
				continue
			}
			if e, ok := c.cells[coord]; ok {
				c.bytes -= e.size
				delete(c.cells, coord)
				removed++
			}
			c.dirty[coord] = struct{}{}
		}
	}
	c.stats.invalidated(removed)

	// Any cached query may have sampled the invalidated cells, so the
	// whole query cache goes.
	c.queries.Clear()
	return removed
}

// cellIntersectsDisk tests the cell's world rectangle against the disk by
// clamping the disk center into the rectangle.
func (c *Spatial) cellIntersectsDisk(coord CellCoord, center Vec2, radius float64) bool {
	size := c.cfg.CellSize
	minX, minY := float64(coord.X)*size, float64(coord.Y)*size
	maxX, maxY := minX+size, minY+size

	cx := math.Min(math.Max(center.X, minX), maxX)
	cy := math.Min(math.Max(center.Y, minY), maxY)
	dx, dy := center.X-cx, center.Y-cy
	return dx*dx+dy*dy <= radius*radius
}

// DirtyCells returns the cells invalidated but not yet recomputed.
func (c *Spatial) DirtyCells() []CellCoord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CellCoord, 0, len(c.dirty))
	for coord := range c.dirty {
		out = append(out, coord)
	}
	return out
}

// InvalidateKey implements KeyInvalidator. A CellCoord removes that grid
// cell and marks it dirty; a string drops the matching query result.
func (c *Spatial) InvalidateKey(key any) bool {
	switch k := key.(type) {
	case CellCoord:
		c.mu.Lock()
		defer c.mu.Unlock()
		e, ok := c.cells[k]
		if !ok {
			return false
		}
		c.bytes -= e.size
		delete(c.cells, k)
		c.dirty[k] = struct{}{}
		c.stats.invalidated(1)
		return true
	case string:
		return c.queries.Invalidate(k)
	default:
		return false
	}
}

// EvictOldest removes up to n entries, least recently accessed grid
// cells first, then query results once the grid is exhausted.
func (c *Spatial) EvictOldest(n int) int {
	if n <= 0 {
		return 0
	}

	c.mu.Lock()
	type aged struct {
		coord CellCoord
		at    time.Time
	}
	order := make([]aged, 0, len(c.cells))
	for coord, e := range c.cells {
		order = append(order, aged{coord: coord, at: e.lastAccess})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].at.Before(order[j].at) })
	evicted := n
	if evicted > len(order) {
		evicted = len(order)
	}
	for _, a := range order[:evicted] {
		c.bytes -= c.cells[a.coord].size
		delete(c.cells, a.coord)
	}
	c.stats.evicted(evicted)
	c.mu.Unlock()

	if evicted < n {
		evicted += c.queries.EvictOldest(n - evicted)
	}
	return evicted
}

// EvictOlderThan implements AgeEvicter for grid cells and query
// results alike: both sides of the cache honor the same cutoff.
func (c *Spatial) EvictOlderThan(age time.Duration) int {
	c.mu.Lock()
	cutoff := c.cfg.Clock().Add(-age)
	evicted := 0
	for coord, e := range c.cells {
		if e.lastAccess.Before(cutoff) {
			c.bytes -= e.size
			delete(c.cells, coord)
			evicted++
		}
	}
	c.stats.evicted(evicted)
	c.mu.Unlock()

	return evicted + c.queries.EvictOlderThan(age)
}

// Clear removes the grid, the dirty set, and the query LRU. Idempotent.
func (c *Spatial) Clear() {
	c.mu.Lock()
	c.stats.invalidated(len(c.cells))
	c.cells = make(map[CellCoord]*cellEntry)
	c.dirty = make(map[CellCoord]struct{})
	c.bytes = 0
	c.mu.Unlock()

	c.queries.Clear()
}

// ShrinkToFit rebuilds the cell map and compacts the query LRU.
func (c *Spatial) ShrinkToFit() {
	c.mu.Lock()
	cells := make(map[CellCoord]*cellEntry, len(c.cells))
	for coord, e := range c.cells {
		cells[coord] = e
	}
	c.cells = cells
	c.mu.Unlock()

	c.queries.ShrinkToFit()
}

// ID implements Cache.
func (c *Spatial) ID() ID { return c.id }

// MemoryUsage implements Cache.
func (c *Spatial) MemoryUsage() uint64 {
	c.mu.Lock()
	grid := c.bytes
	c.mu.Unlock()
	return grid + c.queries.MemoryUsage()
}

// EntryCount implements Cache.
func (c *Spatial) EntryCount() int {
	c.mu.Lock()
	n := len(c.cells)
	c.mu.Unlock()
	return n + c.queries.EntryCount()
}

// HitRate implements Cache. Grid and query lookups share one window.
func (c *Spatial) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.hitRate()
}

// Stats implements Cache.
func (c *Spatial) Stats() Stats {
	c.mu.Lock()
	s := c.stats.snapshot()
	c.mu.Unlock()

	qs := c.queries.Stats()
	s.Evictions += qs.Evictions
	s.Invalidations += qs.Invalidations
	return s
}

// RotateStats implements Cache.
func (c *Spatial) RotateStats() {
	c.mu.Lock()
	c.stats.rotate()
	c.mu.Unlock()

	c.queries.RotateStats()
}

// Ensure Spatial implements the cache interfaces.
var (
	_ Cache           = (*Spatial)(nil)
	_ KeyInvalidator  = (*Spatial)(nil)
	_ AgeEvicter      = (*Spatial)(nil)
	_ AreaInvalidator = (*Spatial)(nil)
)
