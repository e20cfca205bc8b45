package manager

import (
	"context"
	"math"

	"github.com/jonwraymond/simcache/cache"
	"github.com/jonwraymond/simcache/observe"
	"github.com/jonwraymond/simcache/pressure"
)

// HandleMemoryPressure recomputes the pressure level from aggregate
// usage and runs the eviction tier for the current level. Each tier's
// handler encodes the full corrective behavior for that severity, so
// dispatch is on the current level only. Eviction never errors; the only
// non-nil return is the ErrOverBudget diagnostic, emitted when even
// Critical-tier clearing leaves usage above budget. Called once per tick.
func (m *Manager) HandleMemoryPressure(ctx context.Context) (pressure.Level, error) {
	usage := m.totalUsage(ctx)
	level := m.monitor.Update(usage)
	m.metrics.RecordPressure(ctx, level)

	switch level {
	case pressure.LevelNone:
		return level, nil

	case pressure.LevelLow:
		m.evictLowTier(ctx)

	case pressure.LevelMedium:
		m.evictMediumTier(ctx)

	case pressure.LevelHigh:
		m.evictHighTier(ctx)

	case pressure.LevelCritical:
		m.evictCriticalTier(ctx)
		usage = m.totalUsage(ctx)
		m.monitor.Update(usage)
		if usage > m.monitor.Budget() {
			m.overBudgetOnce.Do(func() {
				m.logger.Warn(ctx, "over budget after critical eviction",
					observe.Field{Key: "usage", Value: usage},
					observe.Field{Key: "budget", Value: m.monitor.Budget()})
				if m.cfg.OnOverBudget != nil {
					m.cfg.OnOverBudget(usage, m.monitor.Budget())
				}
			})
			return level, ErrOverBudget
		}
	}
	return level, nil
}

// PressureLevel returns the level computed by the last
// HandleMemoryPressure call.
func (m *Manager) PressureLevel() pressure.Level {
	return m.monitor.Level()
}

// totalUsage sums usage across registered caches and exports the
// per-cache gauge.
func (m *Manager) totalUsage(ctx context.Context) uint64 {
	var total uint64
	for _, reg := range m.snapshot() {
		usage := reg.cache.MemoryUsage()
		m.metrics.RecordMemory(ctx, reg.cache.ID(), usage)
		total += usage
	}
	return total
}

// evictLowTier drops a small fixed fraction from low-priority caches.
func (m *Manager) evictLowTier(ctx context.Context) {
	for _, reg := range m.snapshot() {
		if !reg.lowPriority {
			continue
		}
		m.evictFraction(ctx, reg.cache, m.cfg.LowEvictFraction)
	}
}

// evictMediumTier drops a larger fraction proportionally across every
// cache, each contributing roughly the same share of its own contents.
func (m *Manager) evictMediumTier(ctx context.Context) {
	for _, reg := range m.snapshot() {
		m.evictFraction(ctx, reg.cache, m.cfg.MediumEvictFraction)
	}
}

// evictHighTier keeps only the working set touched within RecentWindow.
// Caches without age tracking lose everything but their most recent
// entries instead. Essential caches are trimmed too; only the Critical
// tier's wholesale clearing spares them.
func (m *Manager) evictHighTier(ctx context.Context) {
	for _, reg := range m.snapshot() {
		c := reg.cache
		if ae, ok := c.(cache.AgeEvicter); ok {
			n := ae.EvictOlderThan(m.cfg.RecentWindow)
			m.metrics.RecordEvictions(ctx, c.ID(), n)
		} else {
			m.evictFraction(ctx, c, 0.9)
		}
		c.ShrinkToFit()
	}
}

// evictCriticalTier clears every non-essential cache outright. Essential
// caches are exempt to avoid a death spiral where the simulation must
// immediately recompute its own eviction inputs.
func (m *Manager) evictCriticalTier(ctx context.Context) {
	for _, reg := range m.snapshot() {
		if reg.essential {
			continue
		}
		c := reg.cache
		n := c.EntryCount()
		c.Clear()
		c.ShrinkToFit()
		m.metrics.RecordEvictions(ctx, c.ID(), n)
		m.logger.WithCache(c.ID()).Info(ctx, "cleared under critical pressure",
			observe.Field{Key: "entries", Value: n})
	}
}

func (m *Manager) evictFraction(ctx context.Context, c cache.Cache, fraction float64) {
	count := int(math.Ceil(float64(c.EntryCount()) * fraction))
	if count == 0 {
		return
	}
	n := c.EvictOldest(count)
	m.metrics.RecordEvictions(ctx, c.ID(), n)
}
