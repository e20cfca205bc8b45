package pressure

import (
	"errors"
	"sync/atomic"
)

// Level is the discrete memory-pressure severity.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Sentinel errors for monitor configuration.
var (
	ErrZeroBudget        = errors.New("pressure: budget must be positive")
	ErrInvalidThresholds = errors.New("pressure: thresholds must be ascending fractions in (0, 1]")
)

// Thresholds are the usage/budget fractions at which each level begins.
type Thresholds struct {
	Low      float64
	Medium   float64
	High     float64
	Critical float64

	// Hysteresis widens the downward edge of each boundary so the level
	// does not flap when usage hovers on a threshold. Expressed as a
	// fraction of budget. Default: 0 (off).
	Hysteresis float64
}

// DefaultThresholds returns the standard tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:      0.60,
		Medium:   0.75,
		High:     0.85,
		Critical: 0.95,
	}
}

// Validate checks that the thresholds are usable.
func (t Thresholds) Validate() error {
	bounds := []float64{t.Low, t.Medium, t.High, t.Critical}
	prev := 0.0
	for _, b := range bounds {
		if b <= prev || b > 1 {
			return ErrInvalidThresholds
		}
		prev = b
	}
	if t.Hysteresis < 0 || t.Hysteresis >= t.Low {
		return ErrInvalidThresholds
	}
	return nil
}

// level returns the raw level for a usage ratio.
func (t Thresholds) level(ratio float64) Level {
	switch {
	case ratio >= t.Critical:
		return LevelCritical
	case ratio >= t.High:
		return LevelHigh
	case ratio >= t.Medium:
		return LevelMedium
	case ratio >= t.Low:
		return LevelLow
	default:
		return LevelNone
	}
}

// Monitor tracks aggregate cache usage against a fixed byte budget.
//
// Contract:
// - Concurrency: safe for concurrent use; usage and level are atomics,
//   so readers on worker threads never block the tick that updates them.
// - Derivation: the level is only recomputed by Update, which the owning
//   manager calls once per tick.
type Monitor struct {
	budget     uint64
	thresholds Thresholds
	usage      atomic.Uint64
	level      atomic.Int32
}

// NewMonitor creates a monitor for the given byte budget.
func NewMonitor(budget uint64, thresholds Thresholds) (*Monitor, error) {
	if budget == 0 {
		return nil, ErrZeroBudget
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{budget: budget, thresholds: thresholds}, nil
}

// Budget returns the configured byte budget.
func (m *Monitor) Budget() uint64 { return m.budget }

// Usage returns the last recorded aggregate usage in bytes.
func (m *Monitor) Usage() uint64 { return m.usage.Load() }

// Ratio returns the last recorded usage as a fraction of budget.
func (m *Monitor) Ratio() float64 {
	return float64(m.usage.Load()) / float64(m.budget)
}

// Level returns the current pressure level.
func (m *Monitor) Level() Level { return Level(m.level.Load()) }

// Update records the current aggregate usage and recomputes the level.
// With hysteresis configured, a downward transition additionally requires
// usage to clear the boundary by the hysteresis margin; upward
// transitions are never delayed.
func (m *Monitor) Update(usage uint64) Level {
	m.usage.Store(usage)
	ratio := float64(usage) / float64(m.budget)

	cur := Level(m.level.Load())
	next := m.thresholds.level(ratio)
	if next < cur && m.thresholds.Hysteresis > 0 {
		held := m.thresholds.level(ratio + m.thresholds.Hysteresis)
		if held > next {
			next = held
		}
		if next > cur {
			next = cur
		}
	}
	m.level.Store(int32(next))
	return next
}
