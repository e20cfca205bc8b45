package invalidation

import (
	"time"

	"github.com/jonwraymond/simcache/cache"
)

// StrategyKind selects how an invalidation is applied inside a cache.
type StrategyKind int

const (
	// StrategyFull clears the cache outright.
	StrategyFull StrategyKind = iota

	// StrategySelective drops the named keys.
	StrategySelective

	// StrategySpatial invalidates the grid cells intersecting a disk.
	StrategySpatial

	// StrategyAge drops entries not accessed within MaxAge.
	StrategyAge

	// StrategyKeepRecent keeps only the Keep most recently used entries.
	StrategyKeepRecent
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyFull:
		return "full"
	case StrategySelective:
		return "selective"
	case StrategySpatial:
		return "spatial"
	case StrategyAge:
		return "age"
	case StrategyKeepRecent:
		return "keep_recent"
	default:
		return "unknown"
	}
}

// Strategy describes how to invalidate a cache. Kind selects which
// parameter fields apply. A cache that does not support a strategy is
// cleared outright instead of erroring, so application is never partial.
type Strategy struct {
	Kind StrategyKind

	// Keys are the entries dropped by StrategySelective.
	Keys []any

	// Center and Radius bound StrategySpatial. A rule may leave Radius
	// zero to have them filled from the firing trigger.
	Center cache.Vec2
	Radius float64

	// MaxAge is the access-age cutoff for StrategyAge.
	MaxAge time.Duration

	// Keep is the retained entry count for StrategyKeepRecent.
	Keep int
}

// Materialize fills trigger-dependent parameters from the firing trigger.
func (s Strategy) Materialize(t Trigger) Strategy {
	if s.Kind == StrategySpatial && s.Radius == 0 {
		s.Center = t.Center
		s.Radius = t.Radius
	}
	return s
}
