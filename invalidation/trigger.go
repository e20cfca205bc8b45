package invalidation

import (
	"time"

	"github.com/jonwraymond/simcache/cache"
	"github.com/jonwraymond/simcache/pressure"
)

// TriggerKind enumerates the events that can fire invalidation rules.
type TriggerKind int

const (
	// EntityMoved fires when an entity's world position changed.
	EntityMoved TriggerKind = iota

	// ComponentChanged fires when a named component on an entity changed.
	ComponentChanged

	// TimeElapsed fires on coarse time advances (season ticks, weather).
	TimeElapsed

	// MemoryPressureChanged fires when the pressure level moved.
	MemoryPressureChanged

	// CustomTrigger fires for application-defined trigger codes. Rules
	// match on the code, so unrelated custom triggers stay independent.
	CustomTrigger
)

func (k TriggerKind) String() string {
	switch k {
	case EntityMoved:
		return "entity_moved"
	case ComponentChanged:
		return "component_changed"
	case TimeElapsed:
		return "time_elapsed"
	case MemoryPressureChanged:
		return "memory_pressure_changed"
	case CustomTrigger:
		return "custom"
	default:
		return "unknown"
	}
}

// Trigger is one mutating event submitted by a simulation system. Kind
// selects which rules fire; the remaining fields carry the payload a
// matched strategy may need.
type Trigger struct {
	Kind TriggerKind

	// Entity, Center, and Radius describe an EntityMoved event.
	Entity uint64
	Center cache.Vec2
	Radius float64

	// Component names the changed component for ComponentChanged.
	Component string

	// Elapsed is the advance reported by a TimeElapsed event.
	Elapsed time.Duration

	// Level is the new level for MemoryPressureChanged.
	Level pressure.Level

	// Code distinguishes CustomTrigger events.
	Code uint32
}

// TriggerKey is the lookup key rules are registered under. Code is only
// meaningful for CustomTrigger.
type TriggerKey struct {
	Kind TriggerKind
	Code uint32
}

// Key returns the rule-table key this trigger matches.
func (t Trigger) Key() TriggerKey {
	key := TriggerKey{Kind: t.Kind}
	if t.Kind == CustomTrigger {
		key.Code = t.Code
	}
	return key
}
