package invalidation

import "github.com/jonwraymond/simcache/cache"

// PropagationKind controls when an invalidation reaches its targets and
// how far it travels through the dependency graph.
type PropagationKind int

const (
	// PropagateImmediate applies the invalidation synchronously, as soon
	// as the trigger fires.
	PropagateImmediate PropagationKind = iota

	// PropagateDeferred queues a request for the next drain.
	PropagateDeferred

	// PropagateCascading is deferred delivery with the graph traversal
	// bounded to MaxDepth, to stop indirect invalidation storms.
	PropagateCascading

	// PropagateSelective is deferred delivery with the propagated set
	// filtered through a predicate before acting.
	PropagateSelective
)

func (k PropagationKind) String() string {
	switch k {
	case PropagateImmediate:
		return "immediate"
	case PropagateDeferred:
		return "deferred"
	case PropagateCascading:
		return "cascading"
	case PropagateSelective:
		return "selective"
	default:
		return "unknown"
	}
}

// Propagation pairs a kind with its parameters.
type Propagation struct {
	Kind PropagationKind

	// MaxDepth bounds the traversal for PropagateCascading. Zero means
	// unbounded.
	MaxDepth int

	// Filter keeps only the dependents it accepts, for
	// PropagateSelective. The source cache is always kept. Nil keeps
	// everything.
	Filter func(cache.ID) bool
}

// Rule binds a trigger to the caches it invalidates. Rules are registered
// at startup and immutable afterwards.
type Rule struct {
	Trigger     TriggerKey
	Affected    []cache.ID
	Propagation Propagation
	Strategy    Strategy
	Priority    Priority
}
