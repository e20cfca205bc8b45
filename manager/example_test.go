package manager_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/simcache/cache"
	"github.com/jonwraymond/simcache/invalidation"
	"github.com/jonwraymond/simcache/manager"
)

func ExampleNew() {
	m, err := manager.New(manager.Config{MemoryBudget: 64 << 20})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	spatial := cache.NewSpatial(cache.SpatialQueries, cache.SpatialConfig{CellSize: 50})
	paths := cache.NewLRU[uint64, []uint64](cache.Pathfinding, cache.LRUConfig{MaxEntries: 512})
	if err := m.Register(spatial, manager.Essential()); err != nil {
		fmt.Println("Error:", err)
		return
	}
	if err := m.Register(paths); err != nil {
		fmt.Println("Error:", err)
		return
	}

	// Stale spatial results make cached paths stale too.
	if err := m.AddDependency(cache.SpatialQueries, cache.Pathfinding); err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("Manager ready")
	// Output:
	// Manager ready
}

func ExampleManager_Notify() {
	m, _ := manager.New(manager.Config{})
	spatial := cache.NewSpatial(cache.SpatialQueries, cache.SpatialConfig{CellSize: 50})
	_ = m.Register(spatial)

	// A moving entity dirties the grid cells around its new position.
	_ = m.AddRule(invalidation.Rule{
		Trigger:     invalidation.TriggerKey{Kind: invalidation.EntityMoved},
		Affected:    []cache.ID{cache.SpatialQueries},
		Propagation: invalidation.Propagation{Kind: invalidation.PropagateDeferred},
		Strategy:    invalidation.Strategy{Kind: invalidation.StrategySpatial},
		Priority:    invalidation.PriorityNormal,
	})

	ctx := context.Background()
	m.Notify(ctx, invalidation.Trigger{
		Kind:   invalidation.EntityMoved,
		Entity: 42,
		Center: cache.Vec2{X: 120, Y: 80},
		Radius: 25,
	})

	fmt.Println("pending:", m.PendingInvalidations())
	fmt.Println("processed:", m.ProcessInvalidations(ctx))
	// Output:
	// pending: 1
	// processed: 1
}

func ExampleGetOrCompute() {
	m, _ := manager.New(manager.Config{})
	paths := cache.NewLRU[uint64, string](cache.Pathfinding, cache.LRUConfig{})
	_ = m.Register(paths)

	ctx := context.Background()
	route, err := manager.GetOrCompute(ctx, m, cache.Pathfinding, uint64(7),
		func(ctx context.Context) (string, uint64, error) {
			return "A-star result", 64, nil
		})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println(route)
	// Output:
	// A-star result
}
