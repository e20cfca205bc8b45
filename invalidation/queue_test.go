package invalidation

import (
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/simcache/cache"
)

func TestQueue_DrainOrdersByPriority(t *testing.T) {
	q := NewQueue()
	at := time.Unix(1000, 0)

	q.Enqueue(Request{CacheID: cache.Pathfinding, Priority: PriorityLow, Timestamp: at})
	q.Enqueue(Request{CacheID: cache.Animation, Priority: PriorityCritical, Timestamp: at})
	q.Enqueue(Request{CacheID: cache.Rendering, Priority: PriorityNormal, Timestamp: at})

	got := q.Drain()
	want := []cache.ID{cache.Animation, cache.Rendering, cache.Pathfinding}
	for i, r := range got {
		if r.CacheID != want[i] {
			t.Errorf("Drain[%d] = %v, want %v", i, r.CacheID, want[i])
		}
	}
}

func TestQueue_DrainOrdersByTimestampWithinPriority(t *testing.T) {
	q := NewQueue()
	at := time.Unix(1000, 0)

	q.Enqueue(Request{CacheID: cache.Rendering, Priority: PriorityNormal, Timestamp: at.Add(time.Second)})
	q.Enqueue(Request{CacheID: cache.Pathfinding, Priority: PriorityNormal, Timestamp: at})

	got := q.Drain()
	if got[0].CacheID != cache.Pathfinding || got[1].CacheID != cache.Rendering {
		t.Errorf("Drain = [%v %v], want oldest first within a priority", got[0].CacheID, got[1].CacheID)
	}
}

func TestQueue_DrainPreservesEnqueueOrderOnTies(t *testing.T) {
	q := NewQueue()
	at := time.Unix(1000, 0)

	ids := []cache.ID{cache.Pathfinding, cache.SpatialQueries, cache.Animation, cache.Rendering}
	for _, id := range ids {
		q.Enqueue(Request{CacheID: id, Priority: PriorityNormal, Timestamp: at})
	}

	got := q.Drain()
	for i, r := range got {
		if r.CacheID != ids[i] {
			t.Errorf("Drain[%d] = %v, want %v (enqueue order on full tie)", i, r.CacheID, ids[i])
		}
	}
}

func TestQueue_DrainEmptiesBacklog(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Request{CacheID: cache.Pathfinding})

	if n := q.Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
	if got := q.Drain(); len(got) != 1 {
		t.Fatalf("Drain = %d requests, want 1", len(got))
	}
	if n := q.Len(); n != 0 {
		t.Errorf("Len = %d after drain, want 0", n)
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("second Drain = %d requests, want 0", len(got))
	}
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Request{CacheID: cache.Pathfinding, Priority: PriorityNormal})
			}
		}()
	}
	wg.Wait()

	if got := len(q.Drain()); got != producers*perProducer {
		t.Errorf("drained %d requests, want %d", got, producers*perProducer)
	}
}
