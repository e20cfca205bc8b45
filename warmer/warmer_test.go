package warmer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/simcache/cache"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestWarmer_ProducesAndDrains(t *testing.T) {
	producer := func(ctx context.Context, req Request) []Result {
		return []Result{{
			CacheID:  req.CacheID,
			Cell:     cache.CellCoord{X: 1, Y: 2},
			Entities: []uint64{7},
			Size:     8,
		}}
	}
	w := New(Config{Workers: 1}, producer)
	w.Start(context.Background())
	defer w.Stop()

	if !w.Submit(Request{CacheID: cache.SpatialQueries}) {
		t.Fatal("Submit returned false on an empty queue")
	}

	var got []Result
	waitFor(t, func() bool {
		got = append(got, drainAll(w)...)
		return len(got) > 0
	})
	if got[0].CacheID != cache.SpatialQueries || got[0].Cell != (cache.CellCoord{X: 1, Y: 2}) {
		t.Errorf("result = %+v, want the produced cell", got[0])
	}
}

func drainAll(w *Warmer) []Result {
	var out []Result
	w.Drain(func(r Result) { out = append(out, r) })
	return out
}

func TestWarmer_SubmitDropsWhenQueueFull(t *testing.T) {
	// Never started, so nothing consumes the queue.
	w := New(Config{QueueSize: 2}, func(ctx context.Context, req Request) []Result { return nil })

	if !w.Submit(Request{}) || !w.Submit(Request{}) {
		t.Fatal("submissions within the queue bound must succeed")
	}
	if w.Submit(Request{}) {
		t.Error("Submit should report a drop when the queue is full")
	}
	if got := w.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestWarmer_ResultsDropWhenBufferFull(t *testing.T) {
	producer := func(ctx context.Context, req Request) []Result {
		// Three results into a buffer of one.
		return []Result{{Size: 1}, {Size: 2}, {Size: 3}}
	}
	w := New(Config{Workers: 1, ResultBuffer: 1}, producer)
	w.Start(context.Background())
	defer w.Stop()

	w.Submit(Request{})
	waitFor(t, func() bool { return w.Dropped() == 2 })

	if got := len(drainAll(w)); got != 1 {
		t.Errorf("drained %d results, want 1", got)
	}
}

func TestWarmer_StopHaltsWorkers(t *testing.T) {
	var calls atomic.Int64
	producer := func(ctx context.Context, req Request) []Result {
		calls.Add(1)
		return nil
	}
	w := New(Config{Workers: 2}, producer)
	w.Start(context.Background())

	w.Submit(Request{})
	waitFor(t, func() bool { return calls.Load() == 1 })
	w.Stop()

	// Workers are gone, so the request just sits in the queue.
	w.Submit(Request{})
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("producer ran %d times after Stop, want 1", got)
	}
}

func TestWarmer_DrainAfterStop(t *testing.T) {
	var produced atomic.Int64
	producer := func(ctx context.Context, req Request) []Result {
		produced.Add(1)
		return []Result{{Size: 1}}
	}
	w := New(Config{Workers: 1}, producer)
	w.Start(context.Background())

	w.Submit(Request{})
	waitFor(t, func() bool { return produced.Load() == 1 })
	w.Stop()

	// Results buffered before Stop stay drainable.
	waitFor(t, func() bool { return len(drainAll(w)) == 1 })
}

func TestWarmer_StartTwiceIsNoOp(t *testing.T) {
	w := New(Config{Workers: 1}, func(ctx context.Context, req Request) []Result { return nil })
	w.Start(context.Background())
	w.Start(context.Background())
	w.Stop()
}

func TestWarmer_StopWithoutStart(t *testing.T) {
	w := New(Config{}, func(ctx context.Context, req Request) []Result { return nil })
	w.Stop() // must not panic
}
