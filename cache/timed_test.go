package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestTimed_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, string](Animation, TimedConfig{
		DefaultTTL: 1 * time.Second,
		Clock:      clock.Now,
	})

	c.Insert("pose", "frame-42", 64)

	clock.Advance(500 * time.Millisecond)
	got, ok := c.Get("pose")
	if !ok || got != "frame-42" {
		t.Fatalf("Get before expiry = (%q, %v), want (frame-42, true)", got, ok)
	}

	clock.Advance(1 * time.Second)
	if _, ok := c.Get("pose"); ok {
		t.Error("Get after expiry should miss")
	}
	if c.MemoryUsage() != 0 {
		t.Errorf("MemoryUsage = %d, want 0 after purge", c.MemoryUsage())
	}
}

func TestTimed_ExpiryAtExactBoundary(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Second,
		Clock:      clock.Now,
	})

	c.Insert("k", 1, 8)
	clock.Advance(1 * time.Second)

	// expires_at <= now means expired.
	if _, ok := c.Get("k"); ok {
		t.Error("entry should be expired exactly at insert_time + ttl")
	}
}

func TestTimed_ReinsertResetsTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Second,
		Clock:      clock.Now,
	})

	c.Insert("k", 1, 8)
	clock.Advance(800 * time.Millisecond)
	c.Insert("k", 2, 8) // TTL resets; the old heap record goes stale

	clock.Advance(800 * time.Millisecond)
	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("Get = (%d, %v), want (2, true) after TTL reset", got, ok)
	}
	if c.MemoryUsage() != 8 {
		t.Errorf("MemoryUsage = %d, want 8", c.MemoryUsage())
	}

	clock.Advance(300 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire one full TTL after the re-insert")
	}
}

func TestTimed_InsertTTLOverride(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Hour,
		Clock:      clock.Now,
	})

	c.InsertTTL("short", 1, 8, 100*time.Millisecond)
	c.Insert("long", 2, 8)

	clock.Advance(200 * time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Error("short should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long should still be cached")
	}
}

func TestTimed_EvictOldestNearestExpiryFirst(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Hour,
		Clock:      clock.Now,
	})

	c.InsertTTL("soon", 1, 8, 1*time.Minute)
	c.InsertTTL("later", 2, 8, 30*time.Minute)
	c.InsertTTL("latest", 3, 8, 1*time.Hour)

	if n := c.EvictOldest(2); n != 2 {
		t.Fatalf("EvictOldest(2) = %d, want 2", n)
	}
	if _, ok := c.Get("soon"); ok {
		t.Error("soon should have been evicted first")
	}
	if _, ok := c.Get("later"); ok {
		t.Error("later should have been evicted second")
	}
	if _, ok := c.Get("latest"); !ok {
		t.Error("latest should have been retained")
	}
}

func TestTimed_EntryTooLarge(t *testing.T) {
	c := NewTimed[string, int](Animation, TimedConfig{MaxBytes: 100})

	if err := c.Insert("huge", 1, 200); !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("Insert = %v, want ErrEntryTooLarge", err)
	}
	if c.EntryCount() != 0 {
		t.Error("rejected insert must leave the cache unchanged")
	}
}

func TestTimed_ByteBudgetSparesIncomingEntry(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		MaxBytes: 100,
		Clock:    clock.Now,
	})

	c.InsertTTL("old", 1, 60, 1*time.Hour)

	// The incoming entry expires soonest, but the budget pass must evict
	// the resident entry rather than the one being inserted.
	if err := c.InsertTTL("new", 2, 60, 1*time.Minute); err != nil {
		t.Fatalf("InsertTTL = %v, want nil", err)
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("freshly inserted entry must survive its own budget pass")
	}
	if _, ok := c.Get("old"); ok {
		t.Error("resident entry should be evicted to make room")
	}
	if got := c.MemoryUsage(); got != 60 {
		t.Errorf("MemoryUsage = %d, want 60", got)
	}

	// The spared heap record stays live: the entry still expires on time.
	clock.Advance(2 * time.Minute)
	if _, ok := c.Get("new"); ok {
		t.Error("spared entry must still honor its TTL")
	}
	if c.EntryCount() != 0 {
		t.Errorf("EntryCount = %d, want 0 after expiry", c.EntryCount())
	}
}

func TestTimed_CapacityEviction(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Hour,
		MaxEntries: 2,
		Clock:      clock.Now,
	})

	c.InsertTTL("a", 1, 8, 1*time.Minute)
	c.InsertTTL("b", 2, 8, 30*time.Minute)
	c.InsertTTL("c", 3, 8, 1*time.Hour)

	if c.EntryCount() != 2 {
		t.Fatalf("EntryCount = %d, want 2", c.EntryCount())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("a had the nearest expiry and should have been evicted")
	}
}

func TestTimed_ClearIdempotent(t *testing.T) {
	c := NewTimed[string, int](Animation, TimedConfig{})

	c.Insert("a", 1, 8)
	c.Clear()
	c.Clear()
	if c.EntryCount() != 0 || c.MemoryUsage() != 0 {
		t.Fatal("Clear twice should leave the same empty state as once")
	}
}

func TestTimed_ShrinkToFitDropsStaleHeapRecords(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Hour,
		Clock:      clock.Now,
	})

	// Re-inserting piles up superseded heap records.
	for i := 0; i < 100; i++ {
		c.Insert("k", i, 8)
	}
	c.ShrinkToFit()

	if len(c.expiry) != 1 {
		t.Errorf("expiry heap holds %d records, want 1 after shrink", len(c.expiry))
	}
	got, ok := c.Get("k")
	if !ok || got != 99 {
		t.Errorf("Get = (%d, %v), want (99, true)", got, ok)
	}
}

func TestTimed_EvictOlderThan(t *testing.T) {
	clock := newFakeClock()
	c := NewTimed[string, int](Animation, TimedConfig{
		DefaultTTL: 1 * time.Hour,
		Clock:      clock.Now,
	})

	c.Insert("stale", 1, 8)
	clock.Advance(10 * time.Second)
	c.Insert("fresh", 2, 8)

	if n := c.EvictOlderThan(5 * time.Second); n != 1 {
		t.Fatalf("EvictOlderThan = %d, want 1", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh should have been retained")
	}
}

func TestTimed_ConcurrentAccess(t *testing.T) {
	c := NewTimed[int, int](Animation, TimedConfig{DefaultTTL: 1 * time.Minute, MaxEntries: 128})

	const numGoroutines = 16
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for g := 0; g < numGoroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := i % 64
				if i%2 == 0 {
					c.Insert(key, i, 8)
				} else {
					c.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if got, want := c.MemoryUsage(), uint64(c.EntryCount())*8; got != want {
		t.Errorf("MemoryUsage = %d, want %d for %d entries", got, want, c.EntryCount())
	}
}

func BenchmarkTimed_GetHit(b *testing.B) {
	c := NewTimed[string, int](Animation, TimedConfig{DefaultTTL: 1 * time.Hour, MaxEntries: 1024})
	for i := 0; i < 512; i++ {
		c.Insert(fmt.Sprintf("k%d", i), i, 16)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("k%d", i%512))
	}
}
