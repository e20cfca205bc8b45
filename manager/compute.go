package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/simcache/cache"
	"github.com/jonwraymond/simcache/observe"
)

// ComputeFunc produces a value on a cache miss, returning the value and
// its size estimate in bytes.
type ComputeFunc[V any] func(ctx context.Context) (V, uint64, error)

// GetOrCompute returns the cached value for key in the cache registered
// under id, calling compute on a miss and storing the result. Concurrent
// misses for the same key share a single compute call. A value too large
// for the cache's byte budget is returned uncached.
func GetOrCompute[K comparable, V any](ctx context.Context, m *Manager, id cache.ID, key K, compute ComputeFunc[V]) (V, error) {
	var zero V

	c, ok := m.lookup(id)
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrUnknownCacheID, id)
	}
	store, ok := c.(cache.Store[K, V])
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrCacheTypeMismatch, id)
	}

	if v, ok := store.Get(key); ok {
		m.metrics.RecordLookup(ctx, id, true)
		return v, nil
	}
	m.metrics.RecordLookup(ctx, id, false)

	flightKey := fmt.Sprintf("%v\x00%v", id, key)
	v, err, _ := m.sf.Do(flightKey, func() (any, error) {
		ctx, span := m.tracer.StartCompute(ctx, id)
		start := time.Now()
		value, size, err := compute(ctx)
		m.tracer.EndCompute(span, err)
		m.metrics.RecordCompute(ctx, id, time.Since(start), err)
		if err != nil {
			return nil, err
		}

		if ierr := store.Insert(key, value, size); ierr != nil {
			if !errors.Is(ierr, cache.ErrEntryTooLarge) {
				return nil, ierr
			}
			m.logger.WithCache(id).Debug(ctx, "entry exceeds byte budget, skipping cache",
				observe.Field{Key: "size", Value: size})
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(V), nil
}
