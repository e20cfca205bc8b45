package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/simcache/cache"
	"github.com/jonwraymond/simcache/pressure"
)

// Metrics records cache subsystem events through OpenTelemetry.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic; a nil *Metrics records nothing,
//   so callers never need nil checks.
type Metrics struct {
	lookups       metric.Int64Counter
	evictions     metric.Int64Counter
	invalidations metric.Int64Counter
	computeHist   metric.Float64Histogram
	memoryGauge   metric.Int64Gauge
	pressureGauge metric.Int64Gauge
}

// NewMetrics creates the cache instrument set on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	lookups, err := meter.Int64Counter(
		"cache.lookups.total",
		metric.WithDescription("Total number of cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.evictions.total",
		metric.WithDescription("Total number of evicted entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	invalidations, err := meter.Int64Counter(
		"cache.invalidations.total",
		metric.WithDescription("Total number of invalidations applied"),
		metric.WithUnit("{invalidation}"),
	)
	if err != nil {
		return nil, err
	}

	computeHist, err := meter.Float64Histogram(
		"cache.compute.duration_ms",
		metric.WithDescription("Miss-path compute duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	memoryGauge, err := meter.Int64Gauge(
		"cache.memory.bytes",
		metric.WithDescription("Estimated resident bytes per cache"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	pressureGauge, err := meter.Int64Gauge(
		"cache.pressure.level",
		metric.WithDescription("Current memory pressure level (0=none..4=critical)"),
		metric.WithUnit("{level}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lookups:       lookups,
		evictions:     evictions,
		invalidations: invalidations,
		computeHist:   computeHist,
		memoryGauge:   memoryGauge,
		pressureGauge: pressureGauge,
	}, nil
}

func cacheAttrs(id cache.ID) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("cache.id", id.String()))
}

// RecordLookup records one lookup and its outcome.
func (m *Metrics) RecordLookup(ctx context.Context, id cache.ID, hit bool) {
	if m == nil {
		return
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.id", id.String()),
		attribute.Bool("cache.hit", hit),
	))
}

// RecordEvictions records n evicted entries.
func (m *Metrics) RecordEvictions(ctx context.Context, id cache.ID, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(ctx, int64(n), cacheAttrs(id))
}

// RecordInvalidation records one applied invalidation.
func (m *Metrics) RecordInvalidation(ctx context.Context, id cache.ID) {
	if m == nil {
		return
	}
	m.invalidations.Add(ctx, 1, cacheAttrs(id))
}

// RecordCompute records a miss-path compute call.
func (m *Metrics) RecordCompute(ctx context.Context, id cache.ID, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.computeHist.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("cache.id", id.String()),
		attribute.Bool("cache.compute.error", err != nil),
	))
}

// RecordMemory records a cache's current resident size.
func (m *Metrics) RecordMemory(ctx context.Context, id cache.ID, bytes uint64) {
	if m == nil {
		return
	}
	m.memoryGauge.Record(ctx, int64(bytes), cacheAttrs(id))
}

// RecordPressure records the current pressure level.
func (m *Metrics) RecordPressure(ctx context.Context, level pressure.Level) {
	if m == nil {
		return
	}
	m.pressureGauge.Record(ctx, int64(level), metric.WithAttributes(
		attribute.String("pressure.level", level.String()),
	))
}
