package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/simcache/cache"
)

// Tracer wraps OpenTelemetry tracing for miss-path compute calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndCompute must be best-effort and must not panic.
type Tracer interface {
	// StartCompute starts a span for computing a missed value.
	StartCompute(ctx context.Context, id cache.ID) (context.Context, trace.Span)

	// EndCompute ends the span, recording any compute error.
	EndCompute(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// NopTracer returns a Tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *tracerImpl) StartCompute(ctx context.Context, id cache.ID) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "cache.compute."+id.String(),
		trace.WithAttributes(
			attribute.String("cache.id", id.String()),
		),
	)
}

func (t *tracerImpl) EndCompute(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Ensure tracerImpl implements Tracer.
var _ Tracer = (*tracerImpl)(nil)
