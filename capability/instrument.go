package capability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Traced runs fn inside a span of the named tracer and records call latency and failures.
func Traced(ctx context.Context, tracerName, op string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()

	meter := otel.Meter(tracerName)
	durationHist, _ := meter.Float64Histogram("capability_call_duration_seconds",
		metric.WithDescription("Time taken by a capability call in seconds"))
	failedCounter, _ := meter.Int64Counter("capability_calls_failed_total",
		metric.WithDescription("Total number of capability calls that failed"))

	attrs := metric.WithAttributes(attribute.String("operation", op))
	start := time.Now()
	err := fn(ctx)
	durationHist.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		failedCounter.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, op+" failed")
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
