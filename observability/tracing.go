package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hooklinehq/hookline"

// Tracer wraps the global OpenTelemetry tracer for delivery attempt spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer backed by the globally registered provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// StartAttemptSpan opens a client span covering one outbound delivery
// attempt, original or retry.
func (t *Tracer) StartAttemptSpan(ctx context.Context, eventID, subscriberID string, number int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hookline.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("hookline.event_id", eventID),
			attribute.String("hookline.subscriber_id", subscriberID),
			attribute.Int("hookline.attempt_number", number),
		),
	)
}

// EndAttemptSpan records the attempt outcome on the span and closes it.
// A non-empty err marks the span status as error.
func (t *Tracer) EndAttemptSpan(span trace.Span, statusCode, latencyMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("hookline.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetStatus(codes.Error, err)
	}
	span.End()
}
