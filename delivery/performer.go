package delivery

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/observability"
	"github.com/hooklinehq/hookline/ratelimit"
	"github.com/hooklinehq/hookline/subscriber"
)

// performer executes one delivery attempt end to end: shape the payload,
// honor the subscriber's rate limit, send, and append the attempt record.
// It is shared by the dispatcher (first attempts) and the scheduler (retries)
// so both paths produce identical audit records.
type performer struct {
	sender  *Sender
	shaper  *Shaper
	limiter *ratelimit.Limiter
	log     attempt.Log
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger
}

// perform runs attempt `number` against the subscriber and appends exactly
// one attempt record, whatever the classification. A failed append is
// reported but never surfaces: the attempt's outcome still stands.
func (p *performer) perform(ctx context.Context, evt *event.Event, sub *subscriber.Subscriber, number int) Result {
	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.StartAttemptSpan(ctx, evt.ID.String(), sub.ID, number)
	}

	if err := p.limiter.Wait(ctx, sub.ID, sub.Options.RateLimit); err != nil {
		p.logger.ErrorContext(ctx, "rate limit wait aborted",
			"event_id", evt.ID, "subscriber_id", sub.ID, "error", err)
	}

	payload := p.shaper.Shape(sub, evt.Payload)
	res := p.sender.Send(ctx, sub, payload, evt.ID, number)

	att := &attempt.Attempt{
		ID:           id.NewAttemptID(),
		EventID:      evt.ID,
		SubscriberID: sub.ID,
		URL:          sub.URL,
		Number:       number,
		StatusCode:   res.StatusCode,
		Response:     res.Response,
		DurationMs:   res.LatencyMs,
		AttemptedAt:  time.Now().UTC(),
	}
	if Classify(res) != Success {
		att.Error = res.FailureReason()
	} else if res.Error != "" {
		// Delivered, but the response body could not be read. The outcome
		// stands; the record keeps the read error instead of dropping it.
		att.Error = res.Error
	}

	if err := p.log.Append(ctx, att); err != nil {
		p.logger.ErrorContext(ctx, "attempt log append failed",
			"event_id", evt.ID, "subscriber_id", sub.ID, "number", number, "error", err)
		if p.metrics != nil {
			p.metrics.LogAppendFailures.Inc()
		}
	}

	if span != nil {
		p.tracer.EndAttemptSpan(span, res.StatusCode, res.LatencyMs, att.Error)
	}

	return res
}
