package delivery

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
	"github.com/hooklinehq/hookline/observability"
	"github.com/hooklinehq/hookline/ratelimit"
	"github.com/hooklinehq/hookline/subscriber"
)

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	RequestTimeout time.Duration
	MaxRetries     int
	RetrySchedule  []time.Duration
	TopKRule       TopKRule
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Dispatcher fans one event out to its subscribers: each subscriber with a
// usable URL gets exactly one concurrent first attempt, classified and
// recorded independently. Retry-eligible failures are handed to the retry
// queue; everything else resolves synchronously.
type Dispatcher struct {
	performer *performer
	retrier   *Retrier
	queue     Store
	config    DispatcherConfig
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher writing attempts to log and retry jobs
// to queue.
func NewDispatcher(log attempt.Log, queue Store, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		performer: &performer{
			sender:  NewSender(cfg.RequestTimeout),
			shaper:  NewShaper(cfg.TopKRule),
			limiter: ratelimit.New(),
			log:     log,
			metrics: cfg.Metrics,
			tracer:  cfg.Tracer,
			logger:  logger,
		},
		retrier: NewRetrier(cfg.RetrySchedule),
		queue:   queue,
		config:  cfg,
		logger:  logger,
	}
}

// Dispatch attempts delivery to every subscriber with a usable URL,
// concurrently, and aggregates the first-attempt outcomes. It returns once
// all first attempts resolve; scheduled retries run out-of-band and never
// hold the caller open.
//
// Delivery and logging integrity outrank caller cancellation: attempts run
// on a context detached from the caller's, so a disconnect mid-fan-out
// never aborts in-flight attempts.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *event.Event, subs []*subscriber.Subscriber) *Summary {
	summary := &Summary{EventID: evt.ID, Outcome: OutcomeStored}

	if len(subs) == 0 {
		return summary
	}

	// At-least-once: first attempts complete even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	type subResult struct {
		sub *subscriber.Subscriber
		res Result
	}

	var wg sync.WaitGroup
	results := make(chan subResult, len(subs))

	for _, sub := range subs {
		if !usableURL(sub.URL) {
			summary.Skipped++
			if d.config.Metrics != nil {
				d.config.Metrics.SubscribersSkipped.Inc()
			}
			d.logger.DebugContext(ctx, "subscriber skipped",
				"event_id", evt.ID, "subscriber_id", sub.ID, "url", sub.URL)
			continue
		}

		summary.Attempted++
		wg.Add(1)
		go func(sub *subscriber.Subscriber) {
			defer wg.Done()
			results <- subResult{sub: sub, res: d.performer.perform(ctx, evt, sub, 1)}
		}(sub)
	}

	wg.Wait()
	close(results)

	if summary.Attempted > 0 {
		summary.Outcome = OutcomeForwarded
	}

	for sr := range results {
		latencySeconds := float64(sr.res.LatencyMs) / 1000.0

		if Classify(sr.res) == Success {
			if d.config.Metrics != nil {
				d.config.Metrics.RecordAttempt("delivered", latencySeconds)
			}
			d.logger.DebugContext(ctx, "delivered",
				"event_id", evt.ID, "subscriber_id", sr.sub.ID, "status", sr.res.StatusCode)
			continue
		}

		retrying := Retryable(sr.res) && d.config.MaxRetries > 0
		if retrying {
			retrying = d.scheduleRetry(ctx, evt, sr.sub, sr.res)
		}

		summary.Failures = append(summary.Failures, Failure{
			SubscriberID: sr.sub.ID,
			URL:          sr.sub.URL,
			StatusCode:   sr.res.StatusCode,
			Reason:       sr.res.FailureReason(),
			Retrying:     retrying,
		})

		if d.config.Metrics != nil {
			outcome := "failed"
			if retrying {
				outcome = "retried"
			}
			d.config.Metrics.RecordAttempt(outcome, latencySeconds)
		}
	}

	if len(summary.Failures) > 0 {
		summary.Outcome = OutcomeForwardedWithFailures
		// Stable order for reproducible reporting.
		sort.Slice(summary.Failures, func(i, j int) bool {
			return summary.Failures[i].SubscriberID < summary.Failures[j].SubscriberID
		})
	}

	return summary
}

// scheduleRetry enqueues a retry job for a failed first attempt. Reports
// whether the job was accepted by the queue.
func (d *Dispatcher) scheduleRetry(ctx context.Context, evt *event.Event, sub *subscriber.Subscriber, res Result) bool {
	j := &Job{
		Entity:         entity.New(),
		ID:             id.NewJobID(),
		EventID:        evt.ID,
		SubscriberID:   sub.ID,
		ProjectID:      sub.ProjectID,
		State:          StatePending,
		AttemptCount:   1,
		MaxRetries:     d.config.MaxRetries,
		NextAttemptAt:  d.retrier.ComputeNextAttempt(1),
		LastError:      res.FailureReason(),
		LastStatusCode: res.StatusCode,
		LastLatencyMs:  res.LatencyMs,
	}

	if err := d.queue.Enqueue(ctx, j); err != nil {
		d.logger.ErrorContext(ctx, "enqueue retry failed",
			"event_id", evt.ID, "subscriber_id", sub.ID, "error", err)
		return false
	}

	if d.config.Metrics != nil {
		d.config.Metrics.PendingRetries.Inc()
	}
	d.logger.DebugContext(ctx, "retry scheduled",
		"event_id", evt.ID, "subscriber_id", sub.ID, "next_at", j.NextAttemptAt)
	return true
}

// usableURL reports whether a subscriber URL can be attempted at all.
// Empty or malformed URLs are skipped entirely and never counted as
// delivery attempts.
func usableURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
