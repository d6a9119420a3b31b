package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/observability"
	"github.com/hooklinehq/hookline/ratelimit"
	"github.com/hooklinehq/hookline/subscriber"
)

// SchedulerStore is the interface the scheduler needs to drive retries.
type SchedulerStore interface {
	Dequeue(ctx context.Context, limit int) ([]*Job, error)
	UpdateJob(ctx context.Context, j *Job) error
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	GetSubscriber(ctx context.Context, projectID, subID string) (*subscriber.Subscriber, error)
}

// DLQPusher records permanently failed deliveries in the dead letter queue.
type DLQPusher interface {
	PushFailed(ctx context.Context, j *Job, sub *subscriber.Subscriber, evt *event.Event, lastError string, lastStatusCode int) error
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	RetrySchedule  []time.Duration
	TopKRule       TopKRule
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Scheduler is the retry worker pool. It polls the retry queue for jobs
// whose backoff has elapsed and re-executes the delivery steps against the
// same subscriber with an incremented attempt number, out-of-band from any
// inbound request. Jobs for different subscribers are processed
// independently and concurrently.
type Scheduler struct {
	store   SchedulerStore
	retrier *Retrier
	perf    *performer
	dlq     DLQPusher
	config  SchedulerConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a retry scheduler.
func NewScheduler(store SchedulerStore, log attempt.Log, dlq DLQPusher, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		retrier: NewRetrier(cfg.RetrySchedule),
		perf: &performer{
			sender:  NewSender(cfg.RequestTimeout),
			shaper:  NewShaper(cfg.TopKRule),
			limiter: ratelimit.New(),
			log:     log,
			metrics: cfg.Metrics,
			tracer:  cfg.Tracer,
			logger:  logger,
		},
		dlq:    dlq,
		config: cfg,
		logger: logger,
	}
}

// Start begins the retry workers and poll loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight retries to complete.
// Already-claimed retries run to completion: delivery and logging integrity
// outrank shutdown speed.
func (s *Scheduler) Stop(_ context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// pollLoop periodically dequeues due jobs and dispatches them to workers.
func (s *Scheduler) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, s.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := s.store.Dequeue(ctx, s.config.BatchSize)
			if err != nil {
				s.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, j := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				s.wg.Add(1)
				go func(job *Job) {
					defer s.wg.Done()
					defer func() { <-sem }()
					s.process(ctx, job)
				}(j)
			}
		}
	}
}

// process handles one claimed job: fetch subscriber + event, re-attempt,
// decide, update.
func (s *Scheduler) process(ctx context.Context, j *Job) {
	// A claimed retry runs to completion even if Stop was requested.
	ctx = context.WithoutCancel(ctx)

	sub, err := s.store.GetSubscriber(ctx, j.ProjectID, j.SubscriberID)
	if err != nil {
		// The registry mutates independently of the retry queue: a
		// subscriber present at enqueue time may be gone now. That is
		// terminal, not transient.
		if errors.Is(err, subscriber.ErrNotFound) {
			s.failWithoutAttempt(ctx, j, nil, nil, "subscriber no longer registered")
			return
		}
		s.reschedule(ctx, j, "get subscriber failed", err)
		return
	}

	evt, err := s.store.GetEvent(ctx, j.EventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			s.failWithoutAttempt(ctx, j, sub, nil, "event record missing")
			return
		}
		s.reschedule(ctx, j, "get event failed", err)
		return
	}

	j.AttemptCount++
	res := s.perf.perform(ctx, evt, sub, j.AttemptCount)

	j.LastStatusCode = res.StatusCode
	j.LastLatencyMs = res.LatencyMs
	if Classify(res) != Success {
		j.LastError = res.FailureReason()
	}

	latencySeconds := float64(res.LatencyMs) / 1000.0

	switch s.retrier.Decide(res, j) {
	case Delivered:
		now := time.Now().UTC()
		j.State = StateSucceeded
		j.CompletedAt = &now
		j.LastError = ""
		if s.config.Metrics != nil {
			s.config.Metrics.RecordAttempt("delivered", latencySeconds)
			s.config.Metrics.PendingRetries.Dec()
		}
		s.logger.DebugContext(ctx, "retry delivered",
			"job_id", j.ID, "attempt", j.AttemptCount, "status", res.StatusCode)

	case Retry:
		j.State = StatePending
		j.NextAttemptAt = s.retrier.ComputeNextAttempt(j.AttemptCount)
		if s.config.Metrics != nil {
			s.config.Metrics.RecordAttempt("retried", latencySeconds)
		}
		s.logger.DebugContext(ctx, "retry rescheduled",
			"job_id", j.ID, "attempt", j.AttemptCount, "next_at", j.NextAttemptAt)

	case Fail:
		now := time.Now().UTC()
		j.State = StateFailed
		j.CompletedAt = &now
		if s.dlq != nil {
			if dlqErr := s.dlq.PushFailed(ctx, j, sub, evt, j.LastError, res.StatusCode); dlqErr != nil {
				s.logger.ErrorContext(ctx, "push to DLQ failed",
					"job_id", j.ID, "error", dlqErr)
			}
		}
		if s.config.Metrics != nil {
			s.config.Metrics.RecordAttempt("failed", latencySeconds)
			s.config.Metrics.PendingRetries.Dec()
			s.config.Metrics.DLQSize.Inc()
		}
		s.logger.WarnContext(ctx, "delivery failed permanently",
			"job_id", j.ID, "subscriber_id", j.SubscriberID, "status", res.StatusCode, "error", j.LastError)
	}

	if updateErr := s.store.UpdateJob(ctx, j); updateErr != nil {
		s.logger.ErrorContext(ctx, "update job failed",
			"job_id", j.ID, "error", updateErr)
	}
}

// reschedule returns a claimed job to the queue after a transient store
// failure. The skipped poll consumes a retry slot so that a persistently
// failing lookup cannot keep a job circulating past its retry window.
func (s *Scheduler) reschedule(ctx context.Context, j *Job, msg string, cause error) {
	s.logger.ErrorContext(ctx, msg, "job_id", j.ID, "error", cause)

	j.AttemptCount++
	j.LastError = fmt.Sprintf("%s: %v", msg, cause)
	if j.AttemptCount > j.MaxRetries {
		s.failWithoutAttempt(ctx, j, nil, nil, j.LastError)
		return
	}

	j.State = StatePending
	j.NextAttemptAt = s.retrier.ComputeNextAttempt(j.AttemptCount)
	if err := s.store.UpdateJob(ctx, j); err != nil {
		s.logger.ErrorContext(ctx, "reschedule job failed", "job_id", j.ID, "error", err)
	}
}

// failWithoutAttempt terminally fails a job whose inputs could not be
// loaded. No HTTP attempt is possible, so nothing is appended to the
// attempt log; the job still lands in the dead letter queue so the failure
// is auditable.
func (s *Scheduler) failWithoutAttempt(ctx context.Context, j *Job, sub *subscriber.Subscriber, evt *event.Event, reason string) {
	now := time.Now().UTC()
	j.State = StateFailed
	j.CompletedAt = &now
	j.LastError = reason

	if s.dlq != nil {
		if err := s.dlq.PushFailed(ctx, j, sub, evt, reason, j.LastStatusCode); err != nil {
			s.logger.ErrorContext(ctx, "push to DLQ failed", "job_id", j.ID, "error", err)
		}
	}
	if s.config.Metrics != nil {
		s.config.Metrics.PendingRetries.Dec()
		s.config.Metrics.DLQSize.Inc()
	}
	s.logger.WarnContext(ctx, "delivery failed permanently",
		"job_id", j.ID, "subscriber_id", j.SubscriberID, "error", reason)

	if err := s.store.UpdateJob(ctx, j); err != nil {
		s.logger.ErrorContext(ctx, "update job failed", "job_id", j.ID, "error", err)
	}
}
