package hookline

import (
	"context"
	"fmt"
	"time"

	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
	"github.com/hooklinehq/hookline/store"
)

// wireServices initializes the internal services after options have been applied.
func (r *Relay) wireServices() {
	r.validator = NewValidator()

	r.dlqSvc = dlq.NewService(r.store, r.logger)

	r.dispatcher = delivery.NewDispatcher(r.store, r.store, delivery.DispatcherConfig{
		RequestTimeout: r.config.RequestTimeout,
		MaxRetries:     r.config.MaxRetries,
		RetrySchedule:  r.config.RetrySchedule,
		TopKRule:       r.config.TopKRule,
		Metrics:        r.metrics,
		Tracer:         r.tracer,
	}, r.logger)

	r.scheduler = delivery.NewScheduler(r.store, r.store, r.dlqSvc, delivery.SchedulerConfig{
		Concurrency:    r.config.Concurrency,
		PollInterval:   r.config.PollInterval,
		BatchSize:      r.config.BatchSize,
		RequestTimeout: r.config.RequestTimeout,
		RetrySchedule:  r.config.RetrySchedule,
		TopKRule:       r.config.TopKRule,
		Metrics:        r.metrics,
		Tracer:         r.tracer,
	}, r.logger)
}

// Start begins the retry scheduler.
func (r *Relay) Start(ctx context.Context) {
	r.scheduler.Start(ctx)
}

// Stop gracefully shuts down the retry scheduler.
func (r *Relay) Stop(ctx context.Context) {
	r.scheduler.Stop(ctx)
}

// Send durably records an inbound event and fans it out to the project's
// subscribers.
//
// The critical path:
//  1. Validate the event (project ID and payload are required).
//  2. Validate the payload against the JSON Schema (if configured).
//  3. Resolve the document ID via the configured strategy.
//  4. Persist the event — store-then-forward: fan-out never starts for an
//     event the store did not accept.
//  5. Look up the project's subscribers.
//  6. Fan out first attempts concurrently and aggregate the summary.
//
// Forwarding failures are advisory: they appear in the summary, not in the
// returned error. Only validation, storage, and registry failures abort.
func (r *Relay) Send(ctx context.Context, evt *event.Event) (*delivery.Summary, error) {
	// 1. Reject invalid events before any persistence.
	if evt == nil {
		return nil, &ValidationError{Field: "event", Message: "required"}
	}
	if evt.ProjectID == "" {
		return nil, &ValidationError{Field: "project_id", Message: "required"}
	}
	if evt.Payload == nil {
		return nil, &ValidationError{Field: "payload", Message: "required"}
	}

	// 2. Validate payload against schema (if configured).
	if r.config.PayloadSchema != nil {
		if validateErr := r.validator.Validate(r.config.PayloadSchema, evt.Payload); validateErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrPayloadValidationFailed, validateErr.Error())
		}
	}

	// 3. Resolve the document. Resolution failure is non-fatal: the event
	// proceeds without a document.
	docID, resolveErr := r.resolver.Resolve(ctx, evt)
	if resolveErr != nil {
		r.logger.WarnContext(ctx, "document resolution failed",
			"project_id", evt.ProjectID, "client_id", evt.ClientID, "error", resolveErr)
	} else {
		evt.DocumentID = docID
	}

	// 4. Assign ID and timestamps, then persist. A storage failure is fatal
	// to the request: no partial fan-out occurs.
	evt.Entity = entity.New()
	evt.ID = id.NewEventID()
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}

	if createErr := r.store.CreateEvent(ctx, evt); createErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrEventStorage, createErr.Error())
	}

	if r.metrics != nil {
		r.metrics.EventsStoredTotal.Inc()
	}

	// 5. Resolve subscribers. A lookup failure leaves the event stored but
	// not forwarded — a terminal outcome, distinguishable from "no
	// subscribers".
	subs, listErr := r.store.ListSubscribers(ctx, evt.ProjectID)
	if listErr != nil {
		summary := &delivery.Summary{EventID: evt.ID, Outcome: delivery.OutcomeNotForwarded}
		return summary, fmt.Errorf("%w: %s", ErrRegistry, listErr.Error())
	}

	// 6. Fan out and aggregate first-attempt outcomes.
	summary := r.dispatcher.Dispatch(ctx, evt, subs)

	r.logger.DebugContext(ctx, "event relayed",
		"event_id", evt.ID,
		"project_id", evt.ProjectID,
		"outcome", summary.Outcome,
		"attempted", summary.Attempted,
		"skipped", summary.Skipped,
		"failures", len(summary.Failures),
	)

	return summary, nil
}

// Store returns the underlying store.
func (r *Relay) Store() store.Store {
	return r.store
}

// DLQ returns the dead letter queue service.
func (r *Relay) DLQ() *dlq.Service {
	return r.dlqSvc
}
