package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
	"github.com/hooklinehq/hookline/subscriber"
)

// Service manages the dead letter queue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PushFailed creates a DLQ entry from a terminally failed job. Implements
// delivery.DLQPusher. The subscriber and event may be nil: a job can fail
// terminally because its subscriber was deregistered or its event record is
// gone, and the entry must still be recorded from what the job carries.
func (svc *Service) PushFailed(ctx context.Context, j *delivery.Job, sub *subscriber.Subscriber, evt *event.Event, lastError string, lastStatusCode int) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		JobID:          j.ID,
		EventID:        j.EventID,
		SubscriberID:   j.SubscriberID,
		ProjectID:      j.ProjectID,
		Error:          lastError,
		AttemptCount:   j.AttemptCount,
		LastStatusCode: lastStatusCode,
		FailedAt:       time.Now().UTC(),
	}
	if sub != nil {
		entry.URL = sub.URL
	}
	if evt != nil {
		entry.Payload = evt.Payload
	}

	return svc.store.Push(ctx, entry)
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay re-queues a single DLQ entry for one more delivery attempt. A
// replayed delivery that fails again returns to the DLQ.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) error {
	return svc.store.Replay(ctx, dlqID)
}

// ReplayBulk re-queues all DLQ entries within a time range.
func (svc *Service) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	return svc.store.ReplayBulk(ctx, from, to)
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
