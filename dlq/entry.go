package dlq

import (
	"time"

	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
)

// Entry represents a permanently failed delivery in the dead letter queue.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// JobID references the failed retry job.
	JobID id.ID `json:"job_id"`

	// EventID references the original event.
	EventID id.ID `json:"event_id"`

	// SubscriberID references the target subscriber.
	SubscriberID string `json:"subscriber_id"`

	// ProjectID identifies the project that owns the event.
	ProjectID string `json:"project_id"`

	// URL is the subscriber URL at the time of failure.
	URL string `json:"url"`

	// Payload is the event payload that failed to deliver.
	Payload any `json:"payload"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made.
	AttemptCount int `json:"attempt_count"`

	// LastStatusCode is the HTTP status code from the final attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// ReplayedAt is set when the entry has been replayed.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when the delivery permanently failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset       int
	Limit        int
	ProjectID    string
	SubscriberID string
	From         *time.Time
	To           *time.Time
}
