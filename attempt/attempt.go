package attempt

import (
	"time"

	"github.com/hooklinehq/hookline/id"
)

// Attempt is the immutable record of one try (original or retry) to deliver
// an event to a subscriber. Attempts are appended, never overwritten: the
// full sequence for an (event, subscriber) pair forms the delivery audit
// trail.
type Attempt struct {
	// ID is the unique TypeID for this attempt record.
	ID id.ID `json:"id"`

	// EventID references the event that was delivered.
	EventID id.ID `json:"event_id"`

	// SubscriberID references the target subscriber (registry-assigned).
	SubscriberID string `json:"subscriber_id"`

	// URL is the subscriber URL at the time of the attempt.
	URL string `json:"url"`

	// Number is the 1-based attempt number, increasing across retries of
	// the same subscriber for the same event.
	Number int `json:"number"`

	// StatusCode is the HTTP status received, or 0 when the attempt failed
	// before any response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// Response is the captured response body: decoded JSON when the body
	// parses, the raw text otherwise. Capture is best-effort.
	Response any `json:"response,omitempty"`

	// Error describes the failure, when the attempt failed.
	Error string `json:"error,omitempty"`

	// DurationMs is the wall-clock duration of the HTTP call in milliseconds.
	DurationMs int `json:"duration_ms"`

	// AttemptedAt is when the attempt resolved.
	AttemptedAt time.Time `json:"attempted_at"`
}

// ListOpts configures filtering and pagination for attempt listing.
type ListOpts struct {
	Offset       int
	Limit        int
	SubscriberID string
}
