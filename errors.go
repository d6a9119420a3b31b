package hookline

import (
	"errors"
	"fmt"

	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/subscriber"
)

// Sentinel errors returned by Hookline operations. Failures local to one
// subscriber are never surfaced as errors here: they are recorded in the
// attempt log and reported through the relay summary instead. Only the
// ordering-critical prefix — validation, event storage, registry lookup —
// aborts an operation.
var (
	// ErrNoStore is returned when a Relay is created without a store.
	ErrNoStore = errors.New("hookline: store is required")

	// ErrBadRetrySchedule is returned when a configured backoff schedule is
	// empty or not monotonically increasing.
	ErrBadRetrySchedule = errors.New("hookline: retry schedule must be monotonically increasing")

	// ErrEventStorage is returned when the durable event write failed.
	// Fatal to the request: no fan-out is attempted.
	ErrEventStorage = errors.New("hookline: event storage failed")

	// ErrRegistry is returned when the subscriber lookup failed. The event
	// remains stored; fan-out is not attempted.
	ErrRegistry = errors.New("hookline: subscriber registry lookup failed")

	// ErrPayloadValidationFailed is returned when event payload fails the
	// configured JSON Schema validation.
	ErrPayloadValidationFailed = errors.New("hookline: payload validation failed")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = event.ErrNotFound

	// ErrSubscriberNotFound is returned when a subscriber cannot be found.
	ErrSubscriberNotFound = subscriber.ErrNotFound

	// ErrJobNotFound is returned when a retry job cannot be found.
	ErrJobNotFound = errors.New("hookline: retry job not found")

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = errors.New("hookline: dlq entry not found")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("hookline: store is closed")

	// ErrMigrationFailed is returned when a schema migration fails.
	ErrMigrationFailed = errors.New("hookline: migration failed")
)

// ValidationError indicates an inbound event was rejected before any
// persistence or fan-out.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hookline: invalid event: %s: %s", e.Field, e.Message)
}
