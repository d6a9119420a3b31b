package event

import (
	"context"
	"errors"

	"github.com/hooklinehq/hookline/id"
)

// ErrNotFound is returned when an event cannot be found.
var ErrNotFound = errors.New("hookline: event not found")

// Store defines the persistence contract for inbound events.
type Store interface {
	// CreateEvent persists an event. Must be durable before returning:
	// no fan-out is attempted for an event this call did not accept.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEvents returns events, optionally filtered by project or time range.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
