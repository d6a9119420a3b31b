package event

import (
	"time"

	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
)

// Event represents one inbound occurrence submitted for relay.
// An Event is immutable once stored; corrections require a new Event.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// ProjectID identifies the project this event belongs to. Required.
	ProjectID string `json:"project_id"`

	// ClientID identifies the client that produced the event. Optional.
	ClientID string `json:"client_id,omitempty"`

	// DocumentID references the resolved document for this event, when one
	// exists. UUID-shaped when present.
	DocumentID string `json:"document_id,omitempty"`

	// Payload is the normalized inbound payload. Subscribers receive an
	// independently derived copy; the stored payload is never mutated.
	Payload map[string]any `json:"payload"`

	// ReceivedAt is when the event arrived at the ingress boundary.
	ReceivedAt time.Time `json:"received_at"`
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset    int
	Limit     int
	ProjectID string
	From      *time.Time
	To        *time.Time
}
