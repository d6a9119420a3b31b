package attempt

import (
	"context"

	"github.com/hooklinehq/hookline/id"
)

// Log is the append-only persistence contract for delivery attempts.
//
// Appends are best-effort from the caller's perspective: a failed append is
// reported to the operational log but never aborts the fan-out of other
// subscribers or fails the relay operation itself.
type Log interface {
	// Append records one resolved attempt. Records are never updated or
	// deleted by the engine.
	Append(ctx context.Context, att *Attempt) error

	// ListByEvent returns the attempts recorded for an event, ordered by
	// (subscriber, number).
	ListByEvent(ctx context.Context, evtID id.ID, opts ListOpts) ([]*Attempt, error)

	// CountByEvent returns the number of attempts recorded for an event.
	CountByEvent(ctx context.Context, evtID id.ID) (int64, error)
}
