package dlq

import (
	"context"
	"time"

	"github.com/hooklinehq/hookline/id"
)

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// Push records a permanently failed delivery.
	Push(ctx context.Context, e *Entry) error

	// GetDLQ returns a DLQ entry by ID.
	GetDLQ(ctx context.Context, dlqID id.ID) (*Entry, error)

	// ListDLQ returns entries matching the given options, newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// Replay marks an entry replayed and returns its retry job to the
	// pending queue for one more immediate attempt.
	Replay(ctx context.Context, dlqID id.ID) error

	// ReplayBulk replays all entries that failed within [from, to].
	// Returns the number of entries replayed.
	ReplayBulk(ctx context.Context, from, to time.Time) (int64, error)

	// Purge removes entries that failed before the given time.
	// Returns the number of entries removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of DLQ entries.
	CountDLQ(ctx context.Context) (int64, error)
}
