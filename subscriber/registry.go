package subscriber

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a subscriber cannot be found. A subscriber
// present when a retry job was enqueued may have been deregistered since.
var ErrNotFound = errors.New("hookline: subscriber not found")

// Registry is the read contract against the external subscriber registry.
type Registry interface {
	// ListSubscribers returns the subscribers registered for a project,
	// ordered by subscriber ID so results are stable across calls. An empty
	// slice is a normal outcome, not an error: a lookup error means the
	// registry itself was unreachable.
	ListSubscribers(ctx context.Context, projectID string) ([]*Subscriber, error)

	// GetSubscriber returns a single subscriber by project and ID.
	GetSubscriber(ctx context.Context, projectID, subID string) (*Subscriber, error)
}
