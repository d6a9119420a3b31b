// Package store defines the composite Store interface for all Hookline
// persistence.
//
// Each subsystem defines its own narrow contract (event store, subscriber
// registry, attempt log, retry queue, DLQ), and the aggregate Store composes
// them all so a single backend can serve the whole engine. Callers may also
// supply independent implementations per contract.
package store

import (
	"context"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/subscriber"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store
	subscriber.Registry
	attempt.Log
	delivery.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
