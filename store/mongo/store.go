// Package mongo provides a MongoDB-backed implementation of the aggregate
// store.
//
// Retry jobs are claimed with FindOneAndUpdate so concurrent schedulers
// never claim the same job.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	relaystore "github.com/hooklinehq/hookline/store"
)

// Collection name constants.
const (
	colEvents      = "hookline_events"
	colSubscribers = "hookline_subscribers"
	colAttempts    = "hookline_attempts"
	colJobs        = "hookline_jobs"
	colDLQ         = "hookline_dlq"
)

var _ relaystore.Store = (*Store)(nil)

// Store implements store.Store on MongoDB.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
}

// New wraps an existing client and database name.
func New(client *mongod.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Connect opens a client from a URI and verifies connectivity.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client, database), nil
}

// Migrate creates indexes for all hookline collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("hookline/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colEvents: {
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "received_at", Value: -1}}},
		},
		colSubscribers: {
			{
				Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "subscriber_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAttempts: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "subscriber_id", Value: 1}, {Key: "number", Value: 1}}},
		},
		colJobs: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
		},
		colDLQ: {
			{Keys: bson.D{{Key: "failed_at", Value: -1}}},
			{Keys: bson.D{{Key: "project_id", Value: 1}}},
		},
	}
}
