package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
)

// CreateEvent persists an event.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.db.Collection(colEvents).InsertOne(ctx, toEventModel(evt))
	if err != nil {
		return fmt.Errorf("hookline/mongo: create event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	err := s.db.Collection(colEvents).FindOne(ctx, bson.M{"_id": evtID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, fmt.Errorf("hookline/mongo: get event: %w", err)
	}
	return fromEventModel(&m)
}

// ListEvents returns events, optionally filtered by project or time range.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	filter := bson.M{}
	if opts.ProjectID != "" {
		filter["project_id"] = opts.ProjectID
	}
	if opts.From != nil || opts.To != nil {
		rangeFilter := bson.M{}
		if opts.From != nil {
			rangeFilter["$gte"] = *opts.From
		}
		if opts.To != nil {
			rangeFilter["$lte"] = *opts.To
		}
		filter["received_at"] = rangeFilter
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colEvents).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list events: %w", err)
	}
	defer cur.Close(ctx)

	var out []*event.Event
	for cur.Next(ctx) {
		var m eventModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, cur.Err()
}
