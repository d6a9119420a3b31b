package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/id"
)

// Append records one resolved delivery attempt.
func (s *Store) Append(ctx context.Context, att *attempt.Attempt) error {
	_, err := s.db.Collection(colAttempts).InsertOne(ctx, toAttemptModel(att))
	if err != nil {
		return fmt.Errorf("hookline/mongo: append attempt: %w", err)
	}
	return nil
}

// ListByEvent returns the attempts recorded for an event ordered by
// (subscriber, number).
func (s *Store) ListByEvent(ctx context.Context, evtID id.ID, opts attempt.ListOpts) ([]*attempt.Attempt, error) {
	filter := bson.M{"event_id": evtID.String()}
	if opts.SubscriberID != "" {
		filter["subscriber_id"] = opts.SubscriberID
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "subscriber_id", Value: 1},
		{Key: "number", Value: 1},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colAttempts).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list attempts: %w", err)
	}
	defer cur.Close(ctx)

	var out []*attempt.Attempt
	for cur.Next(ctx) {
		var m attemptModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		att, err := fromAttemptModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, cur.Err()
}

// CountByEvent returns the number of attempts recorded for an event.
func (s *Store) CountByEvent(ctx context.Context, evtID id.ID) (int64, error) {
	count, err := s.db.Collection(colAttempts).CountDocuments(ctx, bson.M{"event_id": evtID.String()})
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: count attempts: %w", err)
	}
	return count, nil
}
