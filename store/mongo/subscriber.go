package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/subscriber"
)

// CreateSubscriber stages a subscriber document. The registry of record is
// external; this writer exists for fixtures and local deployments where
// the registry view is materialized into the same database.
func (s *Store) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	filter := bson.M{"project_id": sub.ProjectID, "subscriber_id": sub.ID}
	_, err := s.db.Collection(colSubscribers).ReplaceOne(
		ctx, filter, toSubscriberModel(sub), options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("hookline/mongo: upsert subscriber: %w", err)
	}
	return nil
}

// ListSubscribers returns the subscribers for a project ordered by ID.
func (s *Store) ListSubscribers(ctx context.Context, projectID string) ([]*subscriber.Subscriber, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "subscriber_id", Value: 1}})
	cur, err := s.db.Collection(colSubscribers).Find(ctx, bson.M{"project_id": projectID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list subscribers: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*subscriber.Subscriber, 0)
	for cur.Next(ctx) {
		var m subscriberModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, fromSubscriberModel(&m))
	}
	return out, cur.Err()
}

// GetSubscriber returns a single subscriber by project and ID.
func (s *Store) GetSubscriber(ctx context.Context, projectID, subID string) (*subscriber.Subscriber, error) {
	var m subscriberModel
	err := s.db.Collection(colSubscribers).FindOne(
		ctx, bson.M{"project_id": projectID, "subscriber_id": subID},
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hookline.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("hookline/mongo: get subscriber: %w", err)
	}
	return fromSubscriberModel(&m), nil
}
