package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/subscriber"
)

// CreateSubscriber stages a subscriber record. The registry of record is
// external; this writer exists for fixtures and local deployments where
// the registry view is materialized into the same Redis instance.
func (s *Store) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	if err := s.setEntity(ctx, subscriberKey(sub.ProjectID, sub.ID), sub); err != nil {
		return fmt.Errorf("hookline/redis: create subscriber: %w", err)
	}
	// All-zero scores make ZRange order members lexicographically, which
	// gives the stable by-ID listing the registry contract requires.
	err := s.rdb.ZAdd(ctx, zSubProject+sub.ProjectID, goredis.Z{Score: 0, Member: sub.ID}).Err()
	if err != nil {
		return fmt.Errorf("hookline/redis: create subscriber index: %w", err)
	}
	return nil
}

func (s *Store) ListSubscribers(ctx context.Context, projectID string) ([]*subscriber.Subscriber, error) {
	ids, err := s.rdb.ZRange(ctx, zSubProject+projectID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list subscribers: %w", err)
	}

	result := make([]*subscriber.Subscriber, 0, len(ids))
	for _, subID := range ids {
		var sub subscriber.Subscriber
		if err := s.getEntity(ctx, subscriberKey(projectID, subID), &sub); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		result = append(result, &sub)
	}
	return result, nil
}

func (s *Store) GetSubscriber(ctx context.Context, projectID, subID string) (*subscriber.Subscriber, error) {
	var sub subscriber.Subscriber
	if err := s.getEntity(ctx, subscriberKey(projectID, subID), &sub); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get subscriber: %w", err)
	}
	return &sub, nil
}
