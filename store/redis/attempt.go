package redis

import (
	"context"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/id"
)

func (s *Store) Append(ctx context.Context, att *attempt.Attempt) error {
	key := entityKey(prefixAttempt, att.ID.String())
	if err := s.setEntity(ctx, key, att); err != nil {
		return fmt.Errorf("hookline/redis: append attempt: %w", err)
	}
	err := s.rdb.ZAdd(ctx, zAttemptEvent+att.EventID.String(), goredis.Z{
		Score:  scoreFromTime(att.AttemptedAt),
		Member: att.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("hookline/redis: append attempt index: %w", err)
	}
	return nil
}

func (s *Store) ListByEvent(ctx context.Context, evtID id.ID, opts attempt.ListOpts) ([]*attempt.Attempt, error) {
	ids, err := s.rdb.ZRange(ctx, zAttemptEvent+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list attempts: %w", err)
	}

	result := make([]*attempt.Attempt, 0, len(ids))
	for _, attID := range ids {
		var att attempt.Attempt
		if err := s.getEntity(ctx, entityKey(prefixAttempt, attID), &att); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.SubscriberID != "" && att.SubscriberID != opts.SubscriberID {
			continue
		}
		result = append(result, &att)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubscriberID != result[j].SubscriberID {
			return result[i].SubscriberID < result[j].SubscriberID
		}
		return result[i].Number < result[j].Number
	})
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountByEvent(ctx context.Context, evtID id.ID) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zAttemptEvent+evtID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: count attempts: %w", err)
	}
	return count, nil
}
