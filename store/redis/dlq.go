package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/id"
)

func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	key := entityKey(prefixDLQ, e.ID.String())
	if err := s.setEntity(ctx, key, e); err != nil {
		return fmt.Errorf("hookline/redis: push dlq entry: %w", err)
	}
	err := s.rdb.ZAdd(ctx, zDLQAll, goredis.Z{
		Score:  scoreFromTime(e.FailedAt),
		Member: e.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("hookline/redis: push dlq index: %w", err)
	}
	return nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var e dlq.Entry
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &e); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrDLQNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get dlq entry: %w", err)
	}
	return &e, nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	rangeBy := &goredis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if opts.From != nil {
		rangeBy.Min = fmt.Sprintf("%f", scoreFromTime(*opts.From))
	}
	if opts.To != nil {
		rangeBy.Max = fmt.Sprintf("%f", scoreFromTime(*opts.To))
	}

	ids, err := s.rdb.ZRangeByScore(ctx, zDLQAll, rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for newest first
		var e dlq.Entry
		if err := s.getEntity(ctx, entityKey(prefixDLQ, ids[i]), &e); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.ProjectID != "" && e.ProjectID != opts.ProjectID {
			continue
		}
		if opts.SubscriberID != "" && e.SubscriberID != opts.SubscriberID {
			continue
		}
		result = append(result, &e)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	e, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	return s.replay(ctx, e)
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zDLQAll, &goredis.ZRangeBy{
		Min: fmt.Sprintf("%f", scoreFromTime(from)),
		Max: fmt.Sprintf("%f", scoreFromTime(to)),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: replay bulk list: %w", err)
	}

	var replayed int64
	for _, entryID := range ids {
		var e dlq.Entry
		if err := s.getEntity(ctx, entityKey(prefixDLQ, entryID), &e); err != nil {
			if isRedisNil(err) {
				continue
			}
			return replayed, err
		}
		if e.ReplayedAt != nil {
			continue
		}
		if err := s.replay(ctx, &e); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

// replay marks the entry replayed and returns its job to the pending queue
// for an immediate attempt.
func (s *Store) replay(ctx context.Context, e *dlq.Entry) error {
	j, err := s.GetJob(ctx, e.JobID)
	if err != nil {
		return err
	}

	j.State = delivery.StatePending
	j.NextAttemptAt = now()
	j.CompletedAt = nil
	if err := s.UpdateJob(ctx, j); err != nil {
		return err
	}

	ts := now()
	e.ReplayedAt = &ts
	e.UpdatedAt = ts
	if err := s.setEntity(ctx, entityKey(prefixDLQ, e.ID.String()), e); err != nil {
		return fmt.Errorf("hookline/redis: mark replayed: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	maxScore := fmt.Sprintf("(%f", scoreFromTime(before))
	ids, err := s.rdb.ZRangeByScore(ctx, zDLQAll, &goredis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: purge list: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, entryID := range ids {
		pipe.Del(ctx, entityKey(prefixDLQ, entryID))
		pipe.ZRem(ctx, zDLQAll, entryID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("hookline/redis: purge: %w", err)
	}
	return int64(len(ids)), nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: count dlq: %w", err)
	}
	return count, nil
}
