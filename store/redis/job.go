package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/id"
)

// dequeueScript atomically claims due job IDs from the pending sorted set.
// KEYS[1] = hookline:z:job:pending
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var dequeueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) Enqueue(ctx context.Context, j *delivery.Job) error {
	key := entityKey(prefixJob, j.ID.String())
	if err := s.setEntity(ctx, key, j); err != nil {
		return fmt.Errorf("hookline/redis: enqueue job: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zJobPending, goredis.Z{Score: scoreFromTime(j.NextAttemptAt), Member: j.ID.String()})
	pipe.ZAdd(ctx, zJobEvent+j.EventID.String(), goredis.Z{Score: scoreFromTime(j.CreatedAt), Member: j.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: enqueue job indexes: %w", err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Job, error) {
	nowScore := fmt.Sprintf("%f", scoreFromTime(now()))
	claimed, err := dequeueScript.Run(ctx, s.rdb, []string{zJobPending}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("hookline/redis: dequeue script: %w", err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	jobs := make([]*delivery.Job, 0, len(claimed))
	for _, jobID := range claimed {
		key := entityKey(prefixJob, jobID)
		var j delivery.Job
		if err := s.getEntity(ctx, key, &j); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("hookline/redis: dequeue get: %w", err)
		}

		j.State = delivery.StateRunning
		j.UpdatedAt = now()
		if err := s.setEntity(ctx, key, &j); err != nil {
			return nil, fmt.Errorf("hookline/redis: dequeue update: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *delivery.Job) error {
	j.UpdatedAt = now()
	if err := s.setEntity(ctx, entityKey(prefixJob, j.ID.String()), j); err != nil {
		return fmt.Errorf("hookline/redis: update job: %w", err)
	}

	// Re-queued jobs go back into the pending sorted set.
	if j.State == delivery.StatePending {
		err := s.rdb.ZAdd(ctx, zJobPending, goredis.Z{
			Score:  scoreFromTime(j.NextAttemptAt),
			Member: j.ID.String(),
		}).Err()
		if err != nil {
			return fmt.Errorf("hookline/redis: requeue job: %w", err)
		}
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID id.ID) (*delivery.Job, error) {
	var j delivery.Job
	if err := s.getEntity(ctx, entityKey(prefixJob, jobID.String()), &j); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrJobNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get job: %w", err)
	}
	return &j, nil
}

func (s *Store) ListJobsByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Job, error) {
	ids, err := s.rdb.ZRange(ctx, zJobEvent+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list jobs: %w", err)
	}

	jobs := make([]*delivery.Job, 0, len(ids))
	for _, jobID := range ids {
		var j delivery.Job
		if err := s.getEntity(ctx, entityKey(prefixJob, jobID), &j); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zJobPending).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: count pending: %w", err)
	}
	return count, nil
}
