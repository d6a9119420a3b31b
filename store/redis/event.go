package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
)

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	key := entityKey(prefixEvent, evt.ID.String())
	if err := s.setEntity(ctx, key, evt); err != nil {
		return fmt.Errorf("hookline/redis: create event: %w", err)
	}

	score := scoreFromTime(evt.ReceivedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zEventAll, goredis.Z{Score: score, Member: evt.ID.String()})
	pipe.ZAdd(ctx, zEventProject+evt.ProjectID, goredis.Z{Score: score, Member: evt.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: create event indexes: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var evt event.Event
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &evt); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, fmt.Errorf("hookline/redis: get event: %w", err)
	}
	return &evt, nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	indexKey := zEventAll
	if opts.ProjectID != "" {
		indexKey = zEventProject + opts.ProjectID
	}

	rangeBy := &goredis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if opts.From != nil {
		rangeBy.Min = fmt.Sprintf("%f", scoreFromTime(*opts.From))
	}
	if opts.To != nil {
		rangeBy.Max = fmt.Sprintf("%f", scoreFromTime(*opts.To))
	}

	ids, err := s.rdb.ZRangeByScore(ctx, indexKey, rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for newest first
		var evt event.Event
		if err := s.getEntity(ctx, entityKey(prefixEvent, ids[i]), &evt); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		result = append(result, &evt)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}
