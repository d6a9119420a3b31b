package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/id"
)

// Push records a permanently failed delivery.
func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	_, err := s.db.Collection(colDLQ).InsertOne(ctx, toDLQModel(e))
	if err != nil {
		return fmt.Errorf("hookline/mongo: push dlq entry: %w", err)
	}
	return nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqModel
	err := s.db.Collection(colDLQ).FindOne(ctx, bson.M{"_id": dlqID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hookline.ErrDLQNotFound
		}
		return nil, fmt.Errorf("hookline/mongo: get dlq entry: %w", err)
	}
	return fromDLQModel(&m)
}

// ListDLQ returns entries matching the given options, newest failures first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	filter := bson.M{}
	if opts.ProjectID != "" {
		filter["project_id"] = opts.ProjectID
	}
	if opts.SubscriberID != "" {
		filter["subscriber_id"] = opts.SubscriberID
	}
	if opts.From != nil || opts.To != nil {
		rangeFilter := bson.M{}
		if opts.From != nil {
			rangeFilter["$gte"] = *opts.From
		}
		if opts.To != nil {
			rangeFilter["$lte"] = *opts.To
		}
		filter["failed_at"] = rangeFilter
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colDLQ).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list dlq: %w", err)
	}
	defer cur.Close(ctx)

	var out []*dlq.Entry
	for cur.Next(ctx) {
		var m dlqModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		e, err := fromDLQModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

// Replay marks an entry replayed and returns its job to the pending queue
// for an immediate attempt.
func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	e, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	return s.replay(ctx, e)
}

// ReplayBulk replays all unreplayed entries that failed within [from, to].
func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	cur, err := s.db.Collection(colDLQ).Find(ctx, bson.M{
		"failed_at":   bson.M{"$gte": from, "$lte": to},
		"replayed_at": bson.M{"$exists": false},
	})
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: replay bulk list: %w", err)
	}
	defer cur.Close(ctx)

	var replayed int64
	for cur.Next(ctx) {
		var m dlqModel
		if err := cur.Decode(&m); err != nil {
			return replayed, err
		}
		e, err := fromDLQModel(&m)
		if err != nil {
			return replayed, err
		}
		if err := s.replay(ctx, e); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, cur.Err()
}

// replay marks the entry replayed and re-queues its job.
func (s *Store) replay(ctx context.Context, e *dlq.Entry) error {
	t := now()
	res, err := s.db.Collection(colJobs).UpdateOne(ctx,
		bson.M{"_id": e.JobID.String()},
		bson.M{"$set": bson.M{
			"state":           string(delivery.StatePending),
			"next_attempt_at": t,
			"completed_at":    nil,
			"updated_at":      t,
		}},
	)
	if err != nil {
		return fmt.Errorf("hookline/mongo: requeue job: %w", err)
	}
	if res.MatchedCount == 0 {
		return hookline.ErrJobNotFound
	}

	_, err = s.db.Collection(colDLQ).UpdateOne(ctx,
		bson.M{"_id": e.ID.String()},
		bson.M{"$set": bson.M{"replayed_at": t, "updated_at": t}},
	)
	if err != nil {
		return fmt.Errorf("hookline/mongo: mark replayed: %w", err)
	}
	return nil
}

// Purge removes entries that failed before the given time.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Collection(colDLQ).DeleteMany(ctx, bson.M{
		"failed_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: purge: %w", err)
	}
	return res.DeletedCount, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(colDLQ).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: count dlq: %w", err)
	}
	return count, nil
}
