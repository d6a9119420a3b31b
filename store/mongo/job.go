package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/id"
)

// Enqueue creates a pending retry job.
func (s *Store) Enqueue(ctx context.Context, j *delivery.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if err != nil {
		return fmt.Errorf("hookline/mongo: enqueue job: %w", err)
	}
	return nil
}

// Dequeue claims due pending jobs and marks them running. FindOneAndUpdate
// makes each claim atomic so concurrent schedulers never double-claim.
func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Job, error) {
	result := make([]*delivery.Job, 0, limit)
	t := now()
	col := s.db.Collection(colJobs)

	for range limit {
		filter := bson.M{
			"state":           string(delivery.StatePending),
			"next_attempt_at": bson.M{"$lte": t},
		}
		update := bson.M{
			"$set": bson.M{
				"state":      string(delivery.StateRunning),
				"updated_at": t,
			},
		}
		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})

		var m jobModel
		err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if errors.Is(err, mongod.ErrNoDocuments) {
				break
			}
			return nil, fmt.Errorf("hookline/mongo: dequeue: %w", err)
		}

		j, err := fromJobModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, nil
}

// UpdateJob writes back a job's mutable fields.
func (s *Store) UpdateJob(ctx context.Context, j *delivery.Job) error {
	m := toJobModel(j)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colJobs).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("hookline/mongo: update job: %w", err)
	}
	if res.MatchedCount == 0 {
		return hookline.ErrJobNotFound
	}
	return nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.ID) (*delivery.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, hookline.ErrJobNotFound
		}
		return nil, fmt.Errorf("hookline/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// ListJobsByEvent returns all retry jobs for an event.
func (s *Store) ListJobsByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Job, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "subscriber_id", Value: 1}})
	cur, err := s.db.Collection(colJobs).Find(ctx, bson.M{"event_id": evtID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("hookline/mongo: list jobs: %w", err)
	}
	defer cur.Close(ctx)

	var out []*delivery.Job
	for cur.Next(ctx) {
		var m jobModel
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		j, err := fromJobModel(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, cur.Err()
}

// CountPending returns the number of jobs awaiting attempt.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(colJobs).CountDocuments(ctx, bson.M{
		"state": string(delivery.StatePending),
	})
	if err != nil {
		return 0, fmt.Errorf("hookline/mongo: count pending: %w", err)
	}
	return count, nil
}
