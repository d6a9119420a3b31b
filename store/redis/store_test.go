package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
	"github.com/hooklinehq/hookline/store/redis"
	"github.com/hooklinehq/hookline/subscriber"
)

func ctx() context.Context { return context.Background() }

func newStore(t *testing.T) *redis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redis.New(rdb)
}

func TestEventRoundTrip(t *testing.T) {
	s := newStore(t)

	evt := &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ProjectID:  "p1",
		ClientID:   "c1",
		Payload:    map[string]any{"query": "hello"},
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEvent(ctx(), evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectID != "p1" || got.ClientID != "c1" {
		t.Errorf("got = %+v", got)
	}
	if got.Payload["query"] != "hello" {
		t.Errorf("Payload = %v", got.Payload)
	}

	if _, err := s.GetEvent(ctx(), id.NewEventID()); !errors.Is(err, hookline.ErrEventNotFound) {
		t.Errorf("err = %v, want ErrEventNotFound", err)
	}

	listed, err := s.ListEvents(ctx(), event.ListOpts{ProjectID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Errorf("listed = %d, want 1", len(listed))
	}
}

func TestSubscribersOrderedByID(t *testing.T) {
	s := newStore(t)

	for _, subID := range []string{"s3", "s1", "s2"} {
		err := s.CreateSubscriber(ctx(), &subscriber.Subscriber{
			ID: subID, ProjectID: "p1", URL: "https://example.com/" + subID,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	subs, err := s.ListSubscribers(ctx(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 3 {
		t.Fatalf("subscribers = %d, want 3", len(subs))
	}
	for i, want := range []string{"s1", "s2", "s3"} {
		if subs[i].ID != want {
			t.Errorf("subs[%d] = %q, want %q", i, subs[i].ID, want)
		}
	}

	if _, err := s.GetSubscriber(ctx(), "p1", "missing"); !errors.Is(err, hookline.ErrSubscriberNotFound) {
		t.Errorf("err = %v, want ErrSubscriberNotFound", err)
	}
}

func TestJobQueueClaim(t *testing.T) {
	s := newStore(t)
	evtID := id.NewEventID()

	due := &delivery.Job{
		Entity:        entity.New(),
		ID:            id.NewJobID(),
		EventID:       evtID,
		SubscriberID:  "s1",
		ProjectID:     "p1",
		State:         delivery.StatePending,
		AttemptCount:  1,
		MaxRetries:    3,
		NextAttemptAt: time.Now().UTC().Add(-time.Minute),
	}
	notDue := &delivery.Job{
		Entity:        entity.New(),
		ID:            id.NewJobID(),
		EventID:       evtID,
		SubscriberID:  "s2",
		ProjectID:     "p1",
		State:         delivery.StatePending,
		AttemptCount:  1,
		MaxRetries:    3,
		NextAttemptAt: time.Now().UTC().Add(time.Hour),
	}
	if err := s.Enqueue(ctx(), due); err != nil {
		t.Fatal(err)
	}
	if err := s.Enqueue(ctx(), notDue); err != nil {
		t.Fatal(err)
	}

	claimed, err := s.Dequeue(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed = %d, want 1", len(claimed))
	}
	if claimed[0].ID != due.ID {
		t.Errorf("claimed = %v, want %v", claimed[0].ID, due.ID)
	}
	if claimed[0].State != delivery.StateRunning {
		t.Errorf("state = %q, want running", claimed[0].State)
	}

	// Claim is removed from the pending set: no double claim.
	again, _ := s.Dequeue(ctx(), 10)
	if len(again) != 0 {
		t.Errorf("second dequeue = %d, want 0", len(again))
	}

	// Re-queueing puts the job back.
	j := claimed[0]
	j.State = delivery.StatePending
	j.NextAttemptAt = time.Now().UTC().Add(-time.Second)
	if err := s.UpdateJob(ctx(), j); err != nil {
		t.Fatal(err)
	}
	reclaimed, _ := s.Dequeue(ctx(), 10)
	if len(reclaimed) != 1 {
		t.Error("re-queued job not claimable")
	}

	jobs, _ := s.ListJobsByEvent(ctx(), evtID)
	if len(jobs) != 2 {
		t.Errorf("jobs by event = %d, want 2", len(jobs))
	}
}

func TestDLQReplay(t *testing.T) {
	s := newStore(t)
	evtID := id.NewEventID()

	j := &delivery.Job{
		Entity:        entity.New(),
		ID:            id.NewJobID(),
		EventID:       evtID,
		SubscriberID:  "s1",
		ProjectID:     "p1",
		State:         delivery.StateFailed,
		AttemptCount:  4,
		MaxRetries:    3,
		NextAttemptAt: time.Now().UTC(),
	}
	// Enqueue then mark failed so the pending index is consistent.
	if err := s.Enqueue(ctx(), j); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Dequeue(ctx(), 1); err != nil {
		t.Fatal(err)
	}
	j.State = delivery.StateFailed
	if err := s.UpdateJob(ctx(), j); err != nil {
		t.Fatal(err)
	}

	e := &dlq.Entry{
		Entity:       entity.New(),
		ID:           id.NewDLQID(),
		JobID:        j.ID,
		EventID:      evtID,
		SubscriberID: "s1",
		ProjectID:    "p1",
		Error:        "failed with status 503",
		AttemptCount: 4,
		FailedAt:     time.Now().UTC(),
	}
	if err := s.Push(ctx(), e); err != nil {
		t.Fatal(err)
	}

	count, _ := s.CountDLQ(ctx())
	if count != 1 {
		t.Fatalf("dlq count = %d, want 1", count)
	}

	if err := s.Replay(ctx(), e.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDLQ(ctx(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplayedAt == nil {
		t.Error("ReplayedAt not set")
	}

	claimed, _ := s.Dequeue(ctx(), 1)
	if len(claimed) != 1 {
		t.Fatal("replayed job not claimable")
	}
	if claimed[0].ID != j.ID {
		t.Errorf("claimed = %v, want %v", claimed[0].ID, j.ID)
	}
}

func TestDLQPurge(t *testing.T) {
	s := newStore(t)
	now := time.Now().UTC()

	old := &dlq.Entry{Entity: entity.New(), ID: id.NewDLQID(), JobID: id.NewJobID(), EventID: id.NewEventID(), FailedAt: now.Add(-48 * time.Hour)}
	recent := &dlq.Entry{Entity: entity.New(), ID: id.NewDLQID(), JobID: id.NewJobID(), EventID: id.NewEventID(), FailedAt: now}
	if err := s.Push(ctx(), old); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(ctx(), recent); err != nil {
		t.Fatal(err)
	}

	n, err := s.Purge(ctx(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	count, _ := s.CountDLQ(ctx())
	if count != 1 {
		t.Errorf("remaining = %d, want 1", count)
	}
}
