// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	relaystore "github.com/hooklinehq/hookline/store"
	"github.com/hooklinehq/hookline/subscriber"
)

// compile-time interface check.
var _ relaystore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	events      map[string]*event.Event                      // keyed by ID string
	subscribers map[string]map[string]*subscriber.Subscriber // project → subscriber ID
	attempts    []*attempt.Attempt                           // append-only
	jobs        map[string]*delivery.Job                     // keyed by ID string
	dlqEntries  map[string]*dlq.Entry                        // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		events:      make(map[string]*event.Event),
		subscribers: make(map[string]map[string]*subscriber.Subscriber),
		jobs:        make(map[string]*delivery.Job),
		dlqEntries:  make(map[string]*dlq.Entry),
	}
}

// The store hands out copies on every read and keeps copies on every write,
// so callers can mutate records without holding the store lock. Copies are
// shallow: pointer fields are replaced wholesale by writers, never mutated
// in place.

func copyEvent(evt *event.Event) *event.Event {
	cp := *evt
	return &cp
}

func copySubscriber(sub *subscriber.Subscriber) *subscriber.Subscriber {
	cp := *sub
	return &cp
}

func copyAttempt(att *attempt.Attempt) *attempt.Attempt {
	cp := *att
	return &cp
}

func copyJob(j *delivery.Job) *delivery.Job {
	cp := *j
	return &cp
}

func copyEntry(e *dlq.Entry) *dlq.Entry {
	cp := *e
	return &cp
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hookline.ErrStoreClosed
	}
	s.events[evt.ID.String()] = copyEvent(evt)
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, hookline.ErrEventNotFound
	}
	return copyEvent(evt), nil
}

// ListEvents returns events, optionally filtered by project or time range.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if opts.ProjectID != "" && evt.ProjectID != opts.ProjectID {
			continue
		}
		if opts.From != nil && evt.ReceivedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.ReceivedAt.After(*opts.To) {
			continue
		}
		result = append(result, copyEvent(evt))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// subscriber.Registry
// ──────────────────────────────────────────────────

// CreateSubscriber seeds a subscriber. The real registry is external and
// read-only from the engine's perspective; this exists so tests can stage
// fixtures.
func (s *Store) CreateSubscriber(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.subscribers[sub.ProjectID]
	if !ok {
		byID = make(map[string]*subscriber.Subscriber)
		s.subscribers[sub.ProjectID] = byID
	}
	byID[sub.ID] = copySubscriber(sub)
	return nil
}

// ListSubscribers returns the subscribers for a project, ordered by ID.
func (s *Store) ListSubscribers(_ context.Context, projectID string) ([]*subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	byID := s.subscribers[projectID]
	result := make([]*subscriber.Subscriber, 0, len(byID))
	for _, sub := range byID {
		result = append(result, copySubscriber(sub))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetSubscriber returns a single subscriber by project and ID.
func (s *Store) GetSubscriber(_ context.Context, projectID, subID string) (*subscriber.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscribers[projectID][subID]
	if !ok {
		return nil, hookline.ErrSubscriberNotFound
	}
	return copySubscriber(sub), nil
}

// ──────────────────────────────────────────────────
// attempt.Log
// ──────────────────────────────────────────────────

// Append records one resolved attempt.
func (s *Store) Append(_ context.Context, att *attempt.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hookline.ErrStoreClosed
	}
	s.attempts = append(s.attempts, copyAttempt(att))
	return nil
}

// ListByEvent returns the attempts recorded for an event, ordered by
// (subscriber, number).
func (s *Store) ListByEvent(_ context.Context, evtID id.ID, opts attempt.ListOpts) ([]*attempt.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*attempt.Attempt
	for _, att := range s.attempts {
		if att.EventID != evtID {
			continue
		}
		if opts.SubscriberID != "" && att.SubscriberID != opts.SubscriberID {
			continue
		}
		result = append(result, copyAttempt(att))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubscriberID != result[j].SubscriberID {
			return result[i].SubscriberID < result[j].SubscriberID
		}
		return result[i].Number < result[j].Number
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountByEvent returns the number of attempts recorded for an event.
func (s *Store) CountByEvent(_ context.Context, evtID id.ID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, att := range s.attempts {
		if att.EventID == evtID {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// Enqueue creates a pending retry job.
func (s *Store) Enqueue(_ context.Context, j *delivery.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hookline.ErrStoreClosed
	}
	s.jobs[j.ID.String()] = copyJob(j)
	return nil
}

// Dequeue claims due pending jobs and marks them running. Returns copies so
// workers can mutate the claimed jobs without holding the store lock.
func (s *Store) Dequeue(_ context.Context, limit int) ([]*delivery.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var due []*delivery.Job
	for _, j := range s.jobs {
		if j.State == delivery.StatePending && !j.NextAttemptAt.After(now) {
			due = append(due, j)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*delivery.Job, 0, len(due))
	for _, j := range due {
		j.State = delivery.StateRunning
		j.UpdatedAt = now
		claimed = append(claimed, copyJob(j))
	}

	return claimed, nil
}

// UpdateJob modifies a job.
func (s *Store) UpdateJob(_ context.Context, j *delivery.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID.String()]; !ok {
		return hookline.ErrJobNotFound
	}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[j.ID.String()] = copyJob(j)
	return nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(_ context.Context, jobID id.ID) (*delivery.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, hookline.ErrJobNotFound
	}
	return copyJob(j), nil
}

// ListJobsByEvent returns all retry jobs for a specific event.
func (s *Store) ListJobsByEvent(_ context.Context, evtID id.ID) ([]*delivery.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*delivery.Job
	for _, j := range s.jobs {
		if j.EventID == evtID {
			result = append(result, copyJob(j))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubscriberID < result[j].SubscriberID
	})

	return result, nil
}

// CountPending returns the number of jobs awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, j := range s.jobs {
		if j.State == delivery.StatePending {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push records a permanently failed delivery.
func (s *Store) Push(_ context.Context, e *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hookline.ErrStoreClosed
	}
	s.dlqEntries[e.ID.String()] = copyEntry(e)
	return nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, hookline.ErrDLQNotFound
	}
	return copyEntry(e), nil
}

// ListDLQ returns entries matching the given options, newest first.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.ProjectID != "" && e.ProjectID != opts.ProjectID {
			continue
		}
		if opts.SubscriberID != "" && e.SubscriberID != opts.SubscriberID {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, copyEntry(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// Replay marks an entry replayed and returns its job to the pending queue
// for one more immediate attempt.
func (s *Store) Replay(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return hookline.ErrDLQNotFound
	}

	return s.replayLocked(e)
}

// ReplayBulk replays all entries that failed within [from, to].
func (s *Store) ReplayBulk(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, e := range s.dlqEntries {
		if e.ReplayedAt != nil || e.FailedAt.Before(from) || e.FailedAt.After(to) {
			continue
		}
		if err := s.replayLocked(e); err != nil {
			continue
		}
		n++
	}
	return n, nil
}

func (s *Store) replayLocked(e *dlq.Entry) error {
	j, ok := s.jobs[e.JobID.String()]
	if !ok {
		return hookline.ErrJobNotFound
	}

	now := time.Now().UTC()
	j.State = delivery.StatePending
	j.NextAttemptAt = now
	j.CompletedAt = nil
	j.UpdatedAt = now
	e.ReplayedAt = &now
	e.UpdatedAt = now
	return nil
}

// Purge removes entries that failed before the given time.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, e := range s.dlqEntries {
		if e.FailedAt.Before(before) {
			delete(s.dlqEntries, key)
			n++
		}
	}
	return n, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dlqEntries)), nil
}

// applyPagination slices a result set by offset and limit.
func applyPagination[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
