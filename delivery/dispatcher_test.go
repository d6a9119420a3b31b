package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
	"github.com/hooklinehq/hookline/subscriber"
)

// memLog is an in-memory attempt log for tests.
type memLog struct {
	mu      sync.Mutex
	records []*attempt.Attempt
	failing bool
}

func (l *memLog) Append(_ context.Context, att *attempt.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return errors.New("log unavailable")
	}
	l.records = append(l.records, att)
	return nil
}

func (l *memLog) ListByEvent(_ context.Context, evtID id.ID, _ attempt.ListOpts) ([]*attempt.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*attempt.Attempt
	for _, att := range l.records {
		if att.EventID == evtID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (l *memLog) CountByEvent(_ context.Context, evtID id.ID) (int64, error) {
	atts, _ := l.ListByEvent(context.Background(), evtID, attempt.ListOpts{})
	return int64(len(atts)), nil
}

// memQueue is an in-memory retry queue for tests.
type memQueue struct {
	mu   sync.Mutex
	jobs map[id.ID]*delivery.Job
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: make(map[id.ID]*delivery.Job)}
}

func (q *memQueue) Enqueue(_ context.Context, j *delivery.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *j
	q.jobs[j.ID] = &cp
	return nil
}

func (q *memQueue) Dequeue(_ context.Context, limit int) ([]*delivery.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now().UTC()
	var out []*delivery.Job
	for _, j := range q.jobs {
		if len(out) >= limit {
			break
		}
		if j.State == delivery.StatePending && !j.NextAttemptAt.After(now) {
			j.State = delivery.StateRunning
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (q *memQueue) UpdateJob(_ context.Context, j *delivery.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[j.ID]; !ok {
		return errors.New("job not found")
	}
	cp := *j
	q.jobs[j.ID] = &cp
	return nil
}

func (q *memQueue) GetJob(_ context.Context, jobID id.ID) (*delivery.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[jobID]
	if !ok {
		return nil, errors.New("job not found")
	}
	cp := *j
	return &cp, nil
}

func (q *memQueue) ListJobsByEvent(_ context.Context, evtID id.ID) ([]*delivery.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*delivery.Job
	for _, j := range q.jobs {
		if j.EventID == evtID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (q *memQueue) CountPending(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, j := range q.jobs {
		if j.State == delivery.StatePending {
			n++
		}
	}
	return n, nil
}

func testEvent(payload map[string]any) *event.Event {
	return &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ProjectID:  "p1",
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
}

func testDispatcher(log attempt.Log, queue delivery.Store) *delivery.Dispatcher {
	return delivery.NewDispatcher(log, queue, delivery.DispatcherConfig{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetrySchedule:  []time.Duration{60 * time.Second, 5 * time.Minute, 15 * time.Minute},
		TopKRule:       delivery.DefaultTopKRule(),
	}, nil)
}

func TestDispatchAllSucceed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := &memLog{}
	queue := newMemQueue()
	d := testDispatcher(log, queue)

	evt := testEvent(map[string]any{"k": "v"})
	subs := []*subscriber.Subscriber{
		{ID: "sub-a", ProjectID: "p1", URL: server.URL},
		{ID: "sub-b", ProjectID: "p1", URL: server.URL},
	}

	summary := d.Dispatch(context.Background(), evt, subs)

	if summary.Outcome != delivery.OutcomeForwarded {
		t.Errorf("Outcome = %q, want %q", summary.Outcome, delivery.OutcomeForwarded)
	}
	if summary.Attempted != 2 {
		t.Errorf("Attempted = %d, want 2", summary.Attempted)
	}
	if len(summary.Failures) != 0 {
		t.Errorf("Failures = %v, want none", summary.Failures)
	}

	atts, _ := log.ListByEvent(context.Background(), evt.ID, attempt.ListOpts{})
	if len(atts) != 2 {
		t.Fatalf("attempt records = %d, want 2", len(atts))
	}
	for _, att := range atts {
		if att.Number != 1 {
			t.Errorf("attempt number = %d, want 1", att.Number)
		}
		if att.StatusCode != http.StatusOK {
			t.Errorf("attempt status = %d, want 200", att.StatusCode)
		}
	}

	if n, _ := queue.CountPending(context.Background()); n != 0 {
		t.Errorf("pending jobs = %d, want 0", n)
	}
}

func TestDispatchNoSubscribers(t *testing.T) {
	d := testDispatcher(&memLog{}, newMemQueue())

	summary := d.Dispatch(context.Background(), testEvent(nil), nil)

	if summary.Outcome != delivery.OutcomeStored {
		t.Errorf("Outcome = %q, want %q", summary.Outcome, delivery.OutcomeStored)
	}
	if summary.Attempted != 0 || summary.Skipped != 0 {
		t.Errorf("Attempted=%d Skipped=%d, want 0/0", summary.Attempted, summary.Skipped)
	}
}

func TestDispatchSkipsUnusableURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := &memLog{}
	d := testDispatcher(log, newMemQueue())

	evt := testEvent(map[string]any{"k": "v"})
	subs := []*subscriber.Subscriber{
		{ID: "sub-good", ProjectID: "p1", URL: server.URL},
		{ID: "sub-empty", ProjectID: "p1", URL: ""},
		{ID: "sub-mangled", ProjectID: "p1", URL: "not a url"},
	}

	summary := d.Dispatch(context.Background(), evt, subs)

	if summary.Attempted != 1 {
		t.Errorf("Attempted = %d, want 1", summary.Attempted)
	}
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}

	// Skipped subscribers never produce attempt records.
	atts, _ := log.ListByEvent(context.Background(), evt.ID, attempt.ListOpts{})
	if len(atts) != 1 {
		t.Errorf("attempt records = %d, want 1", len(atts))
	}
}

func TestDispatchSchedulesRetryForServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	queue := newMemQueue()
	d := testDispatcher(&memLog{}, queue)

	evt := testEvent(map[string]any{"k": "v"})
	sub := &subscriber.Subscriber{ID: "sub-a", ProjectID: "p1", URL: server.URL}

	before := time.Now().UTC()
	summary := d.Dispatch(context.Background(), evt, []*subscriber.Subscriber{sub})

	if summary.Outcome != delivery.OutcomeForwardedWithFailures {
		t.Errorf("Outcome = %q, want %q", summary.Outcome, delivery.OutcomeForwardedWithFailures)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(summary.Failures))
	}
	f := summary.Failures[0]
	if !f.Retrying {
		t.Error("failure not marked retrying")
	}
	if f.Reason != "failed with status 503" {
		t.Errorf("Reason = %q", f.Reason)
	}

	jobs, _ := queue.ListJobsByEvent(context.Background(), evt.ID)
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	j := jobs[0]
	if j.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", j.AttemptCount)
	}
	if j.State != delivery.StatePending {
		t.Errorf("State = %q, want pending", j.State)
	}
	// First retry waits the first backoff step.
	if j.NextAttemptAt.Before(before.Add(60*time.Second)) || j.NextAttemptAt.After(before.Add(90*time.Second)) {
		t.Errorf("NextAttemptAt = %v, want ~60s after dispatch", j.NextAttemptAt)
	}
}

func TestDispatchDoesNotRetryClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	queue := newMemQueue()
	d := testDispatcher(&memLog{}, queue)

	evt := testEvent(map[string]any{"k": "v"})
	sub := &subscriber.Subscriber{ID: "sub-a", ProjectID: "p1", URL: server.URL}

	summary := d.Dispatch(context.Background(), evt, []*subscriber.Subscriber{sub})

	if len(summary.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(summary.Failures))
	}
	if summary.Failures[0].Retrying {
		t.Error("404 failure marked retrying, want terminal")
	}

	jobs, _ := queue.ListJobsByEvent(context.Background(), evt.ID)
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(jobs))
	}
}

func TestDispatchFailuresSortedBySubscriber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	d := testDispatcher(&memLog{}, newMemQueue())

	evt := testEvent(map[string]any{"k": "v"})
	subs := []*subscriber.Subscriber{
		{ID: "sub-c", ProjectID: "p1", URL: server.URL},
		{ID: "sub-a", ProjectID: "p1", URL: server.URL},
		{ID: "sub-b", ProjectID: "p1", URL: server.URL},
	}

	summary := d.Dispatch(context.Background(), evt, subs)

	if len(summary.Failures) != 3 {
		t.Fatalf("Failures = %d, want 3", len(summary.Failures))
	}
	for i, want := range []string{"sub-a", "sub-b", "sub-c"} {
		if summary.Failures[i].SubscriberID != want {
			t.Errorf("Failures[%d] = %q, want %q", i, summary.Failures[i].SubscriberID, want)
		}
	}
}

func TestDispatchLogAppendFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := testDispatcher(&memLog{failing: true}, newMemQueue())

	evt := testEvent(map[string]any{"k": "v"})
	sub := &subscriber.Subscriber{ID: "sub-a", ProjectID: "p1", URL: server.URL}

	summary := d.Dispatch(context.Background(), evt, []*subscriber.Subscriber{sub})

	if summary.Outcome != delivery.OutcomeForwarded {
		t.Errorf("Outcome = %q, want %q despite log failure", summary.Outcome, delivery.OutcomeForwarded)
	}
	if len(summary.Failures) != 0 {
		t.Errorf("Failures = %v, want none", summary.Failures)
	}
}

func TestDispatchShapesPerSubscriber(t *testing.T) {
	type captured struct {
		mu     sync.Mutex
		bodies map[string]map[string]any
	}
	capt := &captured{bodies: make(map[string]map[string]any)}

	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			capt.mu.Lock()
			capt.bodies[name] = body
			capt.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}

	matched := httptest.NewServer(handler("matched"))
	defer matched.Close()
	other := httptest.NewServer(handler("other"))
	defer other.Close()

	log := &memLog{}
	d := delivery.NewDispatcher(log, newMemQueue(), delivery.DispatcherConfig{
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetrySchedule:  []time.Duration{time.Minute},
		TopKRule:       delivery.TopKRule{URLPrefix: matched.URL, Field: "topK", Value: 2},
	}, nil)

	evt := testEvent(map[string]any{"query": "hello"})
	subs := []*subscriber.Subscriber{
		{ID: "sub-matched", ProjectID: "p1", URL: matched.URL},
		{ID: "sub-other", ProjectID: "p1", URL: other.URL},
	}

	d.Dispatch(context.Background(), evt, subs)

	capt.mu.Lock()
	defer capt.mu.Unlock()
	if got := capt.bodies["matched"]["topK"]; got != float64(2) {
		t.Errorf("matched subscriber topK = %v, want 2", got)
	}
	if _, ok := capt.bodies["other"]["topK"]; ok {
		t.Error("non-matched subscriber received injected topK")
	}
	if _, ok := evt.Payload["topK"]; ok {
		t.Error("stored payload was mutated")
	}
}

func TestDispatchTruncatedResponseBodyStillDelivered(t *testing.T) {
	// The handler promises more bytes than it writes, so the client's body
	// read fails after a successful 200 status line.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("short"))
	}))
	defer server.Close()

	log := &memLog{}
	queue := newMemQueue()
	d := testDispatcher(log, queue)

	evt := testEvent(map[string]any{"k": "v"})
	summary := d.Dispatch(context.Background(), evt, []*subscriber.Subscriber{
		{ID: "sub-a", ProjectID: "p1", URL: server.URL},
	})

	if summary.Outcome != delivery.OutcomeForwarded {
		t.Errorf("Outcome = %q, want %q", summary.Outcome, delivery.OutcomeForwarded)
	}
	if n, _ := queue.CountPending(context.Background()); n != 0 {
		t.Errorf("pending jobs = %d, want 0 (2xx is delivered)", n)
	}

	atts, _ := log.ListByEvent(context.Background(), evt.ID, attempt.ListOpts{})
	if len(atts) != 1 {
		t.Fatalf("attempt records = %d, want 1", len(atts))
	}
	if atts[0].StatusCode != http.StatusOK {
		t.Errorf("attempt status = %d, want 200", atts[0].StatusCode)
	}
	if !strings.Contains(atts[0].Error, "read response") {
		t.Errorf("attempt error = %q, want the body read error recorded", atts[0].Error)
	}
}
