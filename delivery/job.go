package delivery

import (
	"time"

	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
)

// State represents the current state of a retry job.
type State string

const (
	// StatePending indicates the job is awaiting its next attempt.
	StatePending State = "pending"

	// StateRunning indicates a worker has claimed the job and an attempt
	// is in flight.
	StateRunning State = "running"

	// StateSucceeded indicates a retry attempt was delivered. The schedule
	// for this subscriber stops immediately.
	StateSucceeded State = "succeeded"

	// StateFailed indicates the job permanently failed: retries exhausted
	// or a non-retryable response. The failure is durable in the attempt
	// log and the dead letter queue.
	StateFailed State = "failed"
)

// Job tracks the retry schedule for one (event, subscriber) pair whose
// first attempt failed transiently. Jobs for different subscribers proceed
// independently; one subscriber's schedule never delays another's.
type Job struct {
	entity.Entity

	// ID is the unique TypeID for this retry job.
	ID id.ID `json:"id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// SubscriberID references the target subscriber (registry-assigned).
	SubscriberID string `json:"subscriber_id"`

	// ProjectID is carried so the subscriber can be re-read from the
	// registry at retry time.
	ProjectID string `json:"project_id"`

	// State is the current job state.
	State State `json:"state"`

	// AttemptCount is the number of delivery attempts made so far,
	// including the original dispatch attempt.
	AttemptCount int `json:"attempt_count"`

	// MaxRetries is the number of deferred re-attempts allowed after the
	// original attempt.
	MaxRetries int `json:"max_retries"`

	// NextAttemptAt is when the next delivery attempt should occur.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// LastLatencyMs is the latency in milliseconds of the most recent attempt.
	LastLatencyMs int `json:"last_latency_ms,omitempty"`

	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListOpts configures filtering and pagination for job listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}
