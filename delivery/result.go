package delivery

import (
	"fmt"

	"github.com/hooklinehq/hookline/id"
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	// StatusCode is the HTTP status received, or 0 when no response arrived.
	StatusCode int

	// Response is the captured response body: decoded JSON when the body
	// parses, raw text otherwise.
	Response any

	// Error is the transport failure description, empty when a response
	// was received.
	Error string

	// LatencyMs is the wall-clock duration of the call in milliseconds.
	LatencyMs int
}

// Class is the classification of one delivery attempt outcome.
type Class int

const (
	// Success means a response with status in [200, 300) was received.
	Success Class = iota

	// ApplicationFailure means a response outside the success range was
	// received. Not retry-eligible unless the status is server-side (>=500).
	ApplicationFailure

	// TransientFailure means no response was received (timeout, connection
	// error, transport-level failure). Always retry-eligible.
	TransientFailure
)

// Classify determines the class of an attempt outcome.
func Classify(res Result) Class {
	if res.StatusCode == 0 {
		return TransientFailure
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return Success
	}
	return ApplicationFailure
}

// FailureReason returns the error description for a failed attempt. For an
// application failure without a transport error it synthesizes the standard
// description from the status code.
func (r Result) FailureReason() string {
	if r.Error != "" {
		return r.Error
	}
	return fmt.Sprintf("failed with status %d", r.StatusCode)
}

// Outcome classifies the overall result of relaying one event.
type Outcome string

const (
	// OutcomeStored means the event was stored and no subscribers existed;
	// nothing was forwarded. This is a normal outcome, not a failure.
	OutcomeStored Outcome = "stored"

	// OutcomeForwarded means every attempted subscriber succeeded on the
	// first attempt.
	OutcomeForwarded Outcome = "forwarded"

	// OutcomeForwardedWithFailures means forwarding was attempted and one
	// or more subscribers failed their first attempt. Failures are
	// advisory: retry-eligible ones continue out-of-band.
	OutcomeForwardedWithFailures Outcome = "forwarded_with_failures"

	// OutcomeNotForwarded means the event was stored but fan-out was not
	// attempted (registry lookup failed).
	OutcomeNotForwarded Outcome = "not_forwarded"
)

// Failure describes one subscriber whose first attempt did not succeed.
type Failure struct {
	// SubscriberID is the registry-assigned subscriber identifier.
	SubscriberID string `json:"subscriber_id"`

	// URL is the subscriber URL that was attempted.
	URL string `json:"url"`

	// StatusCode is the HTTP status received, or 0 when no response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// Reason describes why the attempt failed.
	Reason string `json:"reason"`

	// Retrying reports whether the failure was handed to the retry
	// scheduler.
	Retrying bool `json:"retrying"`
}

// Summary aggregates the first-attempt outcomes of relaying one event.
// It reflects only first attempts: retries run out-of-band and report
// through the attempt log and the dead letter queue.
type Summary struct {
	// EventID is the stored event's ID.
	EventID id.ID `json:"event_id"`

	// Outcome is the overall classification.
	Outcome Outcome `json:"outcome"`

	// Attempted is the number of subscribers that received a first attempt.
	Attempted int `json:"attempted"`

	// Skipped is the number of subscribers excluded for an empty or
	// malformed URL. Skipped subscribers produce no attempt records.
	Skipped int `json:"skipped"`

	// Failures lists subscribers whose first attempt failed.
	Failures []Failure `json:"failures,omitempty"`
}
