package delivery

import "time"

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the attempt was successful (2xx).
	Delivered Decision = iota

	// Retry means a deferred re-attempt should be scheduled.
	Retry

	// Fail means the delivery has permanently failed: non-retryable
	// response or retries exhausted.
	Fail
)

// Retrier decides what to do after a delivery attempt.
type Retrier struct {
	schedule []time.Duration
}

// NewRetrier creates a retrier with the given backoff schedule. The schedule
// must be monotonically increasing; the engine validates this at construction.
func NewRetrier(schedule []time.Duration) *Retrier {
	return &Retrier{schedule: schedule}
}

// Decide determines what to do with a job after an attempt.
//
// Decision matrix:
//   - 2xx → Delivered
//   - 300–499 → Fail immediately (application failure, won't self-correct)
//   - 500–599 → Retry while retries remain, else Fail
//   - 0 (no response: timeout, connection error) → Retry while retries
//     remain, else Fail
func (r *Retrier) Decide(res Result, j *Job) Decision {
	switch Classify(res) {
	case Success:
		return Delivered
	case TransientFailure:
		return r.retryOrFail(j)
	default:
		if res.StatusCode >= 500 {
			return r.retryOrFail(j)
		}
		return Fail
	}
}

// Retryable reports whether an attempt outcome is eligible for retry at all:
// a transport failure or a server-side error status.
func Retryable(res Result) bool {
	return Classify(res) == TransientFailure || res.StatusCode >= 500
}

// retryOrFail returns Retry if the job has retries remaining, otherwise Fail.
// Attempt N's retry is deferred re-attempt N, so retries remain while the
// attempt count has not exceeded MaxRetries.
func (r *Retrier) retryOrFail(j *Job) Decision {
	if j.AttemptCount <= j.MaxRetries {
		return Retry
	}
	return Fail
}

// ComputeNextAttempt returns the time at which the next attempt should be
// made, keyed by the number of attempts already made: attempt 1's retry
// waits schedule[0], attempt 2's waits schedule[1], and so on, clamped to
// the final step.
func (r *Retrier) ComputeNextAttempt(attemptCount int) time.Time {
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.schedule) {
		idx = len(r.schedule) - 1
	}
	return time.Now().UTC().Add(r.schedule[idx])
}
