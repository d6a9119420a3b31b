package delivery_test

import (
	"testing"
	"time"

	"github.com/hooklinehq/hookline/delivery"
)

func TestRetrierDecide(t *testing.T) {
	schedule := []time.Duration{60 * time.Second, 5 * time.Minute, 15 * time.Minute}
	retrier := delivery.NewRetrier(schedule)

	tests := []struct {
		name   string
		result delivery.Result
		job    *delivery.Job
		want   delivery.Decision
	}{
		{
			name:   "200 OK → Delivered",
			result: delivery.Result{StatusCode: 200},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Delivered,
		},
		{
			name:   "201 Created → Delivered",
			result: delivery.Result{StatusCode: 201},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Delivered,
		},
		{
			name:   "204 No Content → Delivered",
			result: delivery.Result{StatusCode: 204},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Delivered,
		},
		{
			name:   "299 → Delivered",
			result: delivery.Result{StatusCode: 299},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Delivered,
		},
		{
			name:   "400 Bad Request → Fail immediately",
			result: delivery.Result{StatusCode: 400},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Fail,
		},
		{
			name:   "404 Not Found → Fail immediately",
			result: delivery.Result{StatusCode: 404},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Fail,
		},
		{
			name:   "410 Gone → Fail immediately",
			result: delivery.Result{StatusCode: 410},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Fail,
		},
		{
			name:   "429 Too Many Requests → Fail immediately",
			result: delivery.Result{StatusCode: 429},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Fail,
		},
		{
			name:   "500 Internal Server Error → Retry (within limits)",
			result: delivery.Result{StatusCode: 500},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 3},
			want:   delivery.Retry,
		},
		{
			name:   "503 Service Unavailable → Retry (within limits)",
			result: delivery.Result{StatusCode: 503},
			job:    &delivery.Job{AttemptCount: 3, MaxRetries: 3},
			want:   delivery.Retry,
		},
		{
			name:   "503 Service Unavailable → Fail (exhausted)",
			result: delivery.Result{StatusCode: 503},
			job:    &delivery.Job{AttemptCount: 4, MaxRetries: 3},
			want:   delivery.Fail,
		},
		{
			name:   "no response → Retry (within limits)",
			result: delivery.Result{StatusCode: 0, Error: "connection refused"},
			job:    &delivery.Job{AttemptCount: 2, MaxRetries: 3},
			want:   delivery.Retry,
		},
		{
			name:   "no response → Fail (exhausted)",
			result: delivery.Result{StatusCode: 0, Error: "context deadline exceeded"},
			job:    &delivery.Job{AttemptCount: 4, MaxRetries: 3},
			want:   delivery.Fail,
		},
		{
			name:   "retries disabled → Fail on first transient",
			result: delivery.Result{StatusCode: 503},
			job:    &delivery.Job{AttemptCount: 1, MaxRetries: 0},
			want:   delivery.Fail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retrier.Decide(tt.result, tt.job)
			if got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrierComputeNextAttempt(t *testing.T) {
	schedule := []time.Duration{60 * time.Second, 5 * time.Minute, 15 * time.Minute}
	retrier := delivery.NewRetrier(schedule)

	tests := []struct {
		name         string
		attemptCount int
		wantDelay    time.Duration
	}{
		{name: "first attempt's retry waits first step", attemptCount: 1, wantDelay: 60 * time.Second},
		{name: "second attempt's retry waits second step", attemptCount: 2, wantDelay: 5 * time.Minute},
		{name: "third attempt's retry waits third step", attemptCount: 3, wantDelay: 15 * time.Minute},
		{name: "beyond schedule clamps to final step", attemptCount: 7, wantDelay: 15 * time.Minute},
		{name: "zero clamps to first step", attemptCount: 0, wantDelay: 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now().UTC()
			got := retrier.ComputeNextAttempt(tt.attemptCount)
			after := time.Now().UTC()

			if got.Before(before.Add(tt.wantDelay)) || got.After(after.Add(tt.wantDelay)) {
				t.Errorf("ComputeNextAttempt(%d) = %v, want roughly %v from now",
					tt.attemptCount, got, tt.wantDelay)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		result delivery.Result
		want   delivery.Class
	}{
		{name: "200", result: delivery.Result{StatusCode: 200}, want: delivery.Success},
		{name: "204", result: delivery.Result{StatusCode: 204}, want: delivery.Success},
		{name: "301", result: delivery.Result{StatusCode: 301}, want: delivery.ApplicationFailure},
		{name: "404", result: delivery.Result{StatusCode: 404}, want: delivery.ApplicationFailure},
		{name: "500", result: delivery.Result{StatusCode: 500}, want: delivery.ApplicationFailure},
		{name: "no response", result: delivery.Result{StatusCode: 0}, want: delivery.TransientFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := delivery.Classify(tt.result); got != tt.want {
				t.Errorf("Classify(%d) = %v, want %v", tt.result.StatusCode, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name   string
		result delivery.Result
		want   bool
	}{
		{name: "no response is retryable", result: delivery.Result{StatusCode: 0, Error: "timeout"}, want: true},
		{name: "500 is retryable", result: delivery.Result{StatusCode: 500}, want: true},
		{name: "599 is retryable", result: delivery.Result{StatusCode: 599}, want: true},
		{name: "404 is not retryable", result: delivery.Result{StatusCode: 404}, want: false},
		{name: "429 is not retryable", result: delivery.Result{StatusCode: 429}, want: false},
		{name: "200 is not retryable", result: delivery.Result{StatusCode: 200}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := delivery.Retryable(tt.result); got != tt.want {
				t.Errorf("Retryable(%d) = %v, want %v", tt.result.StatusCode, got, tt.want)
			}
		})
	}
}

func TestResultFailureReason(t *testing.T) {
	res := delivery.Result{StatusCode: 503}
	if got, want := res.FailureReason(), "failed with status 503"; got != want {
		t.Errorf("FailureReason() = %q, want %q", got, want)
	}

	res = delivery.Result{Error: "connection refused"}
	if got, want := res.FailureReason(), "connection refused"; got != want {
		t.Errorf("FailureReason() = %q, want %q", got, want)
	}
}
