package hookline

import (
	"time"

	"github.com/hooklinehq/hookline/delivery"
)

// Config holds the configuration for a Relay instance.
type Config struct {
	// Concurrency is the number of retry worker goroutines.
	Concurrency int

	// PollInterval is how often the retry scheduler checks for due jobs.
	PollInterval time.Duration

	// BatchSize is the maximum number of jobs dequeued per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of deferred re-attempts after a failed
	// first attempt.
	MaxRetries int

	// RetrySchedule defines the backoff before each re-attempt: the retry
	// of attempt N waits RetrySchedule[N-1] (clamped to the final step).
	// Must be monotonically increasing.
	RetrySchedule []time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight retries on
	// shutdown.
	ShutdownTimeout time.Duration

	// TopKRule configures the per-subscriber topK default-injection rule.
	// Disabled unless a URL prefix is set.
	TopKRule delivery.TopKRule

	// PayloadSchema, when set, validates every inbound event payload
	// against the given JSON Schema before storage.
	PayloadSchema any
}

// DefaultRetrySchedule defines the default three-step backoff: the retries
// of attempts 1, 2 and 3 wait 60s, 300s and 900s respectively.
var DefaultRetrySchedule = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		PollInterval:    1 * time.Second,
		BatchSize:       50,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RetrySchedule:   DefaultRetrySchedule,
		ShutdownTimeout: 30 * time.Second,
		TopKRule:        delivery.DefaultTopKRule(),
	}
}

// validSchedule reports whether a backoff schedule is non-empty and strictly
// increasing.
func validSchedule(schedule []time.Duration) bool {
	if len(schedule) == 0 {
		return false
	}
	for i := 1; i < len(schedule); i++ {
		if schedule[i] <= schedule[i-1] {
			return false
		}
	}
	return schedule[0] > 0
}
