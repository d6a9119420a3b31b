package delivery

import (
	"context"

	"github.com/hooklinehq/hookline/id"
)

// Store defines the persistence contract for the retry queue.
type Store interface {
	// Enqueue creates a pending retry job.
	Enqueue(ctx context.Context, j *Job) error

	// Dequeue claims pending jobs whose NextAttemptAt has passed and marks
	// them running (concurrent-safe). Implementations must ensure no double
	// claim (e.g. SKIP LOCKED).
	Dequeue(ctx context.Context, limit int) ([]*Job, error)

	// UpdateJob modifies a job (state, attempt count, next_attempt_at, etc.).
	// Setting State back to pending re-queues the job for its NextAttemptAt.
	UpdateJob(ctx context.Context, j *Job) error

	// GetJob returns a job by ID.
	GetJob(ctx context.Context, jobID id.ID) (*Job, error)

	// ListJobsByEvent returns all retry jobs for a specific event.
	ListJobsByEvent(ctx context.Context, evtID id.ID) ([]*Job, error)

	// CountPending returns the number of jobs awaiting attempt.
	CountPending(ctx context.Context) (int64, error)
}
