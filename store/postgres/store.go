// Package postgres provides a PostgreSQL-backed implementation of the
// aggregate store using pgx connection pools.
//
// Retry jobs are claimed with FOR UPDATE SKIP LOCKED so multiple scheduler
// instances can poll the same database without double delivery.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	hookline "github.com/hooklinehq/hookline"
	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	relaystore "github.com/hooklinehq/hookline/store"
	"github.com/hooklinehq/hookline/subscriber"
)

// Store implements the aggregate store contract on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ relaystore.Store = (*Store)(nil)

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger.With("store", "postgres")}
}

// Connect opens a pool from a connection string and verifies connectivity.
func Connect(ctx context.Context, connString string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(pool, logger), nil
}

// Migrate applies pending schema migrations in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("%w: create migrations table: %v", hookline.ErrMigrationFailed, err)
	}

	for _, m := range migrations {
		var applied bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM hookline_schema_migrations WHERE version = $1)`,
			m.version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("%w: check version %s: %v", hookline.ErrMigrationFailed, m.version, err)
		}
		if applied {
			continue
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%w: begin %s: %v", hookline.ErrMigrationFailed, m.version, err)
		}
		if _, err := tx.Exec(ctx, m.up); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%w: apply %s (%s): %v", hookline.ErrMigrationFailed, m.version, m.name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO hookline_schema_migrations (version, name) VALUES ($1, $2)`,
			m.version, m.name,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%w: record %s: %v", hookline.ErrMigrationFailed, m.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("%w: commit %s: %v", hookline.ErrMigrationFailed, m.version, err)
		}
		s.logger.Info("migration applied", "version", m.version, "name", m.name)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CreateEvent persists an event. The write is committed before return so
// fan-out never races durability.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO hookline_events (id, project_id, client_id, document_id, payload, received_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		evt.ID, evt.ProjectID, evt.ClientID, evt.DocumentID, evt.Payload,
		evt.ReceivedAt, evt.CreatedAt, evt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, project_id, client_id, document_id, payload, received_at, created_at, updated_at
FROM hookline_events WHERE id = $1`, evtID)
	evt, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hookline.ErrEventNotFound
	}
	return evt, err
}

// ListEvents returns events, optionally filtered by project or time range.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	q := `
SELECT id, project_id, client_id, document_id, payload, received_at, created_at, updated_at
FROM hookline_events WHERE 1=1`
	var args []any
	if opts.ProjectID != "" {
		args = append(args, opts.ProjectID)
		q += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if opts.From != nil {
		args = append(args, *opts.From)
		q += fmt.Sprintf(" AND received_at >= $%d", len(args))
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		q += fmt.Sprintf(" AND received_at <= $%d", len(args))
	}
	q += " ORDER BY received_at DESC"
	q += paginate(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// CreateSubscriber stages a subscriber row. The registry of record is
// external; this writer exists for fixtures and local deployments where
// the registry view is materialized into the same database.
func (s *Store) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO hookline_subscribers (id, project_id, url, headers, rate_limit, top_k_exempt)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (project_id, id) DO UPDATE SET
    url = EXCLUDED.url, headers = EXCLUDED.headers,
    rate_limit = EXCLUDED.rate_limit, top_k_exempt = EXCLUDED.top_k_exempt,
    updated_at = NOW()`,
		sub.ID, sub.ProjectID, sub.URL, sub.Options.Headers,
		sub.Options.RateLimit, sub.Options.TopKExempt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// ListSubscribers returns the subscribers for a project ordered by ID.
func (s *Store) ListSubscribers(ctx context.Context, projectID string) ([]*subscriber.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, project_id, url, headers, rate_limit, top_k_exempt
FROM hookline_subscribers WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	out := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GetSubscriber returns a single subscriber by project and ID.
func (s *Store) GetSubscriber(ctx context.Context, projectID, subID string) (*subscriber.Subscriber, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, project_id, url, headers, rate_limit, top_k_exempt
FROM hookline_subscribers WHERE project_id = $1 AND id = $2`, projectID, subID)
	sub, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hookline.ErrSubscriberNotFound
	}
	return sub, err
}

// Append records one resolved delivery attempt.
func (s *Store) Append(ctx context.Context, att *attempt.Attempt) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO hookline_attempts (id, event_id, subscriber_id, url, number, status_code, response, error, duration_ms, attempted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		att.ID, att.EventID, att.SubscriberID, att.URL, att.Number,
		att.StatusCode, att.Response, att.Error, att.DurationMs, att.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListByEvent returns the attempts recorded for an event ordered by
// (subscriber, number).
func (s *Store) ListByEvent(ctx context.Context, evtID id.ID, opts attempt.ListOpts) ([]*attempt.Attempt, error) {
	q := `
SELECT id, event_id, subscriber_id, url, number, status_code, response, error, duration_ms, attempted_at
FROM hookline_attempts WHERE event_id = $1`
	args := []any{evtID}
	if opts.SubscriberID != "" {
		args = append(args, opts.SubscriberID)
		q += fmt.Sprintf(" AND subscriber_id = $%d", len(args))
	}
	q += " ORDER BY subscriber_id, number"
	q += paginate(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*attempt.Attempt
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// CountByEvent returns the number of attempts recorded for an event.
func (s *Store) CountByEvent(ctx context.Context, evtID id.ID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM hookline_attempts WHERE event_id = $1`, evtID,
	).Scan(&n)
	return n, err
}

// Enqueue creates a pending retry job.
func (s *Store) Enqueue(ctx context.Context, j *delivery.Job) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO hookline_jobs (id, event_id, subscriber_id, project_id, state, attempt_count, max_retries,
    next_attempt_at, last_error, last_status_code, last_latency_ms, completed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		j.ID, j.EventID, j.SubscriberID, j.ProjectID, j.State, j.AttemptCount, j.MaxRetries,
		j.NextAttemptAt, j.LastError, j.LastStatusCode, j.LastLatencyMs, j.CompletedAt,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Dequeue claims due pending jobs and marks them running. SKIP LOCKED keeps
// concurrent schedulers from claiming the same job.
func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Job, error) {
	rows, err := s.pool.Query(ctx, `
WITH claimed AS (
    SELECT id FROM hookline_jobs
    WHERE state = 'pending' AND next_attempt_at <= NOW()
    ORDER BY next_attempt_at
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE hookline_jobs j
SET state = 'running', updated_at = NOW()
FROM claimed c
WHERE j.id = c.id
RETURNING j.id, j.event_id, j.subscriber_id, j.project_id, j.state, j.attempt_count, j.max_retries,
    j.next_attempt_at, j.last_error, j.last_status_code, j.last_latency_ms, j.completed_at,
    j.created_at, j.updated_at`, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue jobs: %w", err)
	}
	defer rows.Close()

	var out []*delivery.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJob writes back a job's mutable fields.
func (s *Store) UpdateJob(ctx context.Context, j *delivery.Job) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE hookline_jobs
SET state = $2, attempt_count = $3, next_attempt_at = $4, last_error = $5,
    last_status_code = $6, last_latency_ms = $7, completed_at = $8, updated_at = NOW()
WHERE id = $1`,
		j.ID, j.State, j.AttemptCount, j.NextAttemptAt, j.LastError,
		j.LastStatusCode, j.LastLatencyMs, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookline.ErrJobNotFound
	}
	return nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.ID) (*delivery.Job, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, event_id, subscriber_id, project_id, state, attempt_count, max_retries,
    next_attempt_at, last_error, last_status_code, last_latency_ms, completed_at, created_at, updated_at
FROM hookline_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hookline.ErrJobNotFound
	}
	return j, err
}

// ListJobsByEvent returns all retry jobs for an event.
func (s *Store) ListJobsByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Job, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, event_id, subscriber_id, project_id, state, attempt_count, max_retries,
    next_attempt_at, last_error, last_status_code, last_latency_ms, completed_at, created_at, updated_at
FROM hookline_jobs WHERE event_id = $1 ORDER BY subscriber_id`, evtID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*delivery.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CountPending returns the number of jobs awaiting attempt.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM hookline_jobs WHERE state = 'pending'`,
	).Scan(&n)
	return n, err
}

// Push records a permanently failed delivery.
func (s *Store) Push(ctx context.Context, e *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO hookline_dlq (id, job_id, event_id, subscriber_id, project_id, url, payload, error,
    attempt_count, last_status_code, replayed_at, failed_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.JobID, e.EventID, e.SubscriberID, e.ProjectID, e.URL, e.Payload, e.Error,
		e.AttemptCount, e.LastStatusCode, e.ReplayedAt, e.FailedAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dlq entry: %w", err)
	}
	return nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, job_id, event_id, subscriber_id, project_id, url, payload, error,
    attempt_count, last_status_code, replayed_at, failed_at, created_at, updated_at
FROM hookline_dlq WHERE id = $1`, dlqID)
	e, err := scanDLQ(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, hookline.ErrDLQNotFound
	}
	return e, err
}

// ListDLQ returns entries matching the given options, newest failures first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	q := `
SELECT id, job_id, event_id, subscriber_id, project_id, url, payload, error,
    attempt_count, last_status_code, replayed_at, failed_at, created_at, updated_at
FROM hookline_dlq WHERE 1=1`
	var args []any
	if opts.ProjectID != "" {
		args = append(args, opts.ProjectID)
		q += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if opts.SubscriberID != "" {
		args = append(args, opts.SubscriberID)
		q += fmt.Sprintf(" AND subscriber_id = $%d", len(args))
	}
	if opts.From != nil {
		args = append(args, *opts.From)
		q += fmt.Sprintf(" AND failed_at >= $%d", len(args))
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		q += fmt.Sprintf(" AND failed_at <= $%d", len(args))
	}
	q += " ORDER BY failed_at DESC"
	q += paginate(&args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list dlq: %w", err)
	}
	defer rows.Close()

	var out []*dlq.Entry
	for rows.Next() {
		e, err := scanDLQ(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replay marks an entry replayed and returns its job to the pending queue
// for an immediate attempt. Entry and job are updated in one transaction.
func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replay: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var jobID id.ID
	err = tx.QueryRow(ctx, `
UPDATE hookline_dlq SET replayed_at = NOW(), updated_at = NOW()
WHERE id = $1
RETURNING job_id`, dlqID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return hookline.ErrDLQNotFound
	}
	if err != nil {
		return fmt.Errorf("mark replayed: %w", err)
	}

	tag, err := tx.Exec(ctx, `
UPDATE hookline_jobs SET state = 'pending', next_attempt_at = NOW(), updated_at = NOW()
WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookline.ErrJobNotFound
	}
	return tx.Commit(ctx)
}

// ReplayBulk replays all unreplayed entries that failed within [from, to].
func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replay bulk: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `
UPDATE hookline_dlq SET replayed_at = NOW(), updated_at = NOW()
WHERE failed_at >= $1 AND failed_at <= $2 AND replayed_at IS NULL
RETURNING job_id`, from, to)
	if err != nil {
		return 0, fmt.Errorf("mark replayed: %w", err)
	}
	var jobIDs []id.ID
	for rows.Next() {
		var jobID id.ID
		if err := rows.Scan(&jobID); err != nil {
			rows.Close()
			return 0, err
		}
		jobIDs = append(jobIDs, jobID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(jobIDs) == 0 {
		return 0, tx.Commit(ctx)
	}

	ids := make([]string, len(jobIDs))
	for i, jobID := range jobIDs {
		ids[i] = jobID.String()
	}
	if _, err := tx.Exec(ctx, `
UPDATE hookline_jobs SET state = 'pending', next_attempt_at = NOW(), updated_at = NOW()
WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("requeue jobs: %w", err)
	}
	return int64(len(jobIDs)), tx.Commit(ctx)
}

// Purge removes entries that failed before the given time.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM hookline_dlq WHERE failed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM hookline_dlq`).Scan(&n)
	return n, err
}

// paginate appends LIMIT/OFFSET clauses for positive values.
func paginate(args *[]any, limit, offset int) string {
	var q string
	if limit > 0 {
		*args = append(*args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		q += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return q
}
