package hookline

import (
	"log/slog"
	"time"

	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/document"
	"github.com/hooklinehq/hookline/observability"
	"github.com/hooklinehq/hookline/store"
)

// Relay is the root webhook relay engine: it stores inbound events, fans
// them out to registered subscribers, and drives bounded out-of-band
// retries.
type Relay struct {
	config     Config
	store      store.Store
	resolver   document.Resolver
	validator  *Validator
	dispatcher *delivery.Dispatcher
	scheduler  *delivery.Scheduler
	dlqSvc     *dlq.Service
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     *slog.Logger
}

// Option configures a Relay instance.
type Option func(*Relay) error

// New creates a new Relay with the given options.
func New(opts ...Option) (*Relay, error) {
	r := &Relay{
		config:   DefaultConfig(),
		resolver: document.PreSupplied{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	if !validSchedule(r.config.RetrySchedule) {
		return nil, ErrBadRetrySchedule
	}
	r.wireServices()
	return r, nil
}

// WithStore sets the persistence backend for the Relay instance.
func WithStore(s store.Store) Option {
	return func(r *Relay) error {
		r.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Relay instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithResolver sets the document resolution strategy applied to inbound
// events before storage.
func WithResolver(res document.Resolver) Option {
	return func(r *Relay) error {
		r.resolver = res
		return nil
	}
}

// WithConcurrency sets the number of retry worker goroutines.
func WithConcurrency(n int) Option {
	return func(r *Relay) error {
		r.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the retry scheduler checks for due jobs.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of jobs dequeued per poll cycle.
func WithBatchSize(n int) Option {
	return func(r *Relay) error {
		r.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.RequestTimeout = d
		return nil
	}
}

// WithMaxRetries sets the number of deferred re-attempts after a failed
// first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Relay) error {
		r.config.MaxRetries = n
		return nil
	}
}

// WithRetrySchedule sets the backoff intervals before each re-attempt.
func WithRetrySchedule(schedule []time.Duration) Option {
	return func(r *Relay) error {
		r.config.RetrySchedule = schedule
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight retries on
// shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.ShutdownTimeout = d
		return nil
	}
}

// WithTopKRule configures the URL prefix (and optionally field and value)
// for the per-subscriber topK default-injection rule.
func WithTopKRule(rule delivery.TopKRule) Option {
	return func(r *Relay) error {
		r.config.TopKRule = rule
		return nil
	}
}

// WithPayloadSchema sets a JSON Schema every inbound payload is validated
// against before storage.
func WithPayloadSchema(schema any) Option {
	return func(r *Relay) error {
		r.config.PayloadSchema = schema
		return nil
	}
}

// WithMetrics sets the metric instruments used by the engine.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Relay) error {
		r.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for per-attempt spans.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Relay) error {
		r.tracer = t
		return nil
	}
}
