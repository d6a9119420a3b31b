package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Hookline, backed by any go-utils
// MetricFactory.
type Metrics struct {
	EventsStoredTotal  gu.Counter
	AttemptsTotal      gu.Counter
	AttemptLatency     gu.Histogram
	LogAppendFailures  gu.Counter
	DLQSize            gu.Gauge
	PendingRetries     gu.Gauge
	SubscribersSkipped gu.Counter
}

// NewMetrics creates Hookline metric instruments using the supplied factory.
// Pass metrics.NewMetricsCollector("hookline") for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsStoredTotal:  factory.Counter("hookline_events_stored_total"),
		AttemptsTotal:      factory.Counter("hookline_delivery_attempts_total"),
		AttemptLatency:     factory.Histogram("hookline_delivery_latency_seconds"),
		LogAppendFailures:  factory.Counter("hookline_log_append_failures_total"),
		DLQSize:            factory.Gauge("hookline_dlq_size"),
		PendingRetries:     factory.Gauge("hookline_pending_retries"),
		SubscribersSkipped: factory.Counter("hookline_subscribers_skipped_total"),
	}
}

// RecordAttempt records a delivery attempt with the given outcome and latency.
func (m *Metrics) RecordAttempt(outcome string, latencySeconds float64) {
	m.AttemptsTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.AttemptLatency.Observe(latencySeconds)
}
