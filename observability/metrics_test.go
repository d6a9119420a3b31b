package observability

import (
	"testing"

	"github.com/xraph/go-utils/metrics"
)

func TestNewMetrics_Instruments(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))

	if m.EventsStoredTotal == nil {
		t.Fatal("EventsStoredTotal should not be nil")
	}
	if m.AttemptsTotal == nil {
		t.Fatal("AttemptsTotal should not be nil")
	}
	if m.AttemptLatency == nil {
		t.Fatal("AttemptLatency should not be nil")
	}
	if m.LogAppendFailures == nil {
		t.Fatal("LogAppendFailures should not be nil")
	}
	if m.DLQSize == nil {
		t.Fatal("DLQSize should not be nil")
	}
	if m.PendingRetries == nil {
		t.Fatal("PendingRetries should not be nil")
	}
	if m.SubscribersSkipped == nil {
		t.Fatal("SubscribersSkipped should not be nil")
	}
}

func TestRecordAttempt(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))

	// Must not panic across outcome labels.
	m.RecordAttempt("delivered", 0.5)
	m.RecordAttempt("retried", 1.2)
	m.RecordAttempt("failed", 0.3)
}
