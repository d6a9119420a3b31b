package mongo

import (
	"fmt"
	"time"

	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/internal/entity"
	"github.com/hooklinehq/hookline/subscriber"
)

// --- Event models ---

type eventModel struct {
	ID         string         `bson:"_id"`
	ProjectID  string         `bson:"project_id"`
	ClientID   string         `bson:"client_id,omitempty"`
	DocumentID string         `bson:"document_id,omitempty"`
	Payload    map[string]any `bson:"payload"`
	ReceivedAt time.Time      `bson:"received_at"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:         evt.ID.String(),
		ProjectID:  evt.ProjectID,
		ClientID:   evt.ClientID,
		DocumentID: evt.DocumentID,
		Payload:    evt.Payload,
		ReceivedAt: evt.ReceivedAt,
		CreatedAt:  evt.CreatedAt,
		UpdatedAt:  evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.Event{
		Entity:     entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         evtID,
		ProjectID:  m.ProjectID,
		ClientID:   m.ClientID,
		DocumentID: m.DocumentID,
		Payload:    m.Payload,
		ReceivedAt: m.ReceivedAt,
	}, nil
}

// --- Subscriber models ---

type subscriberModel struct {
	SubscriberID string            `bson:"subscriber_id"`
	ProjectID    string            `bson:"project_id"`
	URL          string            `bson:"url"`
	Headers      map[string]string `bson:"headers,omitempty"`
	RateLimit    int               `bson:"rate_limit,omitempty"`
	TopKExempt   bool              `bson:"top_k_exempt,omitempty"`
}

func toSubscriberModel(sub *subscriber.Subscriber) *subscriberModel {
	return &subscriberModel{
		SubscriberID: sub.ID,
		ProjectID:    sub.ProjectID,
		URL:          sub.URL,
		Headers:      sub.Options.Headers,
		RateLimit:    sub.Options.RateLimit,
		TopKExempt:   sub.Options.TopKExempt,
	}
}

func fromSubscriberModel(m *subscriberModel) *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ID:        m.SubscriberID,
		ProjectID: m.ProjectID,
		URL:       m.URL,
		Options: subscriber.DeliveryOptions{
			Headers:    m.Headers,
			RateLimit:  m.RateLimit,
			TopKExempt: m.TopKExempt,
		},
	}
}

// --- Attempt models ---

type attemptModel struct {
	ID           string    `bson:"_id"`
	EventID      string    `bson:"event_id"`
	SubscriberID string    `bson:"subscriber_id"`
	URL          string    `bson:"url"`
	Number       int       `bson:"number"`
	StatusCode   int       `bson:"status_code,omitempty"`
	Response     any       `bson:"response,omitempty"`
	Error        string    `bson:"error,omitempty"`
	DurationMs   int       `bson:"duration_ms"`
	AttemptedAt  time.Time `bson:"attempted_at"`
}

func toAttemptModel(att *attempt.Attempt) *attemptModel {
	return &attemptModel{
		ID:           att.ID.String(),
		EventID:      att.EventID.String(),
		SubscriberID: att.SubscriberID,
		URL:          att.URL,
		Number:       att.Number,
		StatusCode:   att.StatusCode,
		Response:     att.Response,
		Error:        att.Error,
		DurationMs:   att.DurationMs,
		AttemptedAt:  att.AttemptedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*attempt.Attempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &attempt.Attempt{
		ID:           attID,
		EventID:      evtID,
		SubscriberID: m.SubscriberID,
		URL:          m.URL,
		Number:       m.Number,
		StatusCode:   m.StatusCode,
		Response:     m.Response,
		Error:        m.Error,
		DurationMs:   m.DurationMs,
		AttemptedAt:  m.AttemptedAt,
	}, nil
}

// --- Job models ---

type jobModel struct {
	ID             string     `bson:"_id"`
	EventID        string     `bson:"event_id"`
	SubscriberID   string     `bson:"subscriber_id"`
	ProjectID      string     `bson:"project_id"`
	State          string     `bson:"state"`
	AttemptCount   int        `bson:"attempt_count"`
	MaxRetries     int        `bson:"max_retries"`
	NextAttemptAt  time.Time  `bson:"next_attempt_at"`
	LastError      string     `bson:"last_error,omitempty"`
	LastStatusCode int        `bson:"last_status_code,omitempty"`
	LastLatencyMs  int        `bson:"last_latency_ms,omitempty"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toJobModel(j *delivery.Job) *jobModel {
	return &jobModel{
		ID:             j.ID.String(),
		EventID:        j.EventID.String(),
		SubscriberID:   j.SubscriberID,
		ProjectID:      j.ProjectID,
		State:          string(j.State),
		AttemptCount:   j.AttemptCount,
		MaxRetries:     j.MaxRetries,
		NextAttemptAt:  j.NextAttemptAt,
		LastError:      j.LastError,
		LastStatusCode: j.LastStatusCode,
		LastLatencyMs:  j.LastLatencyMs,
		CompletedAt:    j.CompletedAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*delivery.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &delivery.Job{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             jobID,
		EventID:        evtID,
		SubscriberID:   m.SubscriberID,
		ProjectID:      m.ProjectID,
		State:          delivery.State(m.State),
		AttemptCount:   m.AttemptCount,
		MaxRetries:     m.MaxRetries,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		LastLatencyMs:  m.LastLatencyMs,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// --- DLQ models ---

type dlqModel struct {
	ID             string     `bson:"_id"`
	JobID          string     `bson:"job_id"`
	EventID        string     `bson:"event_id"`
	SubscriberID   string     `bson:"subscriber_id"`
	ProjectID      string     `bson:"project_id"`
	URL            string     `bson:"url"`
	Payload        any        `bson:"payload,omitempty"`
	Error          string     `bson:"error"`
	AttemptCount   int        `bson:"attempt_count"`
	LastStatusCode int        `bson:"last_status_code,omitempty"`
	ReplayedAt     *time.Time `bson:"replayed_at,omitempty"`
	FailedAt       time.Time  `bson:"failed_at"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDLQModel(e *dlq.Entry) *dlqModel {
	return &dlqModel{
		ID:             e.ID.String(),
		JobID:          e.JobID.String(),
		EventID:        e.EventID.String(),
		SubscriberID:   e.SubscriberID,
		ProjectID:      e.ProjectID,
		URL:            e.URL,
		Payload:        e.Payload,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQModel(m *dlqModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dlq ID %q: %w", m.ID, err)
	}
	jobID, err := id.ParseJobID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("parse job ID %q: %w", m.JobID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &dlq.Entry{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             dlqID,
		JobID:          jobID,
		EventID:        evtID,
		SubscriberID:   m.SubscriberID,
		ProjectID:      m.ProjectID,
		URL:            m.URL,
		Payload:        m.Payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}
