package postgres

import (
	"github.com/hooklinehq/hookline/attempt"
	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/dlq"
	"github.com/hooklinehq/hookline/event"
	"github.com/hooklinehq/hookline/subscriber"
)

// rowScanner abstracts pgx.Row and pgx.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var evt event.Event
	err := row.Scan(
		&evt.ID, &evt.ProjectID, &evt.ClientID, &evt.DocumentID,
		&evt.Payload, &evt.ReceivedAt, &evt.CreatedAt, &evt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

func scanSubscriber(row rowScanner) (*subscriber.Subscriber, error) {
	var sub subscriber.Subscriber
	err := row.Scan(
		&sub.ID, &sub.ProjectID, &sub.URL,
		&sub.Options.Headers, &sub.Options.RateLimit, &sub.Options.TopKExempt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanAttempt(row rowScanner) (*attempt.Attempt, error) {
	var att attempt.Attempt
	err := row.Scan(
		&att.ID, &att.EventID, &att.SubscriberID, &att.URL, &att.Number,
		&att.StatusCode, &att.Response, &att.Error, &att.DurationMs, &att.AttemptedAt,
	)
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func scanJob(row rowScanner) (*delivery.Job, error) {
	var j delivery.Job
	err := row.Scan(
		&j.ID, &j.EventID, &j.SubscriberID, &j.ProjectID, &j.State,
		&j.AttemptCount, &j.MaxRetries, &j.NextAttemptAt, &j.LastError,
		&j.LastStatusCode, &j.LastLatencyMs, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanDLQ(row rowScanner) (*dlq.Entry, error) {
	var e dlq.Entry
	err := row.Scan(
		&e.ID, &e.JobID, &e.EventID, &e.SubscriberID, &e.ProjectID, &e.URL,
		&e.Payload, &e.Error, &e.AttemptCount, &e.LastStatusCode,
		&e.ReplayedAt, &e.FailedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
