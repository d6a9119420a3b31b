// Package document resolves the document an event refers to.
//
// Which lookup key identifies a project's document varies between
// deployments, so resolution is a pluggable, explicitly configured strategy
// rather than a hardcoded rule: accept an ID the caller pre-supplied,
// look one up by project, or look one up by client and project.
package document

import (
	"context"
	"errors"

	"github.com/hooklinehq/hookline/event"
)

// ErrNoDocument is returned when no document exists for the lookup key.
var ErrNoDocument = errors.New("document: not found")

// Source is the external lookup the project-keyed strategies read from.
type Source interface {
	// DocumentForProject returns the document ID registered for a project.
	DocumentForProject(ctx context.Context, projectID string) (string, error)

	// DocumentForClientProject returns the document ID registered for a
	// (client, project) pair.
	DocumentForClientProject(ctx context.Context, clientID, projectID string) (string, error)
}

// Resolver resolves the document ID for an inbound event before it is
// stored. Returning an empty ID with a nil error means the event simply has
// no document.
type Resolver interface {
	Resolve(ctx context.Context, evt *event.Event) (string, error)
}

// PreSupplied accepts whatever document ID the caller put on the event.
// This is the default strategy.
type PreSupplied struct{}

// Resolve returns the event's own DocumentID.
func (PreSupplied) Resolve(_ context.Context, evt *event.Event) (string, error) {
	return evt.DocumentID, nil
}

// ByProject looks the document up by project ID.
type ByProject struct {
	Source Source
}

// Resolve returns the document registered for the event's project, or the
// empty ID when none is registered.
func (r ByProject) Resolve(ctx context.Context, evt *event.Event) (string, error) {
	docID, err := r.Source.DocumentForProject(ctx, evt.ProjectID)
	if errors.Is(err, ErrNoDocument) {
		return "", nil
	}
	return docID, err
}

// ByClientAndProject looks the document up by the (client, project) pair,
// falling back to the project-only lookup when the event carries no client.
type ByClientAndProject struct {
	Source Source
}

// Resolve returns the document registered for the event's client and
// project, or the empty ID when none is registered.
func (r ByClientAndProject) Resolve(ctx context.Context, evt *event.Event) (string, error) {
	var (
		docID string
		err   error
	)
	if evt.ClientID == "" {
		docID, err = r.Source.DocumentForProject(ctx, evt.ProjectID)
	} else {
		docID, err = r.Source.DocumentForClientProject(ctx, evt.ClientID, evt.ProjectID)
	}
	if errors.Is(err, ErrNoDocument) {
		return "", nil
	}
	return docID, err
}
