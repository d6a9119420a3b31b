// Package hookline provides a composable webhook relay engine for Go.
//
// Hookline is a library — not a service. Import it into your application to
// take an inbound event scoped to a (client, project) pair, durably record
// it, and reliably fan it out to the project's registered subscriber
// endpoints with per-attempt audit records and bounded out-of-band retries.
//
// Key features:
//   - Store-then-forward ordering: no fan-out for an event that was not
//     durably recorded
//   - Concurrent per-subscriber first attempts with an aggregated summary
//   - Append-only delivery attempt log forming a full audit trail
//   - Three-step backoff retries for transient and server-side failures,
//     with a dead letter queue and replay
//   - Pluggable document resolution and per-subscriber payload shaping
//   - Composable store pattern with multiple backends (Postgres, Redis,
//     MongoDB, Memory)
//
// Quick start:
//
//	r, err := hookline.New(
//	    hookline.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Start(ctx)
//
//	summary, err := r.Send(ctx, &event.Event{
//	    ProjectID: "p1",
//	    ClientID:  "c1",
//	    Payload:   map[string]any{"a": 1},
//	})
package hookline
