package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/subscriber"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

// Sender performs HTTP webhook delivery.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send delivers a shaped payload to a subscriber and returns the result.
// The payload is posted as JSON. No authentication header is injected:
// subscriber URLs are assumed pre-authorized or self-authenticating.
func (s *Sender) Send(ctx context.Context, sub *subscriber.Subscriber, payload map[string]any, evtID id.ID, number int) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	// Standard headers.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Hookline/1.0")
	req.Header.Set("X-Hookline-Event-ID", evtID.String())
	req.Header.Set("X-Hookline-Attempt", strconv.Itoa(number))

	// Custom subscriber headers from the registry.
	for k, v := range sub.Options.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a registry-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   decodeBody(respBody),
		LatencyMs:  int(latency),
	}
}

// decodeBody attempts a structured decode of the response body, falling back
// to raw text. Decode failure never propagates: it only changes how the body
// is captured.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}
