package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hooklinehq/hookline/delivery"
	"github.com/hooklinehq/hookline/id"
	"github.com/hooklinehq/hookline/subscriber"
)

func TestSenderSuccess(t *testing.T) {
	evtID := id.NewEventID()

	var gotBody map[string]any
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	sender := delivery.NewSender(5 * time.Second)
	sub := &subscriber.Subscriber{
		ID:  "sub-1",
		URL: server.URL,
		Options: subscriber.DeliveryOptions{
			Headers: map[string]string{"X-Custom": "yes"},
		},
	}

	res := sender.Send(context.Background(), sub, map[string]any{"hello": "world"}, evtID, 1)

	if res.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", res.StatusCode)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty", res.Error)
	}
	if gotBody["hello"] != "world" {
		t.Errorf("delivered body = %v, want hello=world", gotBody)
	}

	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := gotHeaders.Get("X-Hookline-Event-ID"); got != evtID.String() {
		t.Errorf("X-Hookline-Event-ID = %q, want %q", got, evtID)
	}
	if got := gotHeaders.Get("X-Hookline-Attempt"); got != "1" {
		t.Errorf("X-Hookline-Attempt = %q, want 1", got)
	}
	if got := gotHeaders.Get("X-Custom"); got != "yes" {
		t.Errorf("X-Custom = %q, want yes", got)
	}

	body, ok := res.Response.(map[string]any)
	if !ok {
		t.Fatalf("Response = %T, want decoded JSON object", res.Response)
	}
	if body["received"] != true {
		t.Errorf("Response = %v, want received=true", body)
	}
}

func TestSenderNonJSONResponseCapturedAsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream choked"))
	}))
	defer server.Close()

	sender := delivery.NewSender(5 * time.Second)
	sub := &subscriber.Subscriber{ID: "sub-1", URL: server.URL}

	res := sender.Send(context.Background(), sub, map[string]any{}, id.NewEventID(), 1)

	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("StatusCode = %d, want 502", res.StatusCode)
	}
	if got, ok := res.Response.(string); !ok || got != "upstream choked" {
		t.Errorf("Response = %v (%T), want raw text", res.Response, res.Response)
	}
}

func TestSenderResponseBodyCapped(t *testing.T) {
	big := strings.Repeat("x", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer server.Close()

	sender := delivery.NewSender(5 * time.Second)
	sub := &subscriber.Subscriber{ID: "sub-1", URL: server.URL}

	res := sender.Send(context.Background(), sub, map[string]any{}, id.NewEventID(), 1)

	captured, ok := res.Response.(string)
	if !ok {
		t.Fatalf("Response = %T, want string", res.Response)
	}
	if len(captured) != 1024 {
		t.Errorf("captured %d bytes, want 1024", len(captured))
	}
}

func TestSenderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	sender := delivery.NewSender(1 * time.Second)
	sub := &subscriber.Subscriber{ID: "sub-1", URL: server.URL}

	res := sender.Send(context.Background(), sub, map[string]any{}, id.NewEventID(), 1)

	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", res.StatusCode)
	}
	if res.Error == "" {
		t.Error("Error is empty, want transport failure description")
	}
	if delivery.Classify(res) != delivery.TransientFailure {
		t.Errorf("Classify = %v, want TransientFailure", delivery.Classify(res))
	}
}

func TestSenderEmptyResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := delivery.NewSender(5 * time.Second)
	sub := &subscriber.Subscriber{ID: "sub-1", URL: server.URL}

	res := sender.Send(context.Background(), sub, map[string]any{}, id.NewEventID(), 1)

	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("StatusCode = %d, want 204", res.StatusCode)
	}
	if res.Response != nil {
		t.Errorf("Response = %v, want nil for empty body", res.Response)
	}
}
