package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

func TestWebhookSinkDeliversEvent(t *testing.T) {
	t.Parallel()

	var got domain.ProgressEvent
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, nil)
	sink.Notify(context.Background(), domain.ProgressEvent{
		Step:       5,
		TotalSteps: 7,
		Message:    "checking duplicate",
		Detail:     "呪術廻戦|渋谷パルコ|2026-09-01",
	})

	if calls != 1 {
		t.Fatalf("expected one delivery, got %d", calls)
	}
	if got.Step != 5 || got.TotalSteps != 7 || got.Message != "checking duplicate" {
		t.Fatalf("unexpected event payload: %+v", got)
	}
}

func TestWebhookSinkFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	sink := NewWebhookSink("http://127.0.0.1:1", nil)
	sink.Notify(context.Background(), domain.ProgressEvent{Step: 1, TotalSteps: 7, Message: "fetching feed"})
}

type recordingSink struct {
	events []domain.ProgressEvent
}

func (r *recordingSink) Notify(_ context.Context, event domain.ProgressEvent) {
	r.events = append(r.events, event)
}

func TestMultiFansOutInOrder(t *testing.T) {
	t.Parallel()

	first := &recordingSink{}
	second := &recordingSink{}
	multi := Multi{first, nil, second}

	event := domain.ProgressEvent{Step: 7, TotalSteps: 7, Message: "published", Detail: "wordpress:4242"}
	multi.Notify(context.Background(), event)

	for _, sink := range []*recordingSink{first, second} {
		if len(sink.events) != 1 || sink.events[0] != event {
			t.Fatalf("sink did not receive the event: %+v", sink.events)
		}
	}
}

var _ ports.ProgressSink = (*recordingSink)(nil)
