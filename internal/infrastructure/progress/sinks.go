// Package progress holds the progress-sink adapters. Sinks are strictly
// one-way: a delivery failure is logged and never aborts the run.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

// LogSink writes progress events to the structured log.
type LogSink struct {
	logger *slog.Logger
}

var _ ports.ProgressSink = (*LogSink)(nil)

// NewLogSink wraps a logger as a sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the event.
func (s *LogSink) Notify(ctx context.Context, event domain.ProgressEvent) {
	if s.logger == nil {
		return
	}
	s.logger.Info("progress",
		"step", event.Step,
		"total", event.TotalSteps,
		"message", event.Message,
		"detail", event.Detail,
	)
}

// WebhookSink posts each event as JSON to an external endpoint.
type WebhookSink struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.ProgressSink = (*WebhookSink)(nil)

// NewWebhookSink wires the endpoint; a short timeout keeps a slow
// consumer from stalling the run.
func NewWebhookSink(endpoint string, logger *slog.Logger) *WebhookSink {
	return &WebhookSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// Notify delivers the event best-effort.
func (s *WebhookSink) Notify(ctx context.Context, event domain.ProgressEvent) {
	if s.endpoint == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.warn("marshal progress event", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		s.warn("build progress request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.warn("deliver progress event", err)
		return
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		s.warn("progress endpoint rejected event", nil)
	}
}

func (s *WebhookSink) warn(msg string, err error) {
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Warn(msg, "error", err)
		return
	}
	s.logger.Warn(msg)
}

// Multi fans one event out to several sinks in order.
type Multi []ports.ProgressSink

var _ ports.ProgressSink = (Multi)(nil)

// Notify delivers to every sink.
func (m Multi) Notify(ctx context.Context, event domain.ProgressEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, event)
		}
	}
}
