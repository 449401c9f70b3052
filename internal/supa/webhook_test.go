package supa

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"earnzy/internal/metrics"
)

type recordingProcessor struct {
	events []WebhookEvent
	err    error
}

func (p *recordingProcessor) HandleRowEvent(ctx context.Context, event WebhookEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func postWebhook(handler *WebhookHandler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/db", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookValidEventForwarded(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewWebhookHandler(slog.Default(), metrics.Registry("test"), "s3cret", processor)

	rec := postWebhook(handler, "s3cret", `{"type":"UPDATE","table":"users","record":{"id":"u1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(processor.events) != 1 {
		t.Fatalf("expected one event, got %d", len(processor.events))
	}
	evt := processor.events[0]
	if evt.Table != "users" || evt.Type != "UPDATE" || evt.ReceivedAt.IsZero() {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	processor := &recordingProcessor{}
	handler := NewWebhookHandler(slog.Default(), metrics.Registry("test"), "s3cret", processor)

	rec := postWebhook(handler, "wrong", `{"type":"UPDATE","table":"users"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(processor.events) != 0 {
		t.Fatal("unauthenticated event must not be forwarded")
	}
}

func TestWebhookRejectsWhenNoSecretConfigured(t *testing.T) {
	handler := NewWebhookHandler(slog.Default(), metrics.Registry("test"), "", &recordingProcessor{})

	rec := postWebhook(handler, "", `{"type":"UPDATE","table":"users"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookRejectsMalformedAndIncompletePayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"type":`},
		{"missing table", `{"type":"UPDATE"}`},
		{"missing type", `{"table":"users"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewWebhookHandler(slog.Default(), metrics.Registry("test"), "s3cret", &recordingProcessor{})
			rec := postWebhook(handler, "s3cret", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	handler := NewWebhookHandler(slog.Default(), metrics.Registry("test"), "s3cret", &recordingProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/webhooks/db", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
