package supa

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"earnzy/internal/metrics"
)

// WebhookEvent is a row-change event delivered by a Supabase database
// webhook. Record holds the new row as column name to value.
type WebhookEvent struct {
	Type       string          `json:"type"`
	Table      string          `json:"table"`
	Record     json.RawMessage `json:"record"`
	ReceivedAt time.Time       `json:"-"`
}

// WebhookProcessor handles verified webhook events.
type WebhookProcessor interface {
	HandleRowEvent(ctx context.Context, event WebhookEvent) error
}

// WebhookHandler verifies the shared webhook secret and forwards events.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	secret    string
	processor WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(logger *slog.Logger, metrics *metrics.Metrics, secret string, processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With("component", "supabase_webhook"),
		metrics:   metrics,
		secret:    secret,
		processor: processor,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Webhook-Secret")), []byte(h.secret)) != 1 {
		h.metrics.Errors.WithLabelValues("webhook_auth").Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.Errors.WithLabelValues("webhook").Inc()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.metrics.Errors.WithLabelValues("webhook").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	event.ReceivedAt = time.Now()

	if event.Table == "" || event.Type == "" {
		http.Error(w, "missing table or type", http.StatusBadRequest)
		return
	}

	h.logger.Debug("webhook event received", "table", event.Table, "type", event.Type)

	if err := h.processor.HandleRowEvent(r.Context(), event); err != nil {
		h.logger.Error("webhook processing failed", "error", err, "table", event.Table)
		h.metrics.Errors.WithLabelValues("webhook").Inc()
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
