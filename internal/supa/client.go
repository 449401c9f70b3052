// Package supa provides typed access to the Supabase auth and storage
// HTTP APIs.
package supa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"earnzy/internal/metrics"
)

// Client provides typed access to the Supabase REST surface.
type Client struct {
	logger  *slog.Logger
	baseURL string
	anonKey string
	http    *http.Client
	metrics *metrics.Metrics
}

// Config holds Supabase client configuration.
type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// APIError carries the backend's status and raw error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.Status)
}

// New creates a new Supabase client.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:  logger.With("component", "supabase"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// do issues a request against the Supabase API. A non-empty accessToken is
// sent as the bearer credential, otherwise the anon key is used.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, contentType, accessToken string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("apikey", c.anonKey)
	if accessToken == "" {
		accessToken = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	status := "error"
	if err == nil {
		status = fmt.Sprintf("%d", resp.StatusCode)
	}
	if c.metrics != nil {
		c.metrics.SupabaseRequests.WithLabelValues(endpoint, status).Inc()
		c.metrics.SupabaseLatency.WithLabelValues(endpoint, status).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", endpoint, err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(payload)}
	}
	return payload, nil
}

// errorMessage extracts a human-readable message from the various error
// envelopes the Supabase services return.
func errorMessage(payload []byte) string {
	var envelope struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		for _, msg := range []string{envelope.Message, envelope.Msg, envelope.ErrorDescription, envelope.Error} {
			if msg != "" {
				return msg
			}
		}
	}
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return "unknown error"
	}
	return trimmed
}
