package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"earnzy/internal/supa"
)

// Bridge feeds verified database-webhook events into the listener's
// dispatch path, so webhook-sourced changes reach the same subscribers as
// LISTEN/NOTIFY ones.
type Bridge struct {
	listener *Listener
}

// NewBridge wraps the listener as a webhook processor.
func NewBridge(listener *Listener) *Bridge {
	return &Bridge{listener: listener}
}

// HandleRowEvent implements supa.WebhookProcessor.
func (b *Bridge) HandleRowEvent(ctx context.Context, event supa.WebhookEvent) error {
	var record map[string]any
	if len(event.Record) > 0 {
		if err := json.Unmarshal(event.Record, &record); err != nil {
			return fmt.Errorf("decode webhook record: %w", err)
		}
	}
	b.listener.Dispatch(ctx, Event{Table: event.Table, Event: event.Type, Record: record})
	return nil
}
