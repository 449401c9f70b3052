// Package realtime delivers row-change notifications to subscribers. The
// feed is Postgres LISTEN/NOTIFY on the row_events channel, populated by
// triggers on the watched tables; database webhooks can be injected into
// the same dispatch path.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"

	"earnzy/internal/metrics"
)

const channelName = "row_events"

// Event is a single row-level change.
type Event struct {
	Table  string         `json:"table"`
	Event  string         `json:"event"`
	Record map[string]any `json:"record"`
}

// Handler receives matching events. Handlers run sequentially on the
// listener's event loop.
type Handler func(ctx context.Context, evt Event)

type subscription struct {
	table  string
	event  string
	column string
	value  string
	fn     Handler
}

// Subscription is a cancellable handle to an active subscription.
type Subscription struct {
	id       int
	listener *Listener
	once     sync.Once
}

// Close removes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.listener.mu.Lock()
		delete(s.listener.subs, s.id)
		s.listener.mu.Unlock()
	})
}

// Listener owns a dedicated database connection and fans notifications out
// to matching subscriptions.
type Listener struct {
	databaseURL string
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
}

// NewListener creates a listener; Run must be called to start receiving.
func NewListener(databaseURL string, logger *slog.Logger, metricRegistry *metrics.Metrics) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		logger:      logger.With("component", "realtime"),
		metrics:     metricRegistry,
		subs:        map[int]*subscription{},
	}
}

// Subscribe registers a handler for events on table with the given event
// type where record[column] equals value. The returned handle must be
// closed when the consumer goes away.
func (l *Listener) Subscribe(table, event, column, value string, fn Handler) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.subs[id] = &subscription{table: table, event: event, column: column, value: value, fn: fn}
	l.logger.Debug("subscription added", "table", table, "event", event, "filter", column+"="+value)
	return &Subscription{id: id, listener: l}
}

// Run connects, listens and dispatches until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.databaseURL)
	if err != nil {
		return fmt.Errorf("realtime connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return fmt.Errorf("listen %s: %w", channelName, err)
	}
	l.logger.Info("realtime listener started", "channel", channelName)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("realtime listener stopped")
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		var evt Event
		if err := json.Unmarshal([]byte(notification.Payload), &evt); err != nil {
			l.logger.Warn("discarding malformed notification", "error", err)
			l.metrics.Errors.WithLabelValues("realtime").Inc()
			continue
		}
		l.Dispatch(ctx, evt)
	}
}

// Dispatch delivers an event to all matching subscriptions. Exposed so the
// webhook receiver can feed the same path.
func (l *Listener) Dispatch(ctx context.Context, evt Event) {
	l.mu.Lock()
	matching := make([]*subscription, 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.matches(evt) {
			matching = append(matching, sub)
		}
	}
	l.mu.Unlock()

	if len(matching) == 0 {
		return
	}
	l.metrics.RealtimeEvents.WithLabelValues(evt.Table, evt.Event).Inc()
	for _, sub := range matching {
		sub.fn(ctx, evt)
	}
}

func (s *subscription) matches(evt Event) bool {
	if s.table != evt.Table || s.event != evt.Event {
		return false
	}
	if s.column == "" {
		return true
	}
	got, ok := evt.Record[s.column]
	if !ok {
		return false
	}
	return stringify(got) == s.value
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
