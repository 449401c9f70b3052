// Package dashboard renders a read-only view of balance, recent activity
// and derived statistics, and keeps it live through row-change
// subscriptions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"earnzy/internal/auth"
	"earnzy/internal/metrics"
	"earnzy/internal/realtime"
	"earnzy/internal/repo"
)

const recentLimit = 5

// ErrNotSignedIn is returned when the dashboard is opened without a
// resolved session.
var ErrNotSignedIn = errors.New("not signed in")

// SessionSource exposes the resolved identity.
type SessionSource interface {
	IdentityID() string
}

// Store is the slice of the session cache the dashboard needs.
type Store interface {
	SaveProfile(ctx context.Context, user *repo.User) error
	LoadProfile(ctx context.Context) (*repo.User, bool, error)
}

// Subscriber opens filtered row-change subscriptions.
type Subscriber interface {
	Subscribe(table, event, column, value string, fn realtime.Handler) *realtime.Subscription
}

// Controller aggregates the dashboard view and keeps it current.
type Controller struct {
	repo     repo.Repository
	store    Store
	sessions SessionSource
	rt       Subscriber
	nav      auth.Navigator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu      sync.Mutex
	profile *repo.User
	view    ViewState
	subs    []*realtime.Subscription
}

// New constructs the controller with explicit dependencies.
func New(repository repo.Repository, store Store, sessions SessionSource, rt Subscriber, nav auth.Navigator, logger *slog.Logger, metricRegistry *metrics.Metrics) *Controller {
	return &Controller{
		repo:     repository,
		store:    store,
		sessions: sessions,
		rt:       rt,
		nav:      nav,
		logger:   logger.With("component", "dashboard"),
		metrics:  metricRegistry,
		now:      time.Now,
	}
}

// Initialize resolves auth, loads the profile and recent activity, computes
// derived statistics and opens the live subscriptions. Each read is guarded
// independently; one failing does not abort the others.
func (c *Controller) Initialize(ctx context.Context) error {
	userID := c.sessions.IdentityID()
	if userID == "" {
		c.nav.GoTo(auth.PageLogin)
		return ErrNotSignedIn
	}

	if profile, ok, err := c.store.LoadProfile(ctx); err == nil && ok {
		c.mu.Lock()
		c.profile = profile
		c.view.Greeting = greeting(c.now(), profile.FullName)
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.view.Greeting = greeting(c.now(), "")
		c.mu.Unlock()
	}

	c.loadUserData(ctx, userID)
	c.LoadRecentTransactions(ctx, recentLimit)
	c.computeStats(ctx, userID)
	c.openSubscriptions(ctx, userID)
	return nil
}

// loadUserData refreshes the profile row and the balance displays. Read
// failures leave the previous snapshot in place.
func (c *Controller) loadUserData(ctx context.Context, userID string) {
	user, err := c.repo.GetUserByID(ctx, userID)
	if err != nil {
		c.logger.Warn("load user data failed", "error", err, "user_id", userID)
		return
	}
	if err := c.store.SaveProfile(ctx, user); err != nil {
		c.logger.Warn("cache profile failed", "error", err)
	}
	c.mu.Lock()
	c.profile = user
	c.view.Balance = money(user.Balance)
	c.view.MainBalance = money(user.Balance)
	c.mu.Unlock()
}

// LoadRecentTransactions fetches the newest ledger entries, capped at
// limit. Empty or failing reads render the no-earnings placeholder.
func (c *Controller) LoadRecentTransactions(ctx context.Context, limit int) {
	userID := c.sessions.IdentityID()
	txs, err := c.repo.ListRecentTransactions(ctx, userID, limit)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || len(txs) == 0 {
		if err != nil {
			c.logger.Warn("load recent transactions failed", "error", err)
		}
		c.view.NoEarnings = true
		c.view.Recent = nil
		return
	}
	c.view.NoEarnings = false
	c.view.Recent = make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		c.view.Recent = append(c.view.Recent, newTransactionView(tx))
	}
}

// computeStats fills the four derived statistics, each independently
// guarded.
func (c *Controller) computeStats(ctx context.Context, userID string) {
	if count, err := c.repo.CountApprovedSubmissions(ctx, userID); err != nil {
		c.logger.Warn("count approved submissions failed", "error", err)
	} else {
		c.mu.Lock()
		c.view.Stats.CompletedTasks = count
		c.mu.Unlock()
	}

	if count, err := c.repo.CountReferrals(ctx, userID); err != nil {
		c.logger.Warn("count referrals failed", "error", err)
	} else {
		c.mu.Lock()
		c.view.Stats.Referrals = count
		c.mu.Unlock()
	}

	if stamps, err := c.repo.ListCheckins(ctx, userID, 30); err != nil {
		c.logger.Warn("list checkins failed", "error", err)
	} else {
		c.mu.Lock()
		c.view.Stats.Streak = checkinStreak(stamps, c.now())
		c.mu.Unlock()
	}

	c.refreshTodayEarnings(ctx, userID)
}

// refreshTodayEarnings sums positive entries created since the start of the
// current local day.
func (c *Controller) refreshTodayEarnings(ctx context.Context, userID string) {
	since := startOfDay(c.now())
	txs, err := c.repo.ListCreditsSince(ctx, userID, since)
	if err != nil {
		c.logger.Warn("load today earnings failed", "error", err)
		return
	}
	var total float64
	for _, tx := range txs {
		if tx.Amount > 0 && !tx.CreatedAt.Before(since) {
			total += tx.Amount
		}
	}
	c.mu.Lock()
	c.view.Stats.TodayEarnings = money(total)
	c.mu.Unlock()
}

// openSubscriptions starts the two live feeds. Existing handles are closed
// first so repeated initialization does not leak subscriptions.
func (c *Controller) openSubscriptions(ctx context.Context, userID string) {
	c.Close()

	profileSub := c.rt.Subscribe("users", "UPDATE", "id", userID, func(ctx context.Context, evt realtime.Event) {
		c.onProfileChanged(ctx, evt)
	})
	txSub := c.rt.Subscribe("transactions", "INSERT", "user_id", userID, func(ctx context.Context, evt realtime.Event) {
		c.LoadRecentTransactions(ctx, recentLimit)
		c.refreshTodayEarnings(ctx, userID)
	})

	c.mu.Lock()
	c.subs = []*realtime.Subscription{profileSub, txSub}
	c.mu.Unlock()
}

// onProfileChanged merges changed columns into the cached profile (new
// fields overwrite, unlisted fields are retained) and refreshes the two
// balance displays.
func (c *Controller) onProfileChanged(ctx context.Context, evt realtime.Event) {
	c.mu.Lock()
	current := c.profile
	c.mu.Unlock()

	merged, err := mergeProfile(current, evt.Record)
	if err != nil {
		c.logger.Warn("merge profile update failed", "error", err)
		return
	}
	if err := c.store.SaveProfile(ctx, merged); err != nil {
		c.logger.Warn("cache merged profile failed", "error", err)
	}
	c.mu.Lock()
	c.profile = merged
	c.view.Balance = money(merged.Balance)
	c.view.MainBalance = money(merged.Balance)
	c.mu.Unlock()
}

// Close tears down the live subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// View returns a copy of the current view state.
func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := c.view
	view.Recent = append([]TransactionView(nil), c.view.Recent...)
	return view
}

// checkinStreak counts consecutive calendar days with at least one daily
// check-in, ending today or yesterday.
func checkinStreak(stamps []time.Time, now time.Time) int {
	days := map[time.Time]bool{}
	loc := now.Location()
	for _, ts := range stamps {
		t := ts.In(loc)
		days[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)] = true
	}

	day := startOfDay(now)
	if !days[day] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func mergeProfile(current *repo.User, record map[string]any) (*repo.User, error) {
	if current == nil {
		current = &repo.User{}
	}
	merged := *current
	if err := decodeRecord(record, &merged); err != nil {
		return nil, fmt.Errorf("decode profile update: %w", err)
	}
	return &merged, nil
}
