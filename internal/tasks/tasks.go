// Package tasks lists available tasks and manages the per-task proof
// submission workflow for the active identity.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"earnzy/internal/metrics"
	"earnzy/internal/repo"
)

// Submission workflow outcomes surfaced to the user.
var (
	ErrNotSignedIn       = errors.New("not signed in")
	ErrTaskNotFound      = errors.New("task not found in the current list")
	ErrSubmissionPending = errors.New("you have already submitted proof for this task; waiting for admin approval")
	ErrTaskCompleted     = errors.New("you have already completed this task and received payment")
	ErrProofRequired     = errors.New("please provide either an image or text proof")
	ErrSubmitInFlight    = errors.New("a submission is already in progress")
	ErrNoOpenForm        = errors.New("no submission form is open")
)

// ObjectStore uploads proof binaries by key.
type ObjectStore interface {
	Upload(ctx context.Context, accessToken, bucket, key, contentType string, data []byte) error
}

// SessionSource exposes the resolved identity and its access token.
type SessionSource interface {
	IdentityID() string
	AccessToken() string
}

// Store is the slice of the session cache the task browser needs.
type Store interface {
	LoadProfile(ctx context.Context) (*repo.User, bool, error)
}

// Cache is the task-list cache (satisfied by cache.Redis). May be nil.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// TaskView is a task card formatted for display.
type TaskView struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Payout         string `json:"payout"`
	TimeRequired   int    `json:"time_required"`
	CompletedCount int    `json:"completed_count"`
}

// ListView is the rendered task browser state.
type ListView struct {
	Loading  bool       `json:"loading"`
	Failed   bool       `json:"failed"`
	Empty    bool       `json:"empty"`
	Category string     `json:"category"`
	Balance  string     `json:"balance"`
	Tasks    []TaskView `json:"tasks"`
}

// Controller drives the task browser.
type Controller struct {
	repo     repo.Repository
	store    Store
	sessions SessionSource
	objects  ObjectStore
	cache    Cache
	bucket   string
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu         sync.Mutex
	tasks      []repo.Task
	category   string
	view       ListView
	current    *repo.Task
	form       *Form
	submitting bool
}

// Config holds task controller settings.
type Config struct {
	ProofBucket  string
	TaskCacheTTL time.Duration
}

// New constructs the controller with explicit dependencies. cacheClient may
// be nil to disable list caching.
func New(repository repo.Repository, store Store, sessions SessionSource, objects ObjectStore, cacheClient Cache, cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Controller {
	ttl := cfg.TaskCacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Controller{
		repo:     repository,
		store:    store,
		sessions: sessions,
		objects:  objects,
		cache:    cacheClient,
		bucket:   cfg.ProofBucket,
		cacheTTL: ttl,
		logger:   logger.With("component", "tasks"),
		metrics:  metricRegistry,
		now:      time.Now,
	}
}

// ListTasks loads active tasks for the category and renders the result.
// Exactly one category is active at a time; passing a new one deactivates
// the previous selection. Fetch failures render the error state instead of
// propagating.
func (c *Controller) ListTasks(ctx context.Context, category string) ListView {
	if category == "" {
		category = "all"
	}

	c.mu.Lock()
	c.category = category
	c.view = ListView{Loading: true, Category: category, Balance: c.view.Balance}
	c.mu.Unlock()

	list, err := c.fetchTasks(ctx, category)
	balance := c.balanceLabel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	// A stale response for a previously selected category must not win the
	// render over a newer selection.
	if c.category != category {
		return c.view
	}
	c.view = ListView{Category: category, Balance: balance}
	if err != nil {
		c.logger.Error("load tasks failed", "error", err, "category", category)
		c.metrics.Errors.WithLabelValues("tasks").Inc()
		c.view.Failed = true
		c.tasks = nil
		return c.view
	}
	c.tasks = list
	if len(list) == 0 {
		c.view.Empty = true
		return c.view
	}
	c.view.Tasks = make([]TaskView, 0, len(list))
	for _, task := range list {
		c.view.Tasks = append(c.view.Tasks, newTaskView(task))
	}
	return c.view
}

// ActiveCategory returns the currently selected category.
func (c *Controller) ActiveCategory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.category
}

// View returns a copy of the current list view.
func (c *Controller) View() ListView {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := c.view
	view.Tasks = append([]TaskView(nil), c.view.Tasks...)
	return view
}

func (c *Controller) fetchTasks(ctx context.Context, category string) ([]repo.Task, error) {
	cacheKey := "tasks:active:" + category
	if c.cache != nil {
		var cached []repo.Task
		ok, err := c.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			c.logger.Warn("read task cache failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	list, err := c.repo.ListActiveTasks(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, list, c.cacheTTL); err != nil {
			c.logger.Warn("set task cache failed", "error", err)
		}
	}
	return list, nil
}

func (c *Controller) balanceLabel(ctx context.Context) string {
	profile, ok, err := c.store.LoadProfile(ctx)
	if err != nil || !ok {
		return "₹0.00"
	}
	return fmt.Sprintf("₹%.2f", profile.Balance)
}

func newTaskView(task repo.Task) TaskView {
	timeRequired := task.TimeRequired
	if timeRequired <= 0 {
		timeRequired = 5
	}
	return TaskView{
		ID:             task.ID,
		Title:          task.Title,
		Description:    task.Description,
		Payout:         fmt.Sprintf("₹%.2f", task.Payout),
		TimeRequired:   timeRequired,
		CompletedCount: task.CompletedCount,
	}
}
