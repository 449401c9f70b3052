package tasks

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"earnzy/internal/repo"
)

// Form is the open proof-submission form for the current task.
type Form struct {
	TaskID       string `json:"task_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Payout       string `json:"payout"`
	TimeRequired int    `json:"time_required"`
	Note         string `json:"note"`
	ImageName    string `json:"image_name,omitempty"`
	Preview      string `json:"preview,omitempty"`

	imageData   []byte
	contentType string
}

// OpenSubmission looks the task up in the last-loaded list and checks for
// an existing submission. A PENDING submission blocks with
// ErrSubmissionPending, an APPROVED one with ErrTaskCompleted; otherwise a
// fresh form is opened with any stale input from a previous task reset.
func (c *Controller) OpenSubmission(ctx context.Context, taskID string) (*Form, error) {
	userID := c.sessions.IdentityID()
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	c.mu.Lock()
	var task *repo.Task
	for i := range c.tasks {
		if c.tasks[i].ID == taskID {
			task = &c.tasks[i]
			break
		}
	}
	c.mu.Unlock()
	if task == nil {
		return nil, ErrTaskNotFound
	}

	existing, err := c.repo.GetSubmission(ctx, userID, taskID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		// Mirrors the lookup being advisory only: an unreadable check does
		// not block opening the form.
		c.logger.Warn("submission lookup failed", "error", err, "task_id", taskID)
	}
	if existing != nil {
		switch existing.Status {
		case repo.SubmissionPending:
			return nil, ErrSubmissionPending
		case repo.SubmissionApproved:
			return nil, ErrTaskCompleted
		}
	}

	view := newTaskView(*task)
	form := &Form{
		TaskID:       task.ID,
		Title:        task.Title,
		Description:  task.Description,
		Payout:       view.Payout,
		TimeRequired: view.TimeRequired,
	}

	c.mu.Lock()
	taskCopy := *task
	c.current = &taskCopy
	c.form = form
	c.mu.Unlock()

	formCopy := *form
	return &formCopy, nil
}

// AttachImage stores proof image bytes on the open form and returns a local
// data-URL preview. Nothing is uploaded until SubmitProof.
func (c *Controller) AttachImage(name string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form == nil {
		return "", ErrNoOpenForm
	}
	contentType := http.DetectContentType(data)
	preview := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	c.form.ImageName = name
	c.form.Preview = preview
	c.form.imageData = data
	c.form.contentType = contentType
	return preview, nil
}

// SetNote records the free-text proof on the open form.
func (c *Controller) SetNote(note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form == nil {
		return ErrNoOpenForm
	}
	c.form.Note = note
	return nil
}

// CloseForm discards the open form.
func (c *Controller) CloseForm() {
	c.mu.Lock()
	c.current = nil
	c.form = nil
	c.mu.Unlock()
}

// SubmitProof validates the open form, uploads the attached image (if any)
// and inserts a pending submission. Validation happens before any network
// call; upload or insert failures leave the form open for retry; a second
// activation while one is in flight is rejected.
func (c *Controller) SubmitProof(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	if c.current == nil || c.form == nil {
		c.mu.Unlock()
		return ErrNoOpenForm
	}
	c.submitting = true
	task := *c.current
	form := *c.form
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	note := strings.TrimSpace(form.Note)
	if len(form.imageData) == 0 && note == "" {
		c.metrics.ProofSubmissions.WithLabelValues("invalid").Inc()
		return ErrProofRequired
	}

	userID := c.sessions.IdentityID()
	if userID == "" {
		return ErrNotSignedIn
	}

	proofKey := ""
	if len(form.imageData) > 0 {
		proofKey = c.proofKey(userID, task.ID, form.ImageName)
		if err := c.objects.Upload(ctx, c.sessions.AccessToken(), c.bucket, proofKey, form.contentType, form.imageData); err != nil {
			c.metrics.ProofSubmissions.WithLabelValues("upload_failed").Inc()
			return fmt.Errorf("upload proof: %w", err)
		}
	}

	submission := repo.TaskSubmission{
		UserID:   userID,
		TaskID:   task.ID,
		ProofURL: proofKey,
		Note:     note,
		Status:   repo.SubmissionPending,
	}
	if _, err := c.repo.InsertSubmission(ctx, submission); err != nil {
		c.metrics.ProofSubmissions.WithLabelValues("insert_failed").Inc()
		return fmt.Errorf("insert submission: %w", err)
	}

	c.metrics.ProofSubmissions.WithLabelValues("submitted").Inc()
	c.logger.Info("proof submitted", "task_id", task.ID, "user_id", userID, "proof_key", proofKey)
	c.CloseForm()
	return nil
}

// proofKey namespaces the object key by user and task and salts it with a
// timestamp so repeated attempts never collide.
func (c *Controller) proofKey(userID, taskID, fileName string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%s-%d.%s", userID, taskID, c.now().UnixMilli(), ext)
}
