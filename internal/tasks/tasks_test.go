package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"earnzy/internal/metrics"
	"earnzy/internal/repo"
)

type fakeRepo struct {
	repo.Repository

	tasks       []repo.Task
	listErr     error
	listCalls   int
	submission  *repo.TaskSubmission
	subErr      error
	inserted    []repo.TaskSubmission
	insertErr   error
	insertCalls int
}

func (f *fakeRepo) ListActiveTasks(ctx context.Context, category string) ([]repo.Task, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tasks, nil
}

func (f *fakeRepo) GetSubmission(ctx context.Context, userID, taskID string) (*repo.TaskSubmission, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	if f.submission == nil {
		return nil, repo.ErrNotFound
	}
	return f.submission, nil
}

func (f *fakeRepo) InsertSubmission(ctx context.Context, sub repo.TaskSubmission) (*repo.TaskSubmission, error) {
	f.insertCalls++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, sub)
	return &sub, nil
}

type fakeStore struct {
	profile *repo.User
}

func (f *fakeStore) LoadProfile(ctx context.Context) (*repo.User, bool, error) {
	if f.profile == nil {
		return nil, false, nil
	}
	return f.profile, true, nil
}

type fakeSessions struct {
	id    string
	token string
}

func (f *fakeSessions) IdentityID() string  { return f.id }
func (f *fakeSessions) AccessToken() string { return f.token }

type fakeObjects struct {
	uploads   []uploadCall
	uploadErr error
}

type uploadCall struct {
	token       string
	bucket      string
	key         string
	contentType string
	size        int
}

func (f *fakeObjects) Upload(ctx context.Context, accessToken, bucket, key, contentType string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, uploadCall{
		token:       accessToken,
		bucket:      bucket,
		key:         key,
		contentType: contentType,
		size:        len(data),
	})
	return nil
}

type fakeCache struct {
	data map[string][]byte
	sets int
	hits int
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	f.hits++
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = raw
	f.sets++
	return nil
}

func newTestController(r *fakeRepo, store *fakeStore, sessions *fakeSessions, objects *fakeObjects, cacheClient Cache) *Controller {
	return New(r, store, sessions, objects, cacheClient, Config{
		ProofBucket:  "proofs",
		TaskCacheTTL: time.Minute,
	}, slog.Default(), metrics.Registry("test"))
}

func sampleTasks() []repo.Task {
	return []repo.Task{
		{ID: "t1", Title: "Install App", Payout: 5, TimeRequired: 10, Category: "app"},
		{ID: "t2", Title: "Watch Video", Payout: 1.5, Category: "video"},
	}
}

func TestListTasksRendersCards(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	store := &fakeStore{profile: &repo.User{Balance: 12.5}}
	c := newTestController(r, store, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)

	view := c.ListTasks(context.Background(), "")
	if view.Loading || view.Failed || view.Empty {
		t.Fatalf("unexpected view flags: %+v", view)
	}
	if view.Category != "all" {
		t.Fatalf("category = %q, want all", view.Category)
	}
	if view.Balance != "₹12.50" {
		t.Fatalf("balance = %q, want ₹12.50", view.Balance)
	}
	if len(view.Tasks) != 2 {
		t.Fatalf("expected 2 task cards, got %d", len(view.Tasks))
	}
	if view.Tasks[0].Payout != "₹5.00" {
		t.Fatalf("payout = %q, want ₹5.00", view.Tasks[0].Payout)
	}
	if view.Tasks[1].TimeRequired != 5 {
		t.Fatalf("missing time requirement must default to 5, got %d", view.Tasks[1].TimeRequired)
	}
}

func TestListTasksEmptyState(t *testing.T) {
	c := newTestController(&fakeRepo{}, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)

	view := c.ListTasks(context.Background(), "app")
	if !view.Empty || view.Failed || len(view.Tasks) != 0 {
		t.Fatalf("expected empty state, got %+v", view)
	}
	if view.Balance != "₹0.00" {
		t.Fatalf("missing profile must render ₹0.00, got %q", view.Balance)
	}
}

func TestListTasksFetchFailureRendersErrorState(t *testing.T) {
	r := &fakeRepo{listErr: errors.New("db down")}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)

	view := c.ListTasks(context.Background(), "app")
	if !view.Failed || view.Empty || len(view.Tasks) != 0 {
		t.Fatalf("expected error state, got %+v", view)
	}
}

func TestListTasksServesSecondReadFromCache(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	cacheClient := &fakeCache{}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, cacheClient)

	c.ListTasks(context.Background(), "app")
	c.ListTasks(context.Background(), "app")

	if r.listCalls != 1 {
		t.Fatalf("expected one database read, got %d", r.listCalls)
	}
	if cacheClient.sets != 1 || cacheClient.hits != 1 {
		t.Fatalf("cache sets=%d hits=%d, want 1 and 1", cacheClient.sets, cacheClient.hits)
	}
}

func TestOpenSubmissionUnknownTask(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)
	c.ListTasks(context.Background(), "all")

	if _, err := c.OpenSubmission(context.Background(), "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestOpenSubmissionBlockedStates(t *testing.T) {
	cases := []struct {
		name   string
		status string
		want   error
	}{
		{"pending blocks", repo.SubmissionPending, ErrSubmissionPending},
		{"approved blocks", repo.SubmissionApproved, ErrTaskCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRepo{
				tasks:      sampleTasks(),
				submission: &repo.TaskSubmission{UserID: "u1", TaskID: "t1", Status: tc.status},
			}
			c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)
			c.ListTasks(context.Background(), "all")

			if _, err := c.OpenSubmission(context.Background(), "t1"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOpenSubmissionAfterRejection(t *testing.T) {
	r := &fakeRepo{
		tasks:      sampleTasks(),
		submission: &repo.TaskSubmission{UserID: "u1", TaskID: "t1", Status: repo.SubmissionRejected},
	}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)
	c.ListTasks(context.Background(), "all")

	form, err := c.OpenSubmission(context.Background(), "t1")
	if err != nil {
		t.Fatalf("a rejected submission must allow retry, got %v", err)
	}
	if form.TaskID != "t1" || form.Payout != "₹5.00" {
		t.Fatalf("unexpected form: %+v", form)
	}
}

func TestOpenSubmissionLookupFailureIsAdvisory(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks(), subErr: errors.New("timeout")}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)
	c.ListTasks(context.Background(), "all")

	if _, err := c.OpenSubmission(context.Background(), "t1"); err != nil {
		t.Fatalf("unreadable duplicate check must not block the form, got %v", err)
	}
}

func TestSubmitProofRequiresImageOrNote(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	objects := &fakeObjects{}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, objects, nil)
	c.ListTasks(context.Background(), "all")
	if _, err := c.OpenSubmission(context.Background(), "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.SetNote("   "); err != nil {
		t.Fatalf("set note: %v", err)
	}

	if err := c.SubmitProof(context.Background()); !errors.Is(err, ErrProofRequired) {
		t.Fatalf("expected ErrProofRequired, got %v", err)
	}
	if len(objects.uploads) != 0 || r.insertCalls != 0 {
		t.Fatal("validation must run before any network call")
	}
}

func TestSubmitProofUploadsAndInserts(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	objects := &fakeObjects{}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1", token: "tok"}, objects, nil)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	c.ListTasks(context.Background(), "all")
	if _, err := c.OpenSubmission(context.Background(), "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	preview, err := c.AttachImage("screenshot.PNG", image)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !strings.HasPrefix(preview, "data:") {
		t.Fatalf("expected data-URL preview, got %q", preview)
	}
	if err := c.SetNote("done"); err != nil {
		t.Fatalf("set note: %v", err)
	}

	if err := c.SubmitProof(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(objects.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(objects.uploads))
	}
	up := objects.uploads[0]
	if up.bucket != "proofs" || up.token != "tok" || up.size != len(image) {
		t.Fatalf("unexpected upload: %+v", up)
	}
	wantKey := fmt.Sprintf("u1/t1-%d.png", int64(1700000000000))
	if up.key != wantKey {
		t.Fatalf("proof key = %q, want %q", up.key, wantKey)
	}

	if len(r.inserted) != 1 {
		t.Fatalf("expected one submission row, got %d", len(r.inserted))
	}
	sub := r.inserted[0]
	if sub.Status != repo.SubmissionPending || sub.ProofURL != wantKey || sub.Note != "done" {
		t.Fatalf("unexpected submission: %+v", sub)
	}

	if err := c.SetNote("again"); !errors.Is(err, ErrNoOpenForm) {
		t.Fatal("form must be closed after a successful submission")
	}
}

func TestSubmitProofNoteOnlySkipsUpload(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	objects := &fakeObjects{}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, objects, nil)
	c.ListTasks(context.Background(), "all")
	if _, err := c.OpenSubmission(context.Background(), "t2"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.SetNote("joined via link"); err != nil {
		t.Fatalf("set note: %v", err)
	}

	if err := c.SubmitProof(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(objects.uploads) != 0 {
		t.Fatal("note-only proof must not upload")
	}
	if len(r.inserted) != 1 || r.inserted[0].ProofURL != "" {
		t.Fatalf("unexpected submission: %+v", r.inserted)
	}
}

func TestSubmitProofUploadFailureKeepsFormOpen(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks()}
	objects := &fakeObjects{uploadErr: errors.New("storage unavailable")}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, objects, nil)
	c.ListTasks(context.Background(), "all")
	if _, err := c.OpenSubmission(context.Background(), "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := c.AttachImage("p.jpg", []byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := c.SubmitProof(context.Background()); err == nil {
		t.Fatal("expected upload failure to surface")
	}
	if r.insertCalls != 0 {
		t.Fatal("failed upload must not insert a submission")
	}
	if err := c.SetNote("retrying"); err != nil {
		t.Fatalf("form must stay open for retry, got %v", err)
	}
}

func TestSubmitProofInsertFailureKeepsFormOpen(t *testing.T) {
	r := &fakeRepo{tasks: sampleTasks(), insertErr: errors.New("constraint violation")}
	c := newTestController(r, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)
	c.ListTasks(context.Background(), "all")
	if _, err := c.OpenSubmission(context.Background(), "t1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.SetNote("done"); err != nil {
		t.Fatalf("set note: %v", err)
	}

	if err := c.SubmitProof(context.Background()); err == nil {
		t.Fatal("expected insert failure to surface")
	}
	if err := c.SetNote("retrying"); err != nil {
		t.Fatalf("form must stay open for retry, got %v", err)
	}
}

func TestSubmitProofWithoutOpenForm(t *testing.T) {
	c := newTestController(&fakeRepo{}, &fakeStore{}, &fakeSessions{id: "u1"}, &fakeObjects{}, nil)
	if err := c.SubmitProof(context.Background()); !errors.Is(err, ErrNoOpenForm) {
		t.Fatalf("expected ErrNoOpenForm, got %v", err)
	}
}
