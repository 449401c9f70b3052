package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"earnzy/internal/metrics"
	"earnzy/internal/repo"
	"earnzy/internal/supa"
)

type fakeRepo struct {
	repo.Repository

	users        map[string]*repo.User
	getErr       error
	insertErr    error
	insertedUser *repo.User
	insertCalls  int
	transactions []repo.Transaction
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id string) (*repo.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) InsertUser(ctx context.Context, user repo.User) (*repo.User, error) {
	f.insertCalls++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	inserted := user
	f.insertedUser = &inserted
	return &inserted, nil
}

func (f *fakeRepo) InsertTransaction(ctx context.Context, tx repo.Transaction) (*repo.Transaction, error) {
	f.transactions = append(f.transactions, tx)
	return &tx, nil
}

type fakeStore struct {
	profile  *repo.User
	cleared  bool
	deviceID string
}

func (f *fakeStore) SaveProfile(ctx context.Context, user *repo.User) error {
	snapshot := *user
	f.profile = &snapshot
	return nil
}

func (f *fakeStore) LoadProfile(ctx context.Context) (*repo.User, bool, error) {
	if f.profile == nil {
		return nil, false, nil
	}
	return f.profile, true, nil
}

func (f *fakeStore) ClearProfile(ctx context.Context) error {
	f.profile = nil
	f.cleared = true
	return nil
}

func (f *fakeStore) DeviceID(ctx context.Context) (string, error) {
	if f.deviceID == "" {
		f.deviceID = "device_abc123def"
	}
	return f.deviceID, nil
}

type fakeAPI struct {
	signOutErr error
}

func (f *fakeAPI) RequestOTP(ctx context.Context, digits string) error { return nil }
func (f *fakeAPI) VerifyOTP(ctx context.Context, digits, code string) (*supa.Session, error) {
	return nil, nil
}
func (f *fakeAPI) GetUser(ctx context.Context, token string) (*supa.AuthUser, error) {
	return nil, nil
}
func (f *fakeAPI) SignOut(ctx context.Context, token string) error { return f.signOutErr }
func (f *fakeAPI) OAuthURL(provider, redirectTo string) string {
	return "https://example.supabase.co/auth/v1/authorize?provider=" + provider
}

type fakeNav struct {
	pages []string
}

func (f *fakeNav) GoTo(page string) { f.pages = append(f.pages, page) }

func newController(r *fakeRepo, store *fakeStore, api *fakeAPI, nav *fakeNav) *Controller {
	return New(r, api, store, nav, "http://localhost/dashboard", slog.Default(), metrics.Registry("test"))
}

func TestFirstSignInProvisionsProfile(t *testing.T) {
	r := &fakeRepo{users: map[string]*repo.User{}}
	store := &fakeStore{}
	nav := &fakeNav{}
	c := newController(r, store, &fakeAPI{}, nav)

	session := &supa.Session{
		AccessToken: "tok",
		User:        supa.AuthUser{ID: "user-1", Phone: "+919876543210"},
	}
	c.OnAuthEvent(context.Background(), EventSignedIn, session)

	if r.insertCalls != 1 {
		t.Fatalf("expected exactly one provisioning insert, got %d", r.insertCalls)
	}
	u := r.insertedUser
	if u.Balance != 2.00 || u.TotalEarned != 2.00 {
		t.Fatalf("expected signup bonus 2.00, got balance=%v total=%v", u.Balance, u.TotalEarned)
	}
	if u.SubscriptionPlan != "free" {
		t.Fatalf("expected free plan, got %q", u.SubscriptionPlan)
	}
	if u.FraudCount != 0 {
		t.Fatalf("expected zero fraud count, got %d", u.FraudCount)
	}
	if u.DeviceID == "" {
		t.Fatal("expected a device id")
	}

	if len(r.transactions) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(r.transactions))
	}
	tx := r.transactions[0]
	if tx.Type != repo.TxSignupBonus || tx.Amount != 2.00 {
		t.Fatalf("unexpected ledger entry: type=%s amount=%v", tx.Type, tx.Amount)
	}

	if store.profile == nil || store.profile.ID != "user-1" {
		t.Fatal("expected provisioned profile to be cached")
	}
	if len(nav.pages) == 0 || nav.pages[len(nav.pages)-1] != PageDashboard {
		t.Fatalf("expected navigation to dashboard, got %v", nav.pages)
	}
}

func TestLoadProfileCachesExistingRow(t *testing.T) {
	existing := &repo.User{ID: "user-2", Balance: 42.50}
	r := &fakeRepo{users: map[string]*repo.User{"user-2": existing}}
	store := &fakeStore{}
	c := newController(r, store, &fakeAPI{}, &fakeNav{})

	if err := c.LoadProfile(context.Background(), "user-2"); err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if r.insertCalls != 0 {
		t.Fatalf("expected no provisioning, got %d inserts", r.insertCalls)
	}
	if store.profile == nil || store.profile.Balance != 42.50 {
		t.Fatal("expected cache to hold the fetched row")
	}
}

func TestLoadProfileTransportErrorDoesNotProvision(t *testing.T) {
	r := &fakeRepo{getErr: errors.New("connection reset")}
	c := newController(r, &fakeStore{}, &fakeAPI{}, &fakeNav{})

	err := c.LoadProfile(context.Background(), "user-3")
	if err == nil {
		t.Fatal("expected error")
	}
	if r.insertCalls != 0 {
		t.Fatalf("transport failure must not trigger provisioning, got %d inserts", r.insertCalls)
	}
}

func TestSignOutGatewayFailureKeepsCache(t *testing.T) {
	store := &fakeStore{profile: &repo.User{ID: "user-4"}}
	nav := &fakeNav{}
	c := newController(&fakeRepo{}, store, &fakeAPI{signOutErr: errors.New("revoke failed")}, nav)
	c.setIdentity(&supa.AuthUser{ID: "user-4"}, "tok")

	if err := c.SignOut(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.cleared {
		t.Fatal("cache must not be cleared when the gateway refuses sign-out")
	}
	if len(nav.pages) != 0 {
		t.Fatalf("expected no navigation, got %v", nav.pages)
	}
	if c.IdentityID() != "user-4" {
		t.Fatal("identity must survive a failed sign-out")
	}
}

func TestSignOutClearsCacheAndNavigatesHome(t *testing.T) {
	store := &fakeStore{profile: &repo.User{ID: "user-5"}}
	nav := &fakeNav{}
	c := newController(&fakeRepo{}, store, &fakeAPI{}, nav)
	c.setIdentity(&supa.AuthUser{ID: "user-5"}, "tok")

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if !store.cleared {
		t.Fatal("expected cache cleared")
	}
	if len(nav.pages) != 1 || nav.pages[0] != PageHome {
		t.Fatalf("expected navigation home, got %v", nav.pages)
	}
}

func TestIsPrivileged(t *testing.T) {
	cases := []struct {
		name     string
		identity *supa.AuthUser
		profile  *repo.User
		want     bool
	}{
		{"no identity", nil, &repo.User{Role: "admin"}, false},
		{"admin role", &supa.AuthUser{ID: "a"}, &repo.User{Role: "admin"}, true},
		{"admin email", &supa.AuthUser{ID: "b"}, &repo.User{Email: "admin@earnzy.in"}, true},
		{"regular user", &supa.AuthUser{ID: "c"}, &repo.User{Role: "user", Email: "c@example.com"}, false},
		{"no cached profile", &supa.AuthUser{ID: "d"}, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{profile: tc.profile}
			c := newController(&fakeRepo{}, store, &fakeAPI{}, &fakeNav{})
			if tc.identity != nil {
				c.setIdentity(tc.identity, "tok")
			}
			if got := c.IsPrivileged(context.Background()); got != tc.want {
				t.Fatalf("IsPrivileged = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUnknownAuthEventIgnored(t *testing.T) {
	store := &fakeStore{profile: &repo.User{ID: "user-6"}}
	nav := &fakeNav{}
	c := newController(&fakeRepo{}, store, &fakeAPI{}, nav)

	c.OnAuthEvent(context.Background(), "TOKEN_REFRESHED", nil)

	if store.cleared || len(nav.pages) != 0 {
		t.Fatal("unrelated events must have no side effects")
	}
}
