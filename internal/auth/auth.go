// Package auth owns the sign-in/sign-out lifecycle and first-time profile
// provisioning.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"earnzy/internal/metrics"
	"earnzy/internal/repo"
	"earnzy/internal/supa"
)

// Auth state change events.
const (
	EventSignedIn  = "SIGNED_IN"
	EventSignedOut = "SIGNED_OUT"
)

// Logical page names used for navigation.
const (
	PageHome      = "index"
	PageLogin     = "login"
	PageDashboard = "dashboard"
)

const (
	signupBonus = 2.00
	planFree    = "free"
	roleAdmin   = "admin"
	adminEmail  = "admin@earnzy.in"
)

// API is the auth surface of the backend gateway.
type API interface {
	RequestOTP(ctx context.Context, digits string) error
	VerifyOTP(ctx context.Context, digits, code string) (*supa.Session, error)
	GetUser(ctx context.Context, accessToken string) (*supa.AuthUser, error)
	SignOut(ctx context.Context, accessToken string) error
	OAuthURL(provider, redirectTo string) string
}

// SessionStore is the durable local cache of the profile snapshot and
// device identifier.
type SessionStore interface {
	SaveProfile(ctx context.Context, user *repo.User) error
	LoadProfile(ctx context.Context) (*repo.User, bool, error)
	ClearProfile(ctx context.Context) error
	DeviceID(ctx context.Context) (string, error)
}

// Navigator routes between pages. Full-page navigation is the only
// inter-page signal.
type Navigator interface {
	GoTo(page string)
}

// Controller resolves sessions, provisions first-time profiles and routes
// sign-in/sign-out transitions.
type Controller struct {
	repo          repo.Repository
	api           API
	store         SessionStore
	nav           Navigator
	oauthRedirect string
	logger        *slog.Logger
	metrics       *metrics.Metrics

	mu       sync.Mutex
	identity *supa.AuthUser
	token    string
}

// New constructs the controller with explicit dependencies.
func New(repository repo.Repository, api API, store SessionStore, nav Navigator, oauthRedirect string, logger *slog.Logger, metricRegistry *metrics.Metrics) *Controller {
	return &Controller{
		repo:          repository,
		api:           api,
		store:         store,
		nav:           nav,
		oauthRedirect: oauthRedirect,
		logger:        logger.With("component", "auth"),
		metrics:       metricRegistry,
	}
}

// ResolveSession checks whether the access token identifies a live session
// and, if so, caches the identity and loads or creates its profile.
func (c *Controller) ResolveSession(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	user, err := c.api.GetUser(ctx, accessToken)
	if err != nil {
		c.metrics.AuthRequests.WithLabelValues("resolve", "failure").Inc()
		return fmt.Errorf("resolve session: %w", err)
	}
	c.setIdentity(user, accessToken)
	c.metrics.AuthRequests.WithLabelValues("resolve", "success").Inc()
	return c.LoadProfile(ctx, user.ID)
}

// OnAuthEvent reacts to sign-in and sign-out transitions; any other event
// is ignored.
func (c *Controller) OnAuthEvent(ctx context.Context, event string, session *supa.Session) {
	switch event {
	case EventSignedIn:
		if session == nil {
			return
		}
		c.setIdentity(&session.User, session.AccessToken)
		if err := c.LoadProfile(ctx, session.User.ID); err != nil {
			c.logger.Error("load profile after sign-in failed", "error", err, "user_id", session.User.ID)
			c.metrics.Errors.WithLabelValues("auth").Inc()
		}
		c.nav.GoTo(PageDashboard)
	case EventSignedOut:
		c.setIdentity(nil, "")
		if err := c.store.ClearProfile(ctx); err != nil {
			c.logger.Warn("clear cached profile failed", "error", err)
		}
		c.nav.GoTo(PageHome)
	}
}

// LoadProfile fetches the profile row and overwrites the local snapshot.
// A missing row triggers first-time provisioning; any other fetch failure
// propagates so callers can tell the two apart.
func (c *Controller) LoadProfile(ctx context.Context, identityID string) error {
	profile, err := c.repo.GetUserByID(ctx, identityID)
	if errors.Is(err, repo.ErrNotFound) {
		_, err := c.ProvisionProfile(ctx)
		return err
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if err := c.store.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("cache profile: %w", err)
	}
	return nil
}

// ProvisionProfile creates the profile row for the current identity with
// the signup bonus, caches it, and appends the bonus ledger entry.
func (c *Controller) ProvisionProfile(ctx context.Context) (*repo.User, error) {
	identity := c.Identity()
	if identity == nil {
		return nil, errors.New("provision profile: no identity resolved")
	}

	deviceID, err := c.store.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("provision profile: %w", err)
	}

	user := repo.User{
		ID:               identity.ID,
		Mobile:           identity.Phone,
		Email:            identity.Email,
		GoogleID:         metadataString(identity.UserMetadata, "provider_id"),
		FullName:         metadataString(identity.UserMetadata, "full_name"),
		Balance:          signupBonus,
		TotalEarned:      signupBonus,
		SubscriptionPlan: planFree,
		DeviceID:         deviceID,
		FraudCount:       0,
	}

	inserted, err := c.repo.InsertUser(ctx, user)
	if err != nil {
		c.metrics.Errors.WithLabelValues("auth").Inc()
		return nil, fmt.Errorf("provision profile: %w", err)
	}
	if err := c.store.SaveProfile(ctx, inserted); err != nil {
		return nil, fmt.Errorf("cache provisioned profile: %w", err)
	}

	if _, err := c.repo.InsertTransaction(ctx, repo.Transaction{
		UserID: inserted.ID,
		Amount: signupBonus,
		Type:   repo.TxSignupBonus,
		Status: "Credit",
	}); err != nil {
		return nil, fmt.Errorf("record signup bonus: %w", err)
	}

	c.logger.Info("provisioned profile", "user_id", inserted.ID, "device_id", deviceID)
	return inserted, nil
}

// RequestOTP asks the gateway to send a one-time code.
func (c *Controller) RequestOTP(ctx context.Context, digits string) error {
	if err := c.api.RequestOTP(ctx, digits); err != nil {
		c.metrics.AuthRequests.WithLabelValues("otp_request", "failure").Inc()
		return err
	}
	c.metrics.AuthRequests.WithLabelValues("otp_request", "success").Inc()
	return nil
}

// VerifyOTP exchanges a one-time code for a session.
func (c *Controller) VerifyOTP(ctx context.Context, digits, code string) (*supa.Session, error) {
	session, err := c.api.VerifyOTP(ctx, digits, code)
	if err != nil {
		c.metrics.AuthRequests.WithLabelValues("otp_verify", "failure").Inc()
		return nil, err
	}
	c.metrics.AuthRequests.WithLabelValues("otp_verify", "success").Inc()
	return session, nil
}

// StartOAuth initiates the external OAuth redirect flow, returning control
// to the dashboard page on success.
func (c *Controller) StartOAuth() (string, error) {
	redirectURL := c.api.OAuthURL("google", c.oauthRedirect)
	if redirectURL == "" {
		return "", errors.New("oauth flow unavailable")
	}
	return redirectURL, nil
}

// SignOut invalidates the session. When the gateway refuses, no local
// cleanup happens and the error is returned.
func (c *Controller) SignOut(ctx context.Context) error {
	token := c.AccessToken()
	if err := c.api.SignOut(ctx, token); err != nil {
		c.metrics.AuthRequests.WithLabelValues("signout", "failure").Inc()
		return err
	}
	c.metrics.AuthRequests.WithLabelValues("signout", "success").Inc()
	c.setIdentity(nil, "")
	if err := c.store.ClearProfile(ctx); err != nil {
		c.logger.Warn("clear cached profile failed", "error", err)
	}
	c.nav.GoTo(PageHome)
	return nil
}

// IsPrivileged reports whether the cached profile belongs to an admin.
// Always false when no identity is resolved.
func (c *Controller) IsPrivileged(ctx context.Context) bool {
	if c.Identity() == nil {
		return false
	}
	profile, ok, err := c.store.LoadProfile(ctx)
	if err != nil || !ok {
		return false
	}
	return profile.Role == roleAdmin || profile.Email == adminEmail
}

// Identity returns the resolved identity, or nil.
func (c *Controller) Identity() *supa.AuthUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// IdentityID returns the resolved identity id, or empty.
func (c *Controller) IdentityID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return ""
	}
	return c.identity.ID
}

// AccessToken returns the current session token, or empty.
func (c *Controller) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Controller) setIdentity(user *supa.AuthUser, token string) {
	c.mu.Lock()
	c.identity = user
	c.token = token
	c.mu.Unlock()
}

func metadataString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if val, ok := meta[key].(string); ok {
		return val
	}
	return ""
}
