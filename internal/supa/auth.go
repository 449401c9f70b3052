package supa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// CountryCode is prefixed to every phone number before it reaches the
// backend. The service only operates in one calling region.
const CountryCode = "+91"

// AuthUser is the authenticated principal as reported by the auth API.
type AuthUser struct {
	ID           string         `json:"id"`
	Phone        string         `json:"phone"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Session is an authenticated session returned by the auth API.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

// RequestOTP asks the backend to send a one-time code to the phone number.
// digits is the national number without the country prefix.
func (c *Client) RequestOTP(ctx context.Context, digits string) error {
	body, err := json.Marshal(map[string]string{"phone": CountryCode + digits})
	if err != nil {
		return fmt.Errorf("marshal otp request: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, "/auth/v1/otp", body, "application/json", ""); err != nil {
		return err
	}
	return nil
}

// VerifyOTP exchanges a one-time code for a session.
func (c *Client) VerifyOTP(ctx context.Context, digits, code string) (*Session, error) {
	body, err := json.Marshal(map[string]string{
		"phone": CountryCode + digits,
		"token": code,
		"type":  "sms",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}
	payload, err := c.do(ctx, http.MethodPost, "/auth/v1/verify", body, "application/json", "")
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// GetUser resolves the identity behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*AuthUser, error) {
	payload, err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, "", accessToken)
	if err != nil {
		return nil, err
	}
	var user AuthUser
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session behind the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, "", accessToken); err != nil {
		return err
	}
	return nil
}

// OAuthURL builds the external OAuth redirect URL for the given provider.
func (c *Client) OAuthURL(provider, redirectTo string) string {
	query := url.Values{}
	query.Set("provider", provider)
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + query.Encode()
}
