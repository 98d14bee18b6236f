package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/logger"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
}

// SignInWithPassword signs in with email and password. A one-time code can be
// appended to the password after a newline when the account requires one.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	pw, otp := splitOTP(password)
	var res domain.LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginBody{Email: email, Password: pw, OTP: otp}, &res, false)
	if err != nil {
		return nil, classify(err)
	}
	s := res.Session
	c.setToken(res.Token, &s)
	return &s, nil
}

// splitOTP separates a one-time code given on a second line.
func splitOTP(password string) (string, string) {
	if i := strings.LastIndexByte(password, '\n'); i >= 0 {
		return password[:i], strings.TrimSpace(password[i+1:])
	}
	return password, ""
}

// classify maps API failures onto the auth error kinds the gate understands.
func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Kind == string(domain.AuthInvalidCredentials),
			apiErr.Status == http.StatusUnauthorized,
			apiErr.Status == http.StatusBadRequest && apiErr.Kind == "validation":
			return &domain.AuthError{Kind: domain.AuthInvalidCredentials, Err: err}
		case apiErr.Kind == string(domain.AuthUserCancelled):
			return &domain.AuthError{Kind: domain.AuthUserCancelled, Err: err}
		}
	}
	return &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
}

// WatchSession emits the restored session (nil when none) and every change
// after it until ctx is done.
func (c *Client) WatchSession(ctx context.Context) (<-chan *domain.Session, error) {
	ch, cancel := c.sessions.Subscribe()
	out := make(chan *domain.Session, 1)

	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-ch:
				if !ok {
					return
				}
				// Latest wins; replace anything the reader has not taken yet.
				select {
				case <-out:
				default:
				}
				out <- s
			}
		}
	}()

	go c.restore(ctx)
	return out, nil
}

// restore validates a persisted token once and publishes the outcome.
func (c *Client) restore(ctx context.Context) {
	c.mu.Lock()
	if c.restored {
		c.mu.Unlock()
		return
	}
	c.restored = true
	token := c.token
	c.mu.Unlock()

	if token == "" {
		c.sessions.Publish(nil)
		return
	}
	s, err := c.Me(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotAuthenticated) {
			// Unreachable server: treat as signed out but keep the token for next time.
			logger.Log.Warn("Could not restore session", "error", err)
		}
		c.sessions.Publish(nil)
		return
	}
	c.sessions.Publish(s)
}

// Me returns the session for the current token.
func (c *Client) Me(ctx context.Context) (*domain.Session, error) {
	var s domain.Session
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

// SignOut revokes the token server side. A token the server already rejects
// counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.currentToken()
	if token == "" {
		c.setToken("", nil)
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, true)
	if err != nil && !errors.Is(err, domain.ErrNotAuthenticated) {
		return err
	}
	c.setToken("", nil)
	return nil
}
