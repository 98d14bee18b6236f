package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthErrorKind classifies identity provider failures.
type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthUserCancelled      AuthErrorKind = "user_cancelled"
	AuthUnknown            AuthErrorKind = "unknown"
)

var (
	ErrInvalidCredentials = &AuthError{Kind: AuthInvalidCredentials}
	ErrUserCancelled      = &AuthError{Kind: AuthUserCancelled}
	ErrLoginBlocked       = errors.New("too many failed login attempts")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrAdminNotFound      = errors.New("admin not found")
)

type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
	}
	return "auth " + string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// AuthKind extracts the kind of err, or AuthUnknown.
func AuthKind(err error) AuthErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return AuthUnknown
}

// Session is an authenticated admin session as seen by clients.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Admin is an account allowed into the inbox.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	TOTPSecret   string
	IsActive     bool
	CreatedAt    time.Time
}

type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	GetByID(ctx context.Context, id string) (*Admin, error)
	// Upsert creates the admin or refreshes its credentials by email.
	Upsert(ctx context.Context, admin *Admin) error
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	OTP      string `json:"otp"`
}

// LoginResult is returned by successful sign-ins.
type LoginResult struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

// RequestMeta carries caller details used for auditing and throttling.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

type AuthUsecase interface {
	Login(ctx context.Context, req *LoginRequest, meta RequestMeta) (*LoginResult, error)
	// StartFederated returns the provider consent URL for a loopback redirect target.
	StartFederated(ctx context.Context, provider, redirectTo string) (string, error)
	// CompleteFederated finishes the code exchange and returns where to send the
	// browser, with either a token or an error kind attached.
	CompleteFederated(ctx context.Context, provider, state, code, providerErr string, meta RequestMeta) (string, error)
	Authenticate(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string) error
}
