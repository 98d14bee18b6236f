package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/apperror"
	"portfolio-backend/pkg/auth"
	"portfolio-backend/pkg/logger"
	"portfolio-backend/pkg/security"

	"golang.org/x/oauth2"
)

const ProviderGoogle = "google"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenVerifier checks provider id_tokens. *auth.KeySet implements it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw, audience string, issuers ...string) (*auth.IDClaims, error)
}

// CodeExchanger is the part of *oauth2.Config used for federated sign-in.
type CodeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// Federation groups what Google sign-in needs. A nil *Federation disables it.
type Federation struct {
	ClientID string
	OAuth    CodeExchanger
	IDTokens IDTokenVerifier
	States   *auth.StateStore
}

type authUsecase struct {
	admins      domain.AdminRepository
	tracker     *security.LoginTracker
	tokens      *auth.TokenIssuer
	revocations *auth.Revocations
	federation  *Federation
	secLog      *security.SecurityLogger
}

func NewAuthUsecase(
	admins domain.AdminRepository,
	tracker *security.LoginTracker,
	tokens *auth.TokenIssuer,
	revocations *auth.Revocations,
	federation *Federation,
	secLog *security.SecurityLogger,
) domain.AuthUsecase {
	if secLog == nil {
		secLog = security.DefaultLogger()
	}
	return &authUsecase{
		admins:      admins,
		tracker:     tracker,
		tokens:      tokens,
		revocations: revocations,
		federation:  federation,
		secLog:      secLog,
	}
}

func invalidCredentials() *apperror.AppError {
	return apperror.Unauthorized("incorrect user or password").WithKind(string(domain.AuthInvalidCredentials))
}

func unauthenticated() *apperror.AppError {
	return apperror.Unauthorized("session expired or invalid").WithKind("unauthenticated")
}

func (u *authUsecase) Login(ctx context.Context, req *domain.LoginRequest, meta domain.RequestMeta) (*domain.LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	blocked, err := u.tracker.IsBlocked(ctx, email, meta.IP)
	if err != nil {
		// Fail open on tracker outages; credentials are still checked.
		logger.Log.Warn("Login tracker unavailable", "error", err)
	}
	if blocked {
		u.secLog.LogLoginBlocked(ctx, email, meta.IP, meta.UserAgent, meta.RequestID)
		return nil, apperror.TooManyRequests("too many failed attempts, try again later").WithKind("login_blocked")
	}

	admin, err := u.admins.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrAdminNotFound) {
		return nil, apperror.Internal(err)
	}

	reason := ""
	switch {
	case admin == nil:
		security.CheckPassword("", req.Password)
		reason = "unknown_user"
	case !admin.IsActive:
		security.CheckPassword("", req.Password)
		reason = "inactive"
	case !security.CheckPassword(admin.PasswordHash, req.Password):
		reason = "bad_password"
	case !security.ValidateTOTP(admin.TOTPSecret, strings.TrimSpace(req.OTP)):
		reason = "bad_otp"
	}
	if reason != "" {
		nowBlocked, _, terr := u.tracker.RecordFailedAttempt(ctx, email, meta.IP, meta.UserAgent, meta.RequestID, reason)
		if terr != nil {
			logger.Log.Warn("Failed to record login attempt", "error", terr)
		}
		if nowBlocked {
			return nil, apperror.TooManyRequests("too many failed attempts, try again later").WithKind("login_blocked")
		}
		return nil, invalidCredentials()
	}

	if err := u.tracker.ClearAttempts(ctx, email, meta.IP); err != nil {
		logger.Log.Warn("Failed to clear login attempts", "error", err)
	}
	res, err := u.issue(admin, "password")
	if err != nil {
		return nil, err
	}
	u.secLog.LogLoginSuccess(ctx, email, meta.IP, meta.UserAgent, meta.RequestID, "password")
	return res, nil
}

func (u *authUsecase) issue(admin *domain.Admin, via string) (*domain.LoginResult, error) {
	token, claims, err := u.tokens.Issue(admin.ID, admin.Email, via)
	if err != nil {
		return nil, apperror.Unavailable("sign-in is not configured", err)
	}
	return &domain.LoginResult{
		Token: token,
		Session: domain.Session{
			UserID:    admin.ID,
			Email:     admin.Email,
			ExpiresAt: claims.ExpiresAt.Time,
		},
	}, nil
}

// isLoopback accepts only http redirect targets on the local machine.
func isLoopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" || u.User != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (u *authUsecase) provider(name string) error {
	if name != ProviderGoogle {
		return apperror.NotFound(fmt.Sprintf("unsupported provider %q", name)).WithKind("unsupported_provider")
	}
	if u.federation == nil {
		return apperror.Unavailable("federated sign-in is not configured", nil).WithKind("provider_disabled")
	}
	return nil
}

func (u *authUsecase) StartFederated(ctx context.Context, provider, redirectTo string) (string, error) {
	if err := u.provider(provider); err != nil {
		return "", err
	}
	if !isLoopback(redirectTo) {
		return "", apperror.BadRequest("redirect_to must be a loopback http url").WithKind("invalid_redirect")
	}
	state, err := u.federation.States.New(ctx, redirectTo)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return u.federation.OAuth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// withResult appends token or error to the loopback target.
func withResult(redirectTo, key, value string) string {
	target, err := url.Parse(redirectTo)
	if err != nil {
		return redirectTo
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	return target.String()
}

func (u *authUsecase) CompleteFederated(ctx context.Context, provider, state, code, providerErr string, meta domain.RequestMeta) (string, error) {
	if err := u.provider(provider); err != nil {
		return "", err
	}
	redirectTo, ok, err := u.federation.States.Take(ctx, state)
	if err != nil {
		return "", apperror.Internal(err)
	}
	if !ok {
		return "", apperror.BadRequest("sign-in state expired or unknown").WithKind("invalid_state")
	}
	fail := func(kind domain.AuthErrorKind, reason string) (string, error) {
		u.secLog.LogLoginFailed(ctx, "", meta.IP, meta.UserAgent, meta.RequestID, reason)
		return withResult(redirectTo, "error", string(kind)), nil
	}

	if providerErr != "" {
		if providerErr == "access_denied" {
			return withResult(redirectTo, "error", string(domain.AuthUserCancelled)), nil
		}
		return fail(domain.AuthUnknown, "provider_error:"+providerErr)
	}
	if code == "" {
		return fail(domain.AuthUnknown, "missing_code")
	}

	tok, err := u.federation.OAuth.Exchange(ctx, code)
	if err != nil {
		logger.Log.Warn("OAuth code exchange failed", "error", err)
		return fail(domain.AuthUnknown, "exchange_failed")
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return fail(domain.AuthUnknown, "missing_id_token")
	}
	claims, err := u.federation.IDTokens.VerifyIDToken(ctx, rawID, u.federation.ClientID, googleIssuers...)
	if err != nil {
		logger.Log.Warn("ID token rejected", "error", err)
		return fail(domain.AuthUnknown, "invalid_id_token")
	}
	if !claims.EmailVerified {
		return fail(domain.AuthUnknown, "email_unverified")
	}

	admin, err := u.admins.GetByEmail(ctx, claims.Email)
	if err != nil || !admin.IsActive {
		return fail(domain.AuthUnknown, "not_admin")
	}
	res, err := u.issue(admin, ProviderGoogle)
	if err != nil {
		return "", err
	}
	u.secLog.LogLoginSuccess(ctx, admin.Email, meta.IP, meta.UserAgent, meta.RequestID, ProviderGoogle)
	return withResult(redirectTo, "token", res.Token), nil
}

func (u *authUsecase) claims(ctx context.Context, token string) (*auth.SessionClaims, error) {
	if token == "" {
		return nil, unauthenticated()
	}
	claims, err := u.tokens.Parse(token)
	if err != nil {
		return nil, unauthenticated()
	}
	revoked, err := u.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperror.Unavailable("session store unavailable", err)
	}
	if revoked {
		return nil, apperror.New(http.StatusUnauthorized, "session expired or invalid", domain.ErrSessionRevoked).WithKind("unauthenticated")
	}
	return claims, nil
}

func (u *authUsecase) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := u.claims(ctx, token)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (u *authUsecase) Logout(ctx context.Context, token string) error {
	claims, err := u.claims(ctx, token)
	if err != nil {
		return err
	}
	if err := u.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperror.Unavailable("session store unavailable", err)
	}
	u.secLog.LogAdminAction(ctx, security.EventLogout, claims.Subject, "", nil)
	return nil
}
