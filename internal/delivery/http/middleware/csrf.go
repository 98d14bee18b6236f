package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

const (
	// CSRFTokenCookieName is the name of the cookie that stores the CSRF token
	CSRFTokenCookieName = "csrf_token"
	// CSRFTokenHeaderName is the name of the header that must contain the CSRF token
	CSRFTokenHeaderName = "X-CSRF-Token"
	// CSRFTokenLength is the length of the generated token in bytes (32 bytes = 64 hex chars)
	CSRFTokenLength = 32
	// CSRFTokenExpiry is how long the token is valid
	CSRFTokenExpiry = 24 * time.Hour
)

// generateCSRFToken creates a cryptographically secure random token
func generateCSRFToken() (string, error) {
	bytes := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SetCSRFCookie issues a fresh double-submit token readable by page scripts.
func SetCSRFCookie(c *gin.Context, secure bool) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CSRFTokenCookieName, token, int(CSRFTokenExpiry.Seconds()), "/", "", secure, false)
	return token, nil
}

// CSRFMiddleware implements the double-submit cookie check. It must run after
// AuthMiddleware: only requests authenticated by cookie are checked, since a
// browser attaches cookies on its own but never an Authorization header.
func CSRFMiddleware(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		csrfCookie, err := c.Cookie(CSRFTokenCookieName)
		if err != nil || csrfCookie == "" {
			csrfCookie, err = SetCSRFCookie(c, secureCookies)
			if err != nil {
				response.Abort(c, http.StatusInternalServerError, "Failed to generate security token", "")
				return
			}
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.GetString(string(domain.KeyAuthVia)) != AuthViaCookie {
			c.Next()
			return
		}

		headerToken := c.GetHeader(CSRFTokenHeaderName)
		if headerToken == "" || !security.ConstantTimeCompare(headerToken, csrfCookie) {
			security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
				Event:        security.EventCSRFViolation,
				SubjectType:  "user_id",
				SubjectValue: c.GetString(string(domain.KeyUserID)),
				IP:           c.ClientIP(),
				UserAgent:    c.GetHeader("User-Agent"),
				RequestID:    c.GetString(response.RequestIDKey),
				Details:      map[string]interface{}{"path": c.FullPath()},
			})
			msg := "Invalid CSRF token"
			if headerToken == "" {
				msg = "Missing CSRF token"
			}
			response.Abort(c, http.StatusForbidden, msg, "csrf")
			return
		}

		c.Next()
	}
}
