package middleware

import (
	"strings"

	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/apperror"
	"portfolio-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

const (
	AuthCookieName = "auth_token"
	AuthViaHeader  = "header"
	AuthViaCookie  = "cookie"
)

// BearerToken extracts the session token from the Authorization header or,
// failing that, the auth_token cookie.
func BearerToken(c *gin.Context) (token, via string) {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t), AuthViaHeader
		}
		return "", AuthViaHeader
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil && cookie != "" {
		return cookie, AuthViaCookie
	}
	return "", ""
}

func AuthMiddleware(authUC domain.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, via := BearerToken(c)
		if token == "" {
			c.Error(apperror.Unauthorized("Authorization header or auth_token cookie required").WithKind("unauthenticated"))
			c.Abort()
			return
		}

		session, err := authUC.Authenticate(c.Request.Context(), token)
		if err != nil {
			security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
				Event:       security.EventUnauthorizedAccess,
				SubjectType: "ip",
				IP:          c.ClientIP(),
				UserAgent:   c.GetHeader("User-Agent"),
				RequestID:   c.GetString(response.RequestIDKey),
				Details:     map[string]interface{}{"path": c.FullPath(), "via": via},
			})
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(string(domain.KeyUserID), session.UserID)
		c.Set(string(domain.KeyUserEmail), session.Email)
		c.Set(string(domain.KeyToken), token)
		c.Set(string(domain.KeyAuthVia), via)

		c.Next()
	}
}
