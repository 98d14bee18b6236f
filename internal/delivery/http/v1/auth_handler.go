package v1

import (
	"net/http"
	"strings"
	"time"

	"portfolio-backend/internal/delivery/http/middleware"
	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/internal/domain"
	"portfolio-backend/pkg/apperror"
	"portfolio-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUC        domain.AuthUsecase
	secureCookies bool
}

// NewAuthHandler registers the sign-in routes. limiter guards the public ones.
func NewAuthHandler(public, protected *gin.RouterGroup, authUC domain.AuthUsecase, limiter gin.HandlerFunc, secureCookies bool) {
	handler := &AuthHandler{
		authUC:        authUC,
		secureCookies: secureCookies,
	}

	// Public Routes
	publicAuth := public.Group("/auth", limiter)
	{
		publicAuth.POST("/login", handler.Login)
		publicAuth.GET("/oauth/:provider/start", handler.StartOAuth)
		publicAuth.GET("/oauth/:provider/callback", handler.OAuthCallback)
	}

	// Protected Routes
	protectedAuth := protected.Group("/auth")
	{
		protectedAuth.GET("/me", handler.Me)
		protectedAuth.POST("/logout", handler.Logout)
	}
}

func requestMeta(c *gin.Context) domain.RequestMeta {
	return domain.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: c.GetString(response.RequestIDKey),
	}
}

// bindError turns a binding failure into a 400 listing the offending fields.
func bindError(err error) *apperror.AppError {
	return apperror.BadRequest(strings.Join(validation.FormatValidationErrors(err), "; ")).WithKind("validation")
}

// Login godoc
// @Summary      Admin sign-in
// @Description  Exchange email, password and optional one-time code for a session token. Also sets the auth_token cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        login  body      domain.LoginRequest  true  "Credentials"
// @Success      200    {object}  response.Response{data=domain.LoginResult}
// @Failure      400    {object}  response.Response
// @Failure      401    {object}  response.Response
// @Failure      429    {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	res, err := h.authUC.Login(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		c.Error(err)
		return
	}

	maxAge := int(time.Until(res.Session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, res.Token, maxAge, "/", "", h.secureCookies, true)
	if _, err := middleware.SetCSRFCookie(c, h.secureCookies); err != nil {
		c.Error(apperror.Internal(err))
		return
	}

	response.Success(c, http.StatusOK, "Login successful", res)
}

// StartOAuth godoc
// @Summary      Start federated sign-in
// @Description  Returns the provider consent URL. redirect_to must be a loopback http URL.
// @Tags         auth
// @Produce      json
// @Param        provider     path      string  true  "Provider"  Enums(google)
// @Param        redirect_to  query     string  true  "Loopback URL receiving the result"
// @Success      200          {object}  response.Response
// @Failure      400          {object}  response.Response
// @Failure      404          {object}  response.Response
// @Router       /auth/oauth/{provider}/start [get]
func (h *AuthHandler) StartOAuth(c *gin.Context) {
	authURL, err := h.authUC.StartFederated(c.Request.Context(), c.Param("provider"), c.Query("redirect_to"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Redirect the browser to auth_url", gin.H{"auth_url": authURL})
}

// OAuthCallback godoc
// @Summary      Federated sign-in callback
// @Description  Provider redirect target. Sends the browser on to the loopback URL with token or error.
// @Tags         auth
// @Param        provider  path   string  true   "Provider"
// @Param        state     query  string  true   "State"
// @Param        code      query  string  false  "Authorization code"
// @Param        error     query  string  false  "Provider error"
// @Success      302
// @Failure      400  {object}  response.Response
// @Router       /auth/oauth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	location, err := h.authUC.CompleteFederated(
		c.Request.Context(),
		c.Param("provider"),
		c.Query("state"),
		c.Query("code"),
		c.Query("error"),
		requestMeta(c),
	)
	if err != nil {
		c.Error(err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// Me godoc
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=domain.Session}
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	session, err := h.authUC.Authenticate(c.Request.Context(), c.GetString(string(domain.KeyToken)))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Session active", session)
}

// Logout godoc
// @Summary      Sign out
// @Description  Revokes the current token until it expires and clears the auth cookie.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authUC.Logout(c.Request.Context(), c.GetString(string(domain.KeyToken))); err != nil {
		c.Error(err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.secureCookies, true)
	response.Success(c, http.StatusOK, "Signed out", nil)
}
