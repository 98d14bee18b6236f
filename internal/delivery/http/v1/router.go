package v1

import (
	"net/http"
	"time"

	"portfolio-backend/config"
	"portfolio-backend/internal/delivery/http/middleware"
	"portfolio-backend/internal/delivery/http/response"
	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/usecase"
	"portfolio-backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	AuthUC    domain.AuthUsecase
	MessageUC domain.MessageUsecase
	HealthUC  usecase.HealthUsecase
	SecLog    *security.SecurityLogger
	Config    *config.Config
	// KeepAlive overrides the event stream ping interval.
	KeepAlive time.Duration
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	secure := gin.Mode() == gin.ReleaseMode
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	if deps.SecLog == nil {
		deps.SecLog = security.DefaultLogger()
	}

	r := gin.New()

	// Global Middlewares
	r.Use(middleware.CORSMiddleware(cfg.FrontendURL)) // CORS must be first!
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimitMiddleware(middleware.GlobalRateLimitConfig(cfg.RateLimitGlobalThreshold, window)))

	v1 := r.Group("/v1")

	// Health Check
	v1.GET("/health", func(c *gin.Context) {
		status := map[string]string{"status": "ok"}
		if deps.HealthUC != nil {
			status = deps.HealthUC.Check(c.Request.Context())
		}
		response.Success(c, http.StatusOK, "System operational", status)
	})

	// Public routes
	contactLimiter := middleware.RateLimitMiddleware(middleware.ContactRateLimitConfig(cfg.RateLimitContactLimit, window))
	loginLimiter := middleware.RateLimitMiddleware(middleware.LoginRateLimitConfig(cfg.RateLimitLoginThreshold, window))
	NewContactHandler(v1, deps.MessageUC, contactLimiter)

	// Swagger
	v1.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.AuthUC))
	protected.Use(middleware.CSRFMiddleware(secure))
	{
		NewAuthHandler(v1, protected, deps.AuthUC, loginLimiter, secure)
		NewMessageHandler(protected, deps.MessageUC, deps.SecLog, deps.KeepAlive)
	}

	return r
}
