package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-backend/config"
	_ "portfolio-backend/docs" // Important for Swagger
	v1 "portfolio-backend/internal/delivery/http/v1"
	"portfolio-backend/internal/domain"
	"portfolio-backend/internal/livequery"
	"portfolio-backend/internal/repository/postgres"
	"portfolio-backend/internal/usecase"
	"portfolio-backend/pkg/archive"
	"portfolio-backend/pkg/auth"
	"portfolio-backend/pkg/database"
	"portfolio-backend/pkg/email"
	"portfolio-backend/pkg/logger"
	"portfolio-backend/pkg/redis"
	"portfolio-backend/pkg/security"
	"portfolio-backend/pkg/validation"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// Polling interval used when LISTEN/NOTIFY is unavailable.
const pollInterval = 5 * time.Second

// @title           Portfolio Backend API
// @version         1.0
// @description     Contact form intake and admin inbox for the portfolio site.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Loggers
	logger.Init(cfg.LogLevel)
	secLog := security.InitSecurityLogger("portfolio-backend", os.Getenv("APP_ENV"))
	defer secLog.Sync()
	logger.Log.Info("Starting portfolio backend", "port", cfg.Port)

	if !validation.RegisterWithGin() {
		logger.Log.Error("Failed to register custom validators")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Setup Database
	dbPool, err := database.NewPostgresConnection(ctx, cfg.DBUrl)
	if err != nil {
		logger.Log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(ctx, dbPool); err != nil {
			logger.Log.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// 4. Setup Redis (optional)
	if cfg.UpstashRedisURL != "" {
		if err := redis.Initialize(redis.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword}); err != nil {
			logger.Log.Warn("Redis unavailable, using in-memory stores", "error", err)
		}
	}
	defer redis.Close()

	// 5. Setup Repositories
	messageRepo := postgres.NewMessageRepository(dbPool)
	adminRepo := postgres.NewAdminRepository(dbPool)

	if err := bootstrapAdmin(ctx, adminRepo, cfg); err != nil {
		logger.Log.Error("Failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	// 6. Live query
	hub := livequery.NewHub(messageRepo)
	go hub.Run(ctx, changeSignals(ctx, cfg.DBUrl))

	// 7. Setup Email Service
	emailService := email.NewEmailService(cfg)
	if !emailService.IsConfigured() {
		logger.Log.Warn("Email service not fully configured - owner notifications disabled")
	}

	// 8. Setup UseCases
	var kv auth.KV = auth.NewMemoryKV()
	if c := redis.Client(); c != nil {
		kv = auth.NewRedisKV(c, "portfolio:")
	}
	tracker := security.NewLoginTracker(security.LoginTrackerConfig{
		MaxAttempts:   cfg.FailedLoginMaxAttempts,
		AttemptWindow: time.Duration(cfg.FailedLoginBlockMinutes) * time.Minute,
		BlockDuration: time.Duration(cfg.FailedLoginBlockMinutes) * time.Minute,
		UseIPTracking: true,
	}, security.NewCounterStore(redis.Client()), secLog)

	authUC := usecase.NewAuthUsecase(
		adminRepo,
		tracker,
		auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL),
		auth.NewRevocations(kv),
		federation(cfg, kv),
		secLog,
	)
	var msgOpts []usecase.MessageOption
	var archivePinger usecase.Pinger
	if arch := exportArchive(ctx, cfg); arch != nil {
		msgOpts = append(msgOpts, usecase.WithArchiver(arch))
		archivePinger = usecase.PingFunc(arch.Ping)
	}
	messageUC := usecase.NewMessageUsecase(messageRepo, hub, emailService, cfg.MaxClientClockSkew, msgOpts...)
	healthUC := usecase.NewHealthUsecase(map[string]usecase.Pinger{
		"database": usecase.PingFunc(dbPool.Ping),
		"redis":    redisPinger(),
		"archive":  archivePinger,
	})

	// 9. Setup Router
	if os.Getenv("GIN_MODE") == "" && os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := v1.NewRouter(v1.RouterDeps{
		AuthUC:    authUC,
		MessageUC: messageUC,
		HealthUC:  healthUC,
		SecLog:    secLog,
		Config:    cfg,
	})

	// 10. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Listen failed", "error", err)
			stop()
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}

// bootstrapAdmin upserts the configured admin account.
func bootstrapAdmin(ctx context.Context, repo domain.AdminRepository, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		logger.Log.Warn("ADMIN_EMAIL or ADMIN_PASSWORD_HASH not set; keeping existing admins")
		return nil
	}
	return repo.Upsert(ctx, &domain.Admin{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
		TOTPSecret:   cfg.AdminTOTPSecret,
		IsActive:     true,
	})
}

// changeSignals follows Postgres notifications, or polls when LISTEN fails.
func changeSignals(ctx context.Context, connString string) <-chan struct{} {
	listener, err := database.Listen(connString, postgres.NotifyChannel)
	if err == nil {
		go func() {
			listener.Run(ctx)
			_ = listener.Close()
		}()
		return listener.Signals()
	}

	logger.Log.Warn("LISTEN unavailable, polling for changes", "error", err, "interval", pollInterval)
	out := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

func federation(cfg *config.Config, kv auth.KV) *usecase.Federation {
	if !cfg.GoogleEnabled() {
		return nil
	}
	return &usecase.Federation{
		ClientID: cfg.GoogleClientID,
		OAuth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       []string{"openid", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:  "https://oauth2.googleapis.com/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		IDTokens: auth.NewKeySet(cfg.GoogleJWKSURL),
		States:   auth.NewStateStore(kv, cfg.OAuthStateTTL),
	}
}

func exportArchive(ctx context.Context, cfg *config.Config) *archive.S3Archive {
	if !cfg.ArchiveEnabled() {
		return nil
	}
	arch, err := archive.NewS3Archive(ctx, archive.Config{
		Provider:        archive.Provider(cfg.ArchiveProvider),
		Bucket:          cfg.ArchiveBucket,
		Region:          cfg.ArchiveRegion,
		Endpoint:        cfg.ArchiveEndpoint,
		AccessKeyID:     cfg.ArchiveAccessKeyID,
		SecretAccessKey: cfg.ArchiveSecretAccessKey,
		Prefix:          "inbox-exports",
	})
	if err != nil {
		logger.Log.Warn("Export archive disabled", "error", err)
		return nil
	}
	return arch
}

func redisPinger() usecase.Pinger {
	if redis.Client() == nil {
		return nil
	}
	return usecase.PingFunc(redis.HealthCheck)
}
