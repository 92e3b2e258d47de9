package routes

import (
	"account-service/internal/config"
	"account-service/internal/delivery/http/handler"
	domainToken "account-service/internal/domain/token"
	"account-service/internal/events"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/logger"
	"account-service/internal/middleware"
	"account-service/internal/notification"
	"account-service/internal/usecase/auth"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const healthTimeout = 2 * time.Second

// Dependencies are the outbound collaborators built by the caller.
type Dependencies struct {
	Sender    notification.Sender
	Publisher events.Publisher
	// Redis enables the shared limiter on sensitive endpoints when set.
	Redis *redis.Client
	// Limiter is the per-process limiter; one is created when nil.
	Limiter *middleware.RateLimiter
}

func TokenPolicy(cfg *config.TokenConfig) domainToken.Policy {
	return domainToken.Policy{
		Activation:    cfg.ActivationTTL,
		PasswordReset: cfg.PasswordResetTTL,
		Refresh:       cfg.RefreshTTL,
	}
}

// NewAuthService wires the account use cases onto db.
func NewAuthService(cfg *config.Config, db *postgres.DB, deps Dependencies) *auth.Service {
	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, TokenPolicy(&cfg.Tokens))

	var opts []auth.Option
	if deps.Publisher != nil {
		opts = append(opts, auth.WithPublisher(deps.Publisher))
	}

	return auth.NewService(
		postgres.NewUserRepository(db),
		postgres.NewTokenRepository(db),
		db,
		issuer,
		deps.Sender,
		cfg,
		opts...,
	)
}

func SetupRoutes(cfg *config.Config, db *postgres.DB, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst)
	}

	router := gin.New()

	// Order: recovery, request ID, logging, security headers, CORS, request size limit, general rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(limiter))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	service := NewAuthService(cfg, db, deps)
	guard := auth.NewGuard(cfg.JWT.Secret)

	authHandler := handler.NewAuthHandler(service)
	adminHandler := handler.NewAdminHandler(service)

	var sensitive []gin.HandlerFunc
	if deps.Redis != nil {
		sensitive = append(sensitive, middleware.RedisRateLimitMiddleware(
			deps.Redis,
			"auth",
			cfg.RateLimit.SensitivePerWindow,
			cfg.RateLimit.SensitiveWindow,
		))
	}

	v1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1, sensitive...)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(guard))
		{
			authHandler.RegisterProtectedRoutes(protected)
			adminHandler.RegisterRoutes(protected)
		}
	}

	logger.Info("All routes initialized")
	return router
}
