package main

import (
	"account-service/internal/config"
	"account-service/internal/events"
	"account-service/internal/infrastructure/cache"
	"account-service/internal/infrastructure/database/migrations"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/logger"
	"account-service/internal/middleware"
	"account-service/internal/notification"
	"account-service/internal/routes"
	"account-service/internal/usecase/auth"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting application",
		zap.String("environment", cfg.Server.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(cfg.Database.MigrationsDir, cfg.Database.URL()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	sender, closeSender, err := newSender(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to set up mail delivery", zap.Error(err))
	}
	defer closeSender()

	publisher, closePublisher := events.NewPublisher(&cfg.MQTT)
	defer closePublisher()

	rdb, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, sensitive endpoints use the in-process limiter only", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst)
	go limiter.Run(ctx)

	router := routes.SetupRoutes(cfg, db, routes.Dependencies{
		Sender:    sender,
		Publisher: publisher,
		Redis:     rdb,
		Limiter:   limiter,
	})

	cleaner := auth.NewTokenCleaner(
		postgres.NewTokenRepository(db),
		publisher,
		cfg.Tokens.ConsumedRetention,
		cfg.Tokens.CleanupBatchSize,
	)
	go cleaner.StartTokenCleanupJob(ctx, cfg.Tokens.CleanupInterval)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
		return
	}

	logger.Info("Server exited properly")
}

// newSender returns the sender the auth service uses. With a broker configured
// messages are queued and, if enabled, delivered by an in-process worker.
func newSender(ctx context.Context, cfg *config.Config) (notification.Sender, func(), error) {
	renderer, err := notification.NewRenderer(cfg.Mail.From)
	if err != nil {
		return nil, nil, err
	}
	transport, err := notification.NewTransport(&cfg.Mail)
	if err != nil {
		return nil, nil, err
	}
	direct := notification.NewDirectSender(renderer, transport)

	if cfg.Queue.URL == "" {
		logger.Info("Mail delivery is synchronous", zap.String("transport", cfg.Mail.Transport))
		return direct, func() {}, nil
	}

	queue, err := notification.NewQueueSender(cfg.Queue.URL, cfg.Queue.Name)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Queue.WorkerEnabled {
		worker := notification.NewWorker(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.Prefetch, direct)
		go worker.Run(ctx)
	}

	logger.Info("Mail delivery is queued",
		zap.String("queue", cfg.Queue.Name),
		zap.Bool("worker_enabled", cfg.Queue.WorkerEnabled),
		zap.String("transport", cfg.Mail.Transport),
	)

	return queue, func() {
		if err := queue.Close(); err != nil {
			logger.Warn("Failed to close mail queue", zap.Error(err))
		}
	}, nil
}
