// Command cleanup runs a single stale-token purge and exits, for cron-style schedulers.
package main

import (
	"account-service/internal/config"
	"account-service/internal/events"
	"account-service/internal/infrastructure/database/postgres"
	"account-service/internal/logger"
	"account-service/internal/usecase/auth"
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

const runTimeout = 10 * time.Minute

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

	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	publisher, closePublisher := events.NewPublisher(&cfg.MQTT)
	defer closePublisher()

	cleaner := auth.NewTokenCleaner(
		postgres.NewTokenRepository(db),
		publisher,
		cfg.Tokens.ConsumedRetention,
		cfg.Tokens.CleanupBatchSize,
	)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	deleted, err := cleaner.CleanupTokens(ctx, time.Now())
	if err != nil {
		logger.Error("Token cleanup failed", zap.Int64("deleted", deleted), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Token cleanup finished", zap.Int64("deleted", deleted), logger.Event("tokens_purged"))
}
