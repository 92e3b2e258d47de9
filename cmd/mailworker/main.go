// Command mailworker consumes the outbound mail queue and delivers each message.
package main

import (
	"account-service/internal/config"
	"account-service/internal/logger"
	"account-service/internal/notification"
	"context"
	"os"
	"os/signal"
	"syscall"

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

	if cfg.Queue.URL == "" {
		logger.Fatal("QUEUE_URL is required")
	}

	renderer, err := notification.NewRenderer(cfg.Mail.From)
	if err != nil {
		logger.Fatal("Failed to load mail templates", zap.Error(err))
	}
	transport, err := notification.NewTransport(&cfg.Mail)
	if err != nil {
		logger.Fatal("Failed to set up mail transport", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Mail worker starting",
		zap.String("queue", cfg.Queue.Name),
		zap.String("transport", cfg.Mail.Transport),
	)
	notification.NewWorker(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.Prefetch, notification.NewDirectSender(renderer, transport)).Run(ctx)
}
