package notification

import (
	"account-service/internal/logger"
	"context"

	"go.uber.org/zap"
)

// LogTransport writes emails to the application log instead of sending them.
// Links carry live tokens, so it must only be used in development.
type LogTransport struct{}

func (LogTransport) Deliver(_ context.Context, email Email) error {
	logger.Info("Email delivered to log",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("body", email.HTMLBody),
		logger.Event("mail_logged"),
	)
	return nil
}
