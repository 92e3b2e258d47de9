package notification

import (
	"account-service/internal/config"
	"fmt"
)

func NewTransport(cfg *config.MailConfig) (Transport, error) {
	switch cfg.Transport {
	case config.MailTransportSMTP:
		return NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.Timeout), nil
	case config.MailTransportSES:
		return NewSESTransport(cfg.SESRegion)
	case config.MailTransportLog:
		return LogTransport{}, nil
	}
	return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
}
