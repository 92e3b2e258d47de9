package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, overrides map[string]interface{}) *Config {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	v.Set("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	for key, value := range overrides {
		v.Set(key, value)
	}
	return fromViper(v)
}

func TestDefaults(t *testing.T) {
	cfg := newTestConfig(t, nil)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.Tokens.ActivationTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Tokens.RefreshTTL)
	assert.Equal(t, "mail.outbound", cfg.Queue.Name)
	assert.Equal(t, MailTransportLog, cfg.Mail.Transport)
	assert.False(t, cfg.IsProduction())
}

func TestValidate(t *testing.T) {
	t.Run("Short secret", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]interface{}{"JWT_SECRET": "short"})
		assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")
	})

	t.Run("Non-positive TTL", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]interface{}{"TOKEN_REFRESH_TTL": "0s"})
		assert.ErrorContains(t, cfg.Validate(), "TOKEN_REFRESH_TTL")
	})

	t.Run("Unknown transport", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]interface{}{"MAIL_TRANSPORT": "pigeon"})
		assert.ErrorContains(t, cfg.Validate(), "MAIL_TRANSPORT")
	})

	t.Run("SMTP without host", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]interface{}{"MAIL_TRANSPORT": "smtp"})
		assert.ErrorContains(t, cfg.Validate(), "SMTP_HOST")
	})

	t.Run("SMTP without timeout", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]interface{}{
			"MAIL_TRANSPORT":    "smtp",
			"SMTP_HOST":         "mail.example.com",
			"MAIL_SMTP_TIMEOUT": "0s",
		})
		assert.ErrorContains(t, cfg.Validate(), "MAIL_SMTP_TIMEOUT")
	})
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "p@ss", DBName: "accounts", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/accounts?sslmode=disable", db.URL())
}
