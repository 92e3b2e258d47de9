package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"

	MailTransportSMTP = "smtp"
	MailTransportSES  = "ses"
	MailTransportLog  = "log"

	minJWTSecretLength = 32
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Tokens    TokenConfig
	Security  SecurityConfig
	App       AppConfig
	Mail      MailConfig
	Queue     QueueConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	MQTT      MQTTConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ShutdownTimeout time.Duration
	MaxRequestSize  int64
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
	AutoMigrate     bool
}

type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
}

// TokenConfig holds the per-kind lifetimes of persisted tokens and the cleanup cadence.
type TokenConfig struct {
	ActivationTTL     time.Duration
	PasswordResetTTL  time.Duration
	RefreshTTL        time.Duration
	ConsumedRetention time.Duration
	CleanupInterval   time.Duration
	CleanupBatchSize  int
}

type SecurityConfig struct {
	BcryptCost int
}

type AppConfig struct {
	Name    string
	BaseURL string
}

type MailConfig struct {
	Transport string
	From      string
	SMTP      SMTPConfig
	SESRegion string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

type QueueConfig struct {
	URL           string
	Name          string
	WorkerEnabled bool
	Prefetch      int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	GeneralRPS         float64 // Requests per second for general endpoints
	GeneralBurst       int     // Burst size for general endpoints
	SensitivePerWindow int     // Attempts per window on login/reset/resend
	SensitiveWindow    time.Duration
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENVIRONMENT", EnvironmentDevelopment)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("SERVER_MAX_REQUEST_SIZE", 1<<20)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "accounts")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("JWT_ACCESS_TTL", "15m")

	v.SetDefault("TOKEN_ACTIVATION_TTL", "24h")
	v.SetDefault("TOKEN_PASSWORD_RESET_TTL", "30m")
	v.SetDefault("TOKEN_REFRESH_TTL", "168h")
	v.SetDefault("TOKEN_CONSUMED_RETENTION", "24h")
	v.SetDefault("TOKEN_CLEANUP_INTERVAL", "1h")
	v.SetDefault("TOKEN_CLEANUP_BATCH_SIZE", 500)

	v.SetDefault("BCRYPT_COST", 12)

	v.SetDefault("APP_NAME", "Account Service")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	v.SetDefault("MAIL_TRANSPORT", MailTransportLog)
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_SMTP_TIMEOUT", "10s")
	v.SetDefault("SES_REGION", "us-east-1")

	v.SetDefault("QUEUE_NAME", "mail.outbound")
	v.SetDefault("QUEUE_WORKER_ENABLED", true)
	v.SetDefault("QUEUE_PREFETCH", 10)

	v.SetDefault("RATE_LIMIT_GENERAL_RPS", 10)
	v.SetDefault("RATE_LIMIT_GENERAL_BURST", 20)
	v.SetDefault("RATE_LIMIT_SENSITIVE_PER_WINDOW", 10)
	v.SetDefault("RATE_LIMIT_SENSITIVE_WINDOW", "1m")

	v.SetDefault("MQTT_CLIENT_ID", "account-service")
	v.SetDefault("MQTT_TOPIC_PREFIX", "accounts")
	v.SetDefault("MQTT_QOS", 1)

	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"})
	v.SetDefault("CORS_MAX_AGE", 12*3600)
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(homeDir)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("ENVIRONMENT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			MaxRequestSize:  v.GetInt64("SERVER_MAX_REQUEST_SIZE"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			MigrationsDir:   v.GetString("DB_MIGRATIONS_DIR"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("JWT_SECRET"),
			AccessTTL: v.GetDuration("JWT_ACCESS_TTL"),
		},
		Tokens: TokenConfig{
			ActivationTTL:     v.GetDuration("TOKEN_ACTIVATION_TTL"),
			PasswordResetTTL:  v.GetDuration("TOKEN_PASSWORD_RESET_TTL"),
			RefreshTTL:        v.GetDuration("TOKEN_REFRESH_TTL"),
			ConsumedRetention: v.GetDuration("TOKEN_CONSUMED_RETENTION"),
			CleanupInterval:   v.GetDuration("TOKEN_CLEANUP_INTERVAL"),
			CleanupBatchSize:  v.GetInt("TOKEN_CLEANUP_BATCH_SIZE"),
		},
		Security: SecurityConfig{
			BcryptCost: v.GetInt("BCRYPT_COST"),
		},
		App: AppConfig{
			Name:    v.GetString("APP_NAME"),
			BaseURL: strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		},
		Mail: MailConfig{
			Transport: strings.ToLower(v.GetString("MAIL_TRANSPORT")),
			From:      v.GetString("MAIL_FROM"),
			SMTP: SMTPConfig{
				Host:     v.GetString("SMTP_HOST"),
				Port:     v.GetInt("SMTP_PORT"),
				User:     v.GetString("SMTP_USER"),
				Password: v.GetString("SMTP_PASSWORD"),
				Timeout:  v.GetDuration("MAIL_SMTP_TIMEOUT"),
			},
			SESRegion: v.GetString("SES_REGION"),
		},
		Queue: QueueConfig{
			URL:           v.GetString("QUEUE_URL"),
			Name:          v.GetString("QUEUE_NAME"),
			WorkerEnabled: v.GetBool("QUEUE_WORKER_ENABLED"),
			Prefetch:      v.GetInt("QUEUE_PREFETCH"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:         v.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst:       v.GetInt("RATE_LIMIT_GENERAL_BURST"),
			SensitivePerWindow: v.GetInt("RATE_LIMIT_SENSITIVE_PER_WINDOW"),
			SensitiveWindow:    v.GetDuration("RATE_LIMIT_SENSITIVE_WINDOW"),
		},
		MQTT: MQTTConfig{
			Broker:      v.GetString("MQTT_BROKER"),
			ClientID:    v.GetString("MQTT_CLIENT_ID"),
			Username:    v.GetString("MQTT_USERNAME"),
			Password:    v.GetString("MQTT_PASSWORD"),
			TopicPrefix: v.GetString("MQTT_TOPIC_PREFIX"),
			QoS:         v.GetInt("MQTT_QOS"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   v.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   v.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   v.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   v.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           v.GetInt("CORS_MAX_AGE"),
		},
	}
}

// Validate rejects configurations the service cannot run safely with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}

	durations := map[string]time.Duration{
		"JWT_ACCESS_TTL":           c.JWT.AccessTTL,
		"TOKEN_ACTIVATION_TTL":     c.Tokens.ActivationTTL,
		"TOKEN_PASSWORD_RESET_TTL": c.Tokens.PasswordResetTTL,
		"TOKEN_REFRESH_TTL":        c.Tokens.RefreshTTL,
		"TOKEN_CLEANUP_INTERVAL":   c.Tokens.CleanupInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Tokens.ConsumedRetention < 0 {
		errs = append(errs, errors.New("TOKEN_CONSUMED_RETENTION must not be negative"))
	}

	switch c.Mail.Transport {
	case MailTransportSMTP:
		if c.Mail.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp mail transport"))
		}
		if c.Mail.SMTP.Timeout <= 0 {
			errs = append(errs, errors.New("MAIL_SMTP_TIMEOUT must be positive"))
		}
	case MailTransportSES, MailTransportLog:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.Mail.Transport))
	}

	if _, err := url.ParseRequestURI(c.App.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("APP_BASE_URL is invalid: %w", err))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvironmentProduction
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL is the connection string form golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:     c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
