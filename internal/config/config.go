package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Email provider
	// ----------------------------
	ProviderAPIKey        string        `envconfig:"PROVIDER_API_KEY" validate:"required_if=DispatchMode provider"`
	ProviderWebhookSecret string        `envconfig:"PROVIDER_WEBHOOK_SECRET" validate:"required_if=DispatchMode provider"`
	ProviderBaseURL       string        `envconfig:"PROVIDER_BASE_URL" default:"https://api.resend.com" validate:"url"`
	ProviderTimeout       time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s" validate:"gt=0"`
	ProviderRetryAttempts int           `envconfig:"PROVIDER_RETRY_ATTEMPTS" default:"3" validate:"gte=0,lte=10"`
	RateLimit             int           `envconfig:"RATE_LIMIT" default:"10" validate:"gt=0"`
	DispatchMode          string        `envconfig:"DISPATCH_MODE" default:"provider" validate:"oneof=provider console"`
	MailFrom              string        `envconfig:"MAIL_FROM" default:"SessionPulse <noreply@sessionpulse.dev>" validate:"required"`

	// ----------------------------
	// SMTP (update notifications)
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:""`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`

	// ----------------------------
	// Database (sessions, and jobs with the postgres backend)
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required"`

	// ----------------------------
	// Job store
	// ----------------------------
	StoreBackend  string `envconfig:"STORE_BACKEND" default:"postgres" validate:"oneof=postgres redis memory"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required_if=StoreBackend redis"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`

	// ----------------------------
	// Workers
	// ----------------------------
	WorkerCount     int `envconfig:"WORKER_COUNT" default:"4" validate:"gt=0"`
	EventBufferSize int `envconfig:"EVENT_BUFFER_SIZE" default:"100" validate:"gt=0"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Email content
	// ----------------------------
	AppBaseURL      string `envconfig:"APP_BASE_URL" default:"http://localhost:3000" validate:"url"`
	DisplayTimezone string `envconfig:"DISPLAY_TIMEZONE" default:"UTC" validate:"timezone"`
}

// Option overrides a loaded value before validation.
type Option func(*Config)

// WithDispatchMode fixes the dispatch mode regardless of DISPATCH_MODE, for
// tools that never talk to the provider.
func WithDispatchMode(mode string) Option {
	return func(c *Config) {
		c.DispatchMode = mode
	}
}

// Load reads an optional .env file, then the environment.
func Load(options ...Option) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	for _, option := range options {
		option(&cfg)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
