// Package config loads application configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	AppEnv   string `mapstructure:"APP_ENV"`

	// Backend REST API (owns users, policies, applications, claims, payments, blogs)
	BackendAPIURL string `mapstructure:"BACKEND_API_URL"`

	// Identity provider
	IdentityAPIKey      string        `mapstructure:"IDENTITY_API_KEY"`
	IdentityProjectID   string        `mapstructure:"IDENTITY_PROJECT_ID"`
	IdentityAPIURL      string        `mapstructure:"IDENTITY_API_URL"`
	IdentityTokenURL    string        `mapstructure:"IDENTITY_TOKEN_URL"`
	IdentityIssuerURL   string        `mapstructure:"IDENTITY_ISSUER_URL"`
	GoogleClientID      string        `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string        `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL   string        `mapstructure:"GOOGLE_REDIRECT_URL"`
	SessionSecret       string        `mapstructure:"SESSION_SECRET"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookieSecure bool          `mapstructure:"SESSION_COOKIE_SECURE"`

	// Session store (empty REDIS_URL → in-memory store)
	RedisURL string `mapstructure:"REDIS_URL"`

	// Payment processor / image host
	PaymentPublicKey string `mapstructure:"PAYMENT_PUBLIC_KEY"`
	ImageHostURL     string `mapstructure:"IMAGE_HOST_URL"`
	ImageHostAPIKey  string `mapstructure:"IMAGE_HOST_API_KEY"`

	// HTTP client
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`

	// Resilience
	MaxRetries     int           `mapstructure:"MAX_RETRIES"`
	InitialBackoff time.Duration `mapstructure:"INITIAL_BACKOFF"`
	MaxConcurrency int           `mapstructure:"MAX_CONCURRENCY"`

	// Cache
	RoleCacheTTL time.Duration `mapstructure:"ROLE_CACHE_TTL"`
	QuoteTTL     time.Duration `mapstructure:"QUOTE_TTL"`

	// Observability
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is ignored.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("BACKEND_API_URL", "http://localhost:5000")

	v.SetDefault("IDENTITY_API_KEY", "")
	v.SetDefault("IDENTITY_PROJECT_ID", "")
	v.SetDefault("IDENTITY_API_URL", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("IDENTITY_TOKEN_URL", "https://securetoken.googleapis.com/v1/token")
	v.SetDefault("IDENTITY_ISSUER_URL", "https://securetoken.google.com")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/v1/auth/google/callback")
	v.SetDefault("SESSION_SECRET", "bfa-default-dev-secret-change-me")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("SESSION_COOKIE_SECURE", false)

	v.SetDefault("REDIS_URL", "")

	v.SetDefault("PAYMENT_PUBLIC_KEY", "")
	v.SetDefault("IMAGE_HOST_URL", "https://api.imgbb.com")
	v.SetDefault("IMAGE_HOST_API_KEY", "")

	v.SetDefault("HTTP_TIMEOUT", "10s")

	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("INITIAL_BACKOFF", "100ms")
	v.SetDefault("MAX_CONCURRENCY", 50)

	v.SetDefault("ROLE_CACHE_TTL", "30s")
	v.SetDefault("QUOTE_TTL", "30m")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.New("config: PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.BackendAPIURL) == "" {
		return nil, errors.New("config: BACKEND_API_URL must be set")
	}
	cfg.BackendAPIURL = strings.TrimRight(cfg.BackendAPIURL, "/")
	if cfg.AppEnv == "production" && cfg.SessionSecret == "bfa-default-dev-secret-change-me" {
		return nil, errors.New("config: SESSION_SECRET must be set when APP_ENV=production")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 168 * time.Hour
	}
	if cfg.RoleCacheTTL < 0 {
		cfg.RoleCacheTTL = 0
	}

	return &cfg, nil
}

// IdentityIssuer is the ID-token issuer for the configured project.
func (c *Config) IdentityIssuer() string {
	return strings.TrimRight(c.IdentityIssuerURL, "/") + "/" + c.IdentityProjectID
}

// GoogleSignInEnabled reports whether the OAuth sign-in flow is configured.
func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}
