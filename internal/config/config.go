package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Query     QueryConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	// BcryptCost is the work factor for password hashes.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`
	// PasswordResetTTL bounds how long a mailed reset token works.
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"10m"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `env:"PORT"                 envDefault:"8080"`
	Env             string        `env:"APP_ENV"             envDefault:"development"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"  envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `env:"DB_HOST"      envDefault:"localhost"`
	Port      string `env:"DB_PORT"      envDefault:"8000"`
	Namespace string `env:"DB_NAMESPACE" envDefault:"trailhead"`
	Database  string `env:"DB_DATABASE"  envDefault:"main"`
	User      string `env:"DB_USER"      envDefault:"root"`
	Password  string `env:"DB_PASSWORD"  envDefault:"root"`
}

// JWTConfig holds session token settings
type JWTConfig struct {
	Secret            string        `env:"JWT_SECRET"`
	ExpiresIn         time.Duration `env:"JWT_EXPIRES_IN"          envDefault:"2160h"`
	CookieExpiresDays int           `env:"JWT_COOKIE_EXPIRES_IN"   envDefault:"90"`
	Issuer            string        `env:"JWT_ISSUER"              envDefault:"trailhead"`
}

// QueryConfig bounds list queries
type QueryConfig struct {
	DefaultLimit int `env:"QUERY_DEFAULT_LIMIT" envDefault:"100"`
	MaxLimit     int `env:"QUERY_MAX_LIMIT" envDefault:"1000"`
}

// RateLimitConfig bounds requests per client IP on /api
type RateLimitConfig struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW"   envDefault:"1h"`
}

// JobsConfig controls background work
type JobsConfig struct {
	// RatingsReconcileInterval of zero disables the reconciler.
	RatingsReconcileInterval time.Duration `env:"RATINGS_RECONCILE_INTERVAL" envDefault:"15m"`
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// CookieExpires is how long the session cookie lives
func (c *Config) CookieExpires() time.Duration {
	return time.Duration(c.JWT.CookieExpiresDays) * 24 * time.Hour
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("APP_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	if len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.JWT.ExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.JWT.CookieExpiresDays <= 0 {
		errs = append(errs, errors.New("JWT_COOKIE_EXPIRES_IN must be positive"))
	}

	if c.Query.MaxLimit <= 0 {
		errs = append(errs, errors.New("QUERY_MAX_LIMIT must be positive"))
	}
	if c.Query.DefaultLimit <= 0 || c.Query.DefaultLimit > c.Query.MaxLimit {
		errs = append(errs, errors.New("QUERY_DEFAULT_LIMIT must be between 1 and QUERY_MAX_LIMIT"))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Jobs.RatingsReconcileInterval < 0 {
		errs = append(errs, errors.New("RATINGS_RECONCILE_INTERVAL must not be negative"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}
	if c.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TTL must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
