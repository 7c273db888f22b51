// Package config defines the configuration for the CaptionFlow ledger service.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles: OS environment first, then an
// optional .env file for local development. Any missing required value or
// invalid format fails startup immediately.
package config

import "time"

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Billing  BillingConfig
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds connection and pool tuning for the durable store.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// CacheConfig holds the fallback cache store connection parameters.
type CacheConfig struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	DialTimeout   time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
}

// BillingConfig holds payment gateway credentials.
type BillingConfig struct {
	StripeSecretKey string        `envconfig:"STRIPE_SECRET_KEY"`
	Timeout         time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"20s"`
}
