package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load resolves the configuration from the environment:
//
//  1. Enforce UTC to prevent calendar-window drift in usage aggregation.
//  2. Load a .env file if present (non-fatal when absent).
//  3. Populate the Config struct via envconfig tags.
//  4. Validate the struct with go-playground/validator.
//
// Any failure after step 2 is fatal to startup.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Best-effort: local development convenience only.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}
