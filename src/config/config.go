// Package config holds runtime configuration: where the database lives,
// the compression threshold and the log level. Values come from the
// environment with sensible defaults; the CLI can override on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/elee1766/agentstate/src/compressor"
)

// Environment variable names.
const (
	EnvDBPath               = "AGENTSTATE_DB"
	EnvCompressionThreshold = "AGENTSTATE_COMPRESSION_THRESHOLD"
	EnvLogLevel             = "AGENTSTATE_LOG_LEVEL"
)

// Config is the runtime configuration.
type Config struct {
	DBPath               string `validate:"required"`
	CompressionThreshold int    `validate:"gt=0"`
	LogLevel             string `validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	paths := GetDefaultStoragePaths()
	return &Config{
		DBPath:               paths.DatabasePath,
		CompressionThreshold: compressor.DefaultThreshold,
		LogLevel:             "warn",
	}
}

// FromEnv builds a configuration from defaults plus environment
// overrides, validated before use.
func FromEnv() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvDBPath); path != "" {
		cfg.DBPath = path
	}
	if raw := os.Getenv(EnvCompressionThreshold); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvCompressionThreshold, err)
		}
		cfg.CompressionThreshold = threshold
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
