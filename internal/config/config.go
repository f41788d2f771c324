// Package config loads the daemon configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Durations are expressed in seconds so
// the YAML file and the stored TTL maps share one unit.
type Config struct {
	// Listen is the admin/metrics listen address.
	Listen string `yaml:"listen" env:"RESTCACHE_LISTEN"`

	// DBPath is the SQLite database path (":memory:" for ephemeral).
	DBPath string `yaml:"db_path" env:"RESTCACHE_DB_PATH"`

	// SweepIntervalSeconds is the refresh sweep cadence.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" env:"RESTCACHE_SWEEP_INTERVAL_SECONDS"`

	// DefaultTTLSeconds is the fallback response lifetime.
	DefaultTTLSeconds int `yaml:"default_ttl_seconds" env:"RESTCACHE_DEFAULT_TTL_SECONDS"`

	// StatusTTLSeconds overrides per-status lifetimes.
	StatusTTLSeconds map[int]int `yaml:"status_ttl_seconds"`

	// Exclusions lists hosts that must never be cached.
	Exclusions []string `yaml:"exclusions" env:"RESTCACHE_EXCLUSIONS" envSeparator:","`

	// FailureMode controls non-2xx captures: "metadata" records the
	// failure but preserves the previous payload, "skip" writes nothing.
	FailureMode string `yaml:"failure_mode" env:"RESTCACHE_FAILURE_MODE"`

	// RequestTimeoutSeconds bounds origin calls.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"RESTCACHE_REQUEST_TIMEOUT_SECONDS"`

	// UserAgent is sent on origin calls.
	UserAgent string `yaml:"user_agent" env:"RESTCACHE_USER_AGENT"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" env:"RESTCACHE_LOG_LEVEL"`

	// LogPretty enables human-readable console logging.
	LogPretty bool `yaml:"log_pretty" env:"RESTCACHE_LOG_PRETTY"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:                ":8080",
		DBPath:                "cache.db",
		SweepIntervalSeconds:  300,
		DefaultTTLSeconds:     600,
		FailureMode:           "metadata",
		RequestTimeoutSeconds: 30,
		LogLevel:              "info",
	}
}

// Load builds the configuration: defaults, then the YAML file (when path is
// not empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.FailureMode {
	case "metadata", "skip":
	default:
		return fmt.Errorf("invalid failure_mode %q (want metadata or skip)", c.FailureMode)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	return nil
}
