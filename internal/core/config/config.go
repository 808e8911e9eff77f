// Package config provides configuration management for the LinguaFlow
// service: viper-backed application settings plus backend resolution for the
// persistence layer.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	DataDir        string

	// DatabaseURL is a dev-only override for backend selection. Production
	// deployments use the DATABASE_URL environment variable instead, which
	// also activates the fail-fast connection policy.
	DatabaseURL string

	LogLevel  string
	LogFormat string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           8080,
		RequestTimeout: 30 * time.Second,
		DataDir:        "./data",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load loads configuration from an optional file using viper.
// CLI flags > environment > config file > defaults precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix("LINGUA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Database credentials are environment-only; a checked-in config file
	// must never carry them.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		DataDir:        v.GetString("data_dir"),
		DatabaseURL:    v.GetString("database.url"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}

func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("database.password") {
		return fmt.Errorf("database passwords not allowed in config files (use the DATABASE_URL environment variable)")
	}
	return nil
}
