// Package config loads server settings from the environment and an optional
// .env file. Real environment variables win over .env values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port   int
	DBPath string

	LogLevel  string // debug, info, warn, error
	LogFormat string // json or console

	EnforceAvailabilityOnCreate bool
	CORSAllowedOrigins          []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration. envFiles are passed to godotenv and must
// exist; with none, ./.env is loaded when present.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "vacations.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENFORCE_AVAILABILITY_ON_CREATE", true)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("READ_TIMEOUT", "15s")
	v.SetDefault("WRITE_TIMEOUT", "15s")
	v.SetDefault("IDLE_TIMEOUT", "60s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.AutomaticEnv()

	cfg := &Config{
		Port:                        v.GetInt("PORT"),
		DBPath:                      v.GetString("DB_PATH"),
		LogLevel:                    strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:                   strings.ToLower(v.GetString("LOG_FORMAT")),
		EnforceAvailabilityOnCreate: v.GetBool("ENFORCE_AVAILABILITY_ON_CREATE"),
		CORSAllowedOrigins:          splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		ReadTimeout:                 v.GetDuration("READ_TIMEOUT"),
		WriteTimeout:                v.GetDuration("WRITE_TIMEOUT"),
		IdleTimeout:                 v.GetDuration("IDLE_TIMEOUT"),
		ShutdownTimeout:             v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
