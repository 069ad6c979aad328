package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Load reads ~/.aimacademy/config.yaml, applies an optional .env file and
// environment overrides, and validates the result
func Load() (*LocalConfig, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg, err := LoadLocalConfig()
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files. Missing files are
// skipped; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		slog.Debug("loaded environment file", "path", p)
	}
	return nil
}

// ApplyEnv overrides config fields from environment variables
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("AIMACADEMY_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("AIMACADEMY_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = strings.ToLower(getEnv("AIMACADEMY_LOG_LEVEL", cfg.Daemon.LogLevel))
	cfg.Storage.Driver = strings.ToLower(getEnv("AIMACADEMY_STORAGE", cfg.Storage.Driver))
	cfg.Storage.Path = getEnv("AIMACADEMY_STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Queue.URL = getEnv("RABBITMQ_URL", cfg.Queue.URL)
	cfg.Queue.Enabled = getEnvBool("AIMACADEMY_QUEUE", cfg.Queue.Enabled)
	cfg.Content.Path = getEnv("AIMACADEMY_CONTENT", cfg.Content.Path)
}

var validate = validator.New()

// Validate checks field constraints
func (c *LocalConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		slog.Warn("ignoring invalid integer env", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("ignoring invalid boolean env", "key", key, "value", value)
	}
	return defaultValue
}
