package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv("AIMACADEMY_PORT", "9000")
	t.Setenv("AIMACADEMY_STORAGE", "SQLite")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/aim")
	t.Setenv("RABBITMQ_URL", "amqp://mq:5672/")
	t.Setenv("AIMACADEMY_QUEUE", "true")
	t.Setenv("AIMACADEMY_LOG_LEVEL", "DEBUG")

	cfg := DefaultLocalConfig()
	ApplyEnv(cfg)

	if cfg.Daemon.Port != 9000 {
		t.Errorf("Port = %d; want 9000", cfg.Daemon.Port)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Driver = %q; want sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.DatabaseURL != "postgres://u:p@db/aim" {
		t.Errorf("DatabaseURL = %q", cfg.Storage.DatabaseURL)
	}
	if !cfg.Queue.Enabled || cfg.Queue.URL != "amqp://mq:5672/" {
		t.Errorf("Queue = %+v", cfg.Queue)
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want debug", cfg.Daemon.LogLevel)
	}
}

func TestApplyEnv_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("AIMACADEMY_PORT", "not-a-port")
	t.Setenv("AIMACADEMY_QUEUE", "maybe")

	cfg := DefaultLocalConfig()
	ApplyEnv(cfg)

	if cfg.Daemon.Port != 7433 {
		t.Errorf("Port = %d; want default 7433", cfg.Daemon.Port)
	}
	if cfg.Queue.Enabled {
		t.Error("Queue.Enabled should keep its default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LocalConfig)
		wantErr string
	}{
		{"defaults", func(*LocalConfig) {}, ""},
		{"unknown driver", func(c *LocalConfig) { c.Storage.Driver = "mongo" }, "Driver"},
		{"postgres without url", func(c *LocalConfig) { c.Storage.Driver = DriverPostgres }, "DatabaseURL"},
		{"postgres with url", func(c *LocalConfig) {
			c.Storage.Driver = DriverPostgres
			c.Storage.DatabaseURL = "postgres://localhost/aim"
		}, ""},
		{"queue without url", func(c *LocalConfig) {
			c.Queue.Enabled = true
			c.Queue.URL = ""
		}, "URL"},
		{"bad port", func(c *LocalConfig) { c.Daemon.Port = 70000 }, "Port"},
		{"bad log level", func(c *LocalConfig) { c.Daemon.LogLevel = "trace" }, "LogLevel"},
		{"negative rate limit", func(c *LocalConfig) { c.Daemon.RateLimit = -1 }, "RateLimit"},
		{"zero attempts", func(c *LocalConfig) { c.Transcripts.MaxAttempts = 0 }, "MaxAttempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLocalConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v; want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("AIMACADEMY_TEST_DOTENV=from-file\nAIMACADEMY_TEST_PRESET=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AIMACADEMY_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("AIMACADEMY_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("AIMACADEMY_TEST_DOTENV"); got != "from-file" {
		t.Errorf("AIMACADEMY_TEST_DOTENV = %q; want from-file", got)
	}
	if got := os.Getenv("AIMACADEMY_TEST_PRESET"); got != "from-env" {
		t.Errorf("AIMACADEMY_TEST_PRESET = %q; existing env should win", got)
	}
}
