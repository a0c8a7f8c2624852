package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8084 {
		t.Errorf("Server.Port = %d, want 8084", cfg.Server.Port)
	}
	if cfg.Data.CSVFile != "" {
		t.Errorf("Data.CSVFile = %q, want empty", cfg.Data.CSVFile)
	}
	if cfg.Engine.ShardSize != 10000 {
		t.Errorf("Engine.ShardSize = %d, want 10000", cfg.Engine.ShardSize)
	}
	if cfg.Address() != "localhost:8084" {
		t.Errorf("Address() = %q", cfg.Address())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("DATA_CSV_FILE", "allocations.csv")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("ENGINE_WORKERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 3s", cfg.Server.ReadTimeout)
	}
	if cfg.Data.CSVFile != "allocations.csv" {
		t.Errorf("Data.CSVFile = %q", cfg.Data.CSVFile)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("Security.AllowedOrigins = %v", cfg.Security.AllowedOrigins)
	}
	if cfg.Engine.Workers != 2 {
		t.Errorf("Engine.Workers = %d", cfg.Engine.Workers)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7000
  write_timeout: 45s
logger:
  format: text
data:
  csv_file: from-file.csv
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATA_CSV_FILE", "from-env.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("Server.WriteTimeout = %v", cfg.Server.WriteTimeout)
	}
	if cfg.Logger.Format != "text" {
		t.Errorf("Logger.Format = %q", cfg.Logger.Format)
	}
	if cfg.Data.CSVFile != "from-env.csv" {
		t.Errorf("env should win over file, got %q", cfg.Data.CSVFile)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("unset values keep defaults, got host %q", cfg.Server.Host)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port too large", "SERVER_PORT", "70000"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"zero rps", "SECURITY_RATE_LIMIT_RPS", "0"},
		{"zero shard size", "ENGINE_SHARD_SIZE", "0"},
		{"not a number", "SERVER_PORT", "eighty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}
