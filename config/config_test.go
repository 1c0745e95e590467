// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Glow: GlowConfig{
			AppID:    "test-app-id",
			Username: "fred@example.com",
			Password: "secret",
			BaseURL:  "https://api.glowmarkt.com/api/v0-1",
			Timeout:  10 * time.Second,
		},
		InfluxDB: InfluxDBConfig{
			URL:          "http://localhost:8086",
			Token:        "test-token",
			Organization: "test-org",
			Bucket:       "test-bucket",
		},
		Poller: PollerConfig{
			ElectricityInterval: 30 * time.Second,
			GasInterval:         30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing app id", func(c *Config) { c.Glow.AppID = "" }, true},
		{"missing username", func(c *Config) { c.Glow.Username = "" }, true},
		{"missing password", func(c *Config) { c.Glow.Password = "" }, true},
		{"missing influxdb url", func(c *Config) { c.InfluxDB.URL = "" }, true},
		{"short influxdb token", func(c *Config) { c.InfluxDB.Token = "short" }, true},
		{"missing influxdb org", func(c *Config) { c.InfluxDB.Organization = "" }, true},
		{"missing influxdb bucket", func(c *Config) { c.InfluxDB.Bucket = "" }, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"electricity interval too short", func(c *Config) { c.Poller.ElectricityInterval = 100 * time.Millisecond }, true},
		{"electricity interval too long", func(c *Config) { c.Poller.ElectricityInterval = 2 * time.Hour }, true},
		{"gas interval too short", func(c *Config) { c.Poller.GasInterval = time.Second }, true},
		{"gas interval below electricity", func(c *Config) {
			c.Poller.ElectricityInterval = 45 * time.Minute
			c.Poller.GasInterval = 30 * time.Minute
		}, true},
		{"negative rate limit", func(c *Config) { c.Glow.RateLimit = -1 }, true},
		{"http to a public host", func(c *Config) { c.InfluxDB.URL = "http://influx.example.com:8086" }, true},
		{"http to a private host", func(c *Config) { c.InfluxDB.URL = "http://192.168.1.10:8086" }, false},
		{"https to a public host", func(c *Config) { c.InfluxDB.URL = "https://influx.example.com:8086" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
glow:
  app_id: test-app-id
  username: fred@example.com
  password: secret
influxdb:
  url: http://localhost:8086
  token: test-token
  organization: test-org
  bucket: test-bucket
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Glow.BaseURL == "" {
		t.Error("base URL default was not applied")
	}
	if cfg.Glow.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want the 10s default", cfg.Glow.Timeout)
	}
	if cfg.Poller.ElectricityInterval != 30*time.Second {
		t.Errorf("electricity interval = %v, want 30s default", cfg.Poller.ElectricityInterval)
	}
	if cfg.Poller.GasInterval != 30*time.Minute {
		t.Errorf("gas interval = %v, want 30m default", cfg.Poller.GasInterval)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info default", cfg.Logging.Level)
	}
	if cfg.Cache.MaxEntries != 10000 {
		t.Errorf("cache max entries = %d, want 10000 default", cfg.Cache.MaxEntries)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfigFile(t, `
glow:
  app_id: file-app-id
  username: file-user
  password: file-pass
influxdb:
  url: http://localhost:8086
  token: file-token
  organization: file-org
  bucket: file-bucket
`)

	t.Setenv("GLOW_APP_ID", "env-app-id")
	t.Setenv("GLOW_USERNAME", "env-user")
	t.Setenv("GLOW_PASSWORD", "env-pass")
	t.Setenv("INFLUXDB_TOKEN", "env-token-long-enough")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Glow.AppID != "env-app-id" {
		t.Errorf("app ID = %q, want the environment override", cfg.Glow.AppID)
	}
	creds := cfg.Credentials()
	if creds.Username != "env-user" || creds.Password != "env-pass" {
		t.Errorf("credentials = %+v, want the environment overrides", creds)
	}
	if cfg.InfluxDB.Token != "env-token-long-enough" {
		t.Errorf("token = %q, want the environment override", cfg.InfluxDB.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "glow: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("expected an error for invalid YAML")
	}
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}
