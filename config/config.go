// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package config provides configuration management for the Glow data logger.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/soothill/glow-data-logger/glow"
)

// Config represents the application configuration
type Config struct {
	Glow          GlowConfig          `yaml:"glow" validate:"required"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb" validate:"required"`
	Poller        PollerConfig        `yaml:"poller"`
	Cache         CacheConfig         `yaml:"cache"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// GlowConfig holds the metering service credentials and connection settings
type GlowConfig struct {
	AppID     string        `yaml:"app_id" validate:"required"`
	Username  string        `yaml:"username" validate:"required"`
	Password  string        `yaml:"password" validate:"required"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit" validate:"gte=0"`
}

// InfluxDBConfig holds InfluxDB connection settings
type InfluxDBConfig struct {
	URL          string `yaml:"url" validate:"required,url"`
	Token        string `yaml:"token" validate:"required,min=8"`
	Organization string `yaml:"organization" validate:"required"`
	Bucket       string `yaml:"bucket" validate:"required"`
}

// PollerConfig holds the usage polling settings. Electricity updates every
// few seconds on the service side; gas meters only report every 30 minutes.
type PollerConfig struct {
	ElectricityInterval time.Duration `yaml:"electricity_interval"`
	GasInterval         time.Duration `yaml:"gas_interval"`
}

// CacheConfig holds the local fallback cache settings
type CacheConfig struct {
	Directory  string `yaml:"directory"`
	MaxEntries int    `yaml:"max_entries" validate:"gte=0"`
}

// NotificationsConfig holds Slack alerting settings
type NotificationsConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" validate:"omitempty,url"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Credentials builds the client credentials from the configured values.
func (c *Config) Credentials() glow.Credentials {
	return glow.Credentials{
		AppID:    c.Glow.AppID,
		Username: c.Glow.Username,
		Password: c.Glow.Password,
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvironmentOverrides() {
	if appID := os.Getenv("GLOW_APP_ID"); appID != "" {
		c.Glow.AppID = appID
	}
	if username := os.Getenv("GLOW_USERNAME"); username != "" {
		c.Glow.Username = username
	}
	if password := os.Getenv("GLOW_PASSWORD"); password != "" {
		c.Glow.Password = password
	}
	if url := os.Getenv("INFLUXDB_URL"); url != "" {
		c.InfluxDB.URL = url
	}
	if token := os.Getenv("INFLUXDB_TOKEN"); token != "" {
		c.InfluxDB.Token = token
	}
	if org := os.Getenv("INFLUXDB_ORG"); org != "" {
		c.InfluxDB.Organization = org
	}
	if bucket := os.Getenv("INFLUXDB_BUCKET"); bucket != "" {
		c.InfluxDB.Bucket = bucket
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		c.Notifications.SlackWebhookURL = webhook
	}
	if interval := os.Getenv("GLOW_ELECTRICITY_INTERVAL"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Poller.ElectricityInterval = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse GLOW_ELECTRICITY_INTERVAL '%s': %v\n", interval, parseErr)
		}
	}
	if interval := os.Getenv("GLOW_GAS_INTERVAL"); interval != "" {
		duration, parseErr := time.ParseDuration(interval)
		if parseErr == nil {
			c.Poller.GasInterval = duration
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse GLOW_GAS_INTERVAL '%s': %v\n", interval, parseErr)
		}
	}
}

// setDefaults sets default values for configuration fields if not provided
func (c *Config) setDefaults() {
	if c.Glow.BaseURL == "" {
		c.Glow.BaseURL = glow.DefaultBaseURL
	}
	if c.Glow.Timeout == 0 {
		c.Glow.Timeout = glow.DefaultTimeout
	}
	if c.Poller.ElectricityInterval == 0 {
		c.Poller.ElectricityInterval = 30 * time.Second
	}
	if c.Poller.GasInterval == 0 {
		c.Poller.GasInterval = 30 * time.Minute
	}
	if c.Cache.Directory == "" {
		c.Cache.Directory = "/var/lib/glow-data-logger/cache"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q validation", strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return err
	}

	if validateErr := c.validateURLSecurity(); validateErr != nil {
		return validateErr
	}

	return c.validateIntervals()
}

// validateURLSecurity checks that credential-carrying URLs use HTTPS for
// non-local connections
func (c *Config) validateURLSecurity() error {
	for field, raw := range map[string]string{
		"glow.base_url": c.Glow.BaseURL,
		"influxdb.url":  c.InfluxDB.URL,
	} {
		parsedURL, parseErr := url.Parse(raw)
		if parseErr != nil {
			return fmt.Errorf("%s is not a valid URL: %w", field, parseErr)
		}
		if parsedURL.Scheme != "http" {
			continue
		}
		hostname := strings.ToLower(parsedURL.Hostname())
		isLocal := hostname == "localhost" ||
			hostname == "127.0.0.1" ||
			hostname == "::1" ||
			strings.HasPrefix(hostname, "192.168.") ||
			strings.HasPrefix(hostname, "10.") ||
			strings.HasPrefix(hostname, "172.")
		if !isLocal {
			return fmt.Errorf("%s must use HTTPS for non-local connections (got %s). Using HTTP transmits credentials in plaintext and is a security risk", field, parsedURL.Scheme)
		}
	}
	return nil
}

// validateIntervals bounds the polling cadence
func (c *Config) validateIntervals() error {
	if c.Poller.ElectricityInterval < time.Second {
		return fmt.Errorf("poller.electricity_interval must be at least 1 second")
	}
	if c.Poller.ElectricityInterval > time.Hour {
		return fmt.Errorf("poller.electricity_interval must not exceed 1 hour")
	}
	if c.Poller.GasInterval < time.Minute {
		return fmt.Errorf("poller.gas_interval must be at least 1 minute")
	}
	if c.Poller.GasInterval > 24*time.Hour {
		return fmt.Errorf("poller.gas_interval must not exceed 24 hours")
	}
	if c.Poller.GasInterval < c.Poller.ElectricityInterval {
		return fmt.Errorf("poller.gas_interval should be greater than or equal to poller.electricity_interval")
	}
	return nil
}
