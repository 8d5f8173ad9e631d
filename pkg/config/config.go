// Package config loads the blepeer configuration file and turns it into a
// logger and session options.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/session"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
//
// Zero values are replaced by the default tag, both in DefaultConfig and
// after Load, so a key set to 0 or "" reads as unset.
type Config struct {
	LogLevel string `yaml:"log_level" default:"warn"`

	// Name is the advertised local name in the peripheral role.
	Name string `yaml:"name" default:"BLE Peer"`

	ServiceUUID        string `yaml:"service_uuid" default:"12345678-1234-1234-1234-123456789ABC"`
	CharacteristicUUID string `yaml:"characteristic_uuid" default:"12345678-1234-1234-1234-123456789DEF"`

	MaxMessageLength     int `yaml:"max_message_length" default:"512"`
	HistoryCapacity      int `yaml:"history_capacity" default:"100"`
	MaxAdvertisementSize int `yaml:"max_advertisement_size" default:"28"`

	// StartupDelay and BatchInterval cannot be disabled: 0 means the
	// 500ms default.
	StartupDelay  time.Duration `yaml:"startup_delay" default:"500ms"`
	BatchInterval time.Duration `yaml:"batch_interval" default:"500ms"`
	ScanTimeout   time.Duration `yaml:"scan_timeout" default:"10s"`

	NoAutoAdvertise bool `yaml:"no_auto_advertise"`
	NoAutoRestart   bool `yaml:"no_auto_restart"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	// Keys present but empty fall back to defaults as well.
	defaults.SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the sessions cannot recover from.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := uuid.Parse(c.ServiceUUID); err != nil {
		errs = append(errs, fmt.Errorf("service_uuid: %w", err))
	}
	if _, err := uuid.Parse(c.CharacteristicUUID); err != nil {
		errs = append(errs, fmt.Errorf("characteristic_uuid: %w", err))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("max_message_length must be positive, got %d", c.MaxMessageLength))
	}
	if c.HistoryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity))
	}
	if c.BatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("batch_interval must be positive, got %s", c.BatchInterval))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, Info when it does not parse.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// SessionOptions maps the configuration onto session options.
func (c *Config) SessionOptions() *session.Options {
	return &session.Options{
		ServiceUUID:          c.ServiceUUID,
		CharacteristicUUID:   c.CharacteristicUUID,
		MaxMessageLength:     c.MaxMessageLength,
		HistoryCapacity:      c.HistoryCapacity,
		AdvertisedName:       c.Name,
		MaxAdvertisementSize: c.MaxAdvertisementSize,
		StartupDelay:         c.StartupDelay,
		BatchInterval:        c.BatchInterval,
		DisableAutoAdvertise: c.NoAutoAdvertise,
		DisableAutoRestart:   c.NoAutoRestart,
	}
}
