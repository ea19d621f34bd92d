// File: internal/config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package config loads the daemon configuration: a YAML file with ${VAR}
// expansion, then environment overrides, then defaults, then validation.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig covers the listener and event loop.
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxFrameSize        int64  `yaml:"max_frame_size"`
	MaxConnections      int    `yaml:"max_connections"`
	MaxPendingBytes     int    `yaml:"max_pending_bytes"`
	HandshakeLimit      int    `yaml:"handshake_limit"`
}

// TelemetryConfig selects and configures the snapshot provider.
type TelemetryConfig struct {
	Provider string      `yaml:"provider"`
	File     string      `yaml:"file"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis snapshot provider.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	Key           string `yaml:"key"`
	MaxAgeSeconds int    `yaml:"max_age_seconds"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PollInterval returns the poll interval as a duration.
func (s ServerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// MaxAge returns the snapshot age limit as a duration; 0 disables the check.
func (r RedisConfig) MaxAge() time.Duration {
	return time.Duration(r.MaxAgeSeconds) * time.Second
}

// Load reads a YAML config file and expands environment variables.
// An empty path yields an empty config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads config, applies env overrides and defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
