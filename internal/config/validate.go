// File: internal/config/validate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.PollIntervalSeconds < 1 {
		return errors.New("server.poll_interval_seconds must be >= 1")
	}
	if c.Server.MaxFrameSize < 125 {
		return errors.New("server.max_frame_size must be >= 125")
	}
	if c.Server.MaxConnections < 1 {
		return errors.New("server.max_connections must be >= 1")
	}
	if c.Server.MaxPendingBytes < 0 {
		return errors.New("server.max_pending_bytes must be >= 0")
	}
	if c.Server.HandshakeLimit < 256 {
		return errors.New("server.handshake_limit must be >= 256")
	}

	switch c.Telemetry.Provider {
	case ProviderFile:
		if c.Telemetry.File == "" {
			return errors.New("telemetry.file is required for the file provider")
		}
	case ProviderRedis:
		if c.Telemetry.Redis.Addr == "" {
			return errors.New("telemetry.redis.addr is required for the redis provider")
		}
		if c.Telemetry.Redis.DB < 0 {
			return errors.New("telemetry.redis.db must be >= 0")
		}
		if c.Telemetry.Redis.MaxAgeSeconds < 0 {
			return errors.New("telemetry.redis.max_age_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("telemetry.provider must be %q or %q, got %q", ProviderFile, ProviderRedis, c.Telemetry.Provider)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
