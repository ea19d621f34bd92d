// File: internal/config/env.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

import (
	"fmt"
	"strconv"
)

// Environment variables that override file values.
const (
	EnvPort          = "PBXLIVE_PORT"
	EnvPollInterval  = "PBXLIVE_POLL_INTERVAL"
	EnvLogLevel      = "PBXLIVE_LOG_LEVEL"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"
)

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = n
	}
	if v, ok := get(EnvPollInterval); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.Server.PollIntervalSeconds = n
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := get(EnvRedisAddr); ok {
		c.Telemetry.Redis.Addr = v
	}
	if v, ok := get(EnvRedisPassword); ok {
		c.Telemetry.Redis.Password = v
	}
	if v, ok := get(EnvRedisDB); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		c.Telemetry.Redis.DB = n
	}
	return nil
}
