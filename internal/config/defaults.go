// File: internal/config/defaults.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package config

// Default values for optional configuration fields.
const (
	DefaultPort                = 8080
	DefaultPollIntervalSeconds = 5
	DefaultMaxFrameSize        = 1 << 20
	DefaultMaxConnections      = 1024
	DefaultMaxPendingBytes     = 4 << 20
	DefaultHandshakeLimit      = 8192
	DefaultProvider            = ProviderFile
	DefaultSnapshotFile        = "snapshot.yaml"
	DefaultRedisAddr           = "localhost:6379"
	DefaultRedisKey            = "pbxlive:snapshot"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
)

// Provider names.
const (
	ProviderFile  = "file"
	ProviderRedis = "redis"
)

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.PollIntervalSeconds == 0 {
		c.Server.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.Server.MaxFrameSize == 0 {
		c.Server.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = DefaultMaxConnections
	}
	if c.Server.MaxPendingBytes == 0 {
		c.Server.MaxPendingBytes = DefaultMaxPendingBytes
	}
	if c.Server.HandshakeLimit == 0 {
		c.Server.HandshakeLimit = DefaultHandshakeLimit
	}

	// Telemetry defaults
	if c.Telemetry.Provider == "" {
		c.Telemetry.Provider = DefaultProvider
	}
	if c.Telemetry.Provider == ProviderFile && c.Telemetry.File == "" {
		c.Telemetry.File = DefaultSnapshotFile
	}
	if c.Telemetry.Redis.Addr == "" {
		c.Telemetry.Redis.Addr = DefaultRedisAddr
	}
	if c.Telemetry.Redis.Key == "" {
		c.Telemetry.Redis.Key = DefaultRedisKey
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
