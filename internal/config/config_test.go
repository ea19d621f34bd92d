package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pbxlive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	path := writeTempFile(t, `
server:
  host: 127.0.0.1
  port: 9100
  poll_interval_seconds: 2
telemetry:
  provider: redis
  redis:
    addr: redis:6379
    db: 2
    max_age_seconds: 30
log:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr())
	assert.Equal(t, 2*time.Second, cfg.Server.PollInterval())
	assert.Equal(t, ProviderRedis, cfg.Telemetry.Provider)
	assert.Equal(t, "redis:6379", cfg.Telemetry.Redis.Addr)
	assert.Equal(t, 2, cfg.Telemetry.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.Redis.MaxAge())
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "secret123")
	path := writeTempFile(t, `
telemetry:
  provider: redis
  redis:
    password: ${TEST_REDIS_PASSWORD}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret123", cfg.Telemetry.Redis.Password)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeTempFile(t, "server: [unterminated"))
	assert.ErrorContains(t, err, "parse config yaml")
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Config{}, *cfg)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.PollInterval())
	assert.EqualValues(t, 1<<20, cfg.Server.MaxFrameSize)
	assert.Equal(t, 1024, cfg.Server.MaxConnections)
	assert.Equal(t, 4<<20, cfg.Server.MaxPendingBytes)
	assert.Equal(t, 8192, cfg.Server.HandshakeLimit)
	assert.Equal(t, ProviderFile, cfg.Telemetry.Provider)
	assert.Equal(t, DefaultSnapshotFile, cfg.Telemetry.File)
	assert.Equal(t, DefaultRedisKey, cfg.Telemetry.Redis.Key)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultsKeepExplicitValues(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 9000, MaxConnections: 5}}
	cfg.ApplyDefaults()
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.MaxConnections)
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvPort:          "9200",
		EnvPollInterval:  "10",
		EnvLogLevel:      "warn",
		EnvRedisAddr:     "cache:6380",
		EnvRedisPassword: "pw",
		EnvRedisDB:       "3",
	}))
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.PollIntervalSeconds)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "cache:6380", cfg.Telemetry.Redis.Addr)
	assert.Equal(t, "pw", cfg.Telemetry.Redis.Password)
	assert.Equal(t, 3, cfg.Telemetry.Redis.DB)
}

func TestApplyEnvIgnoresEmpty(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 9000}}
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{EnvPort: ""})))
	assert.Equal(t, 9000, cfg.Server.Port)
	require.NoError(t, cfg.ApplyEnv(noEnv))
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	for _, key := range []string{EnvPort, EnvPollInterval, EnvRedisDB} {
		cfg := &Config{}
		err := cfg.ApplyEnv(envMap(map[string]string{key: "many"}))
		assert.ErrorContains(t, err, key)
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv(EnvPort, "9300")
	path := writeTempFile(t, "server:\n  port: 9100\n")
	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)
	assert.Equal(t, 9300, cfg.Server.Port, "env wins over file")
	assert.Equal(t, DefaultPollIntervalSeconds, cfg.Server.PollIntervalSeconds)

	path = writeTempFile(t, "log:\n  format: xml\n")
	_, err = LoadAndValidate(path)
	assert.ErrorContains(t, err, "validate config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"poll interval", func(c *Config) { c.Server.PollIntervalSeconds = -5 }, "poll_interval_seconds"},
		{"frame size", func(c *Config) { c.Server.MaxFrameSize = 10 }, "max_frame_size"},
		{"connections", func(c *Config) { c.Server.MaxConnections = -1 }, "max_connections"},
		{"pending", func(c *Config) { c.Server.MaxPendingBytes = -1 }, "max_pending_bytes"},
		{"handshake", func(c *Config) { c.Server.HandshakeLimit = 16 }, "handshake_limit"},
		{"provider", func(c *Config) { c.Telemetry.Provider = "ami" }, "telemetry.provider"},
		{"file missing", func(c *Config) { c.Telemetry.File = "" }, "telemetry.file"},
		{"redis addr", func(c *Config) {
			c.Telemetry.Provider = ProviderRedis
			c.Telemetry.Redis.Addr = ""
		}, "telemetry.redis.addr"},
		{"redis db", func(c *Config) {
			c.Telemetry.Provider = ProviderRedis
			c.Telemetry.Redis.DB = -1
		}, "telemetry.redis.db"},
		{"redis max age", func(c *Config) {
			c.Telemetry.Provider = ProviderRedis
			c.Telemetry.Redis.MaxAgeSeconds = -1
		}, "max_age_seconds"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
