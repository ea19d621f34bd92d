// File: cmd/pbxlive/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// pbxlive serves live PBX queue and call telemetry to browser dashboards
// over WebSocket. Snapshots come from a YAML/JSON file rewritten by a
// collector, or from a Redis key the collector publishes to.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/internal/config"
	"github.com/momentics/pbxlive/internal/logging"
	"github.com/momentics/pbxlive/server"
	"github.com/momentics/pbxlive/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath   string
	port         int
	pollInterval int
	logLevel     string
	logFormat    string
	showVersion  bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, *pflag.FlagSet, error) {
	var f flags
	fs := pflag.NewFlagSet("pbxlive", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to YAML config file")
	fs.IntVarP(&f.port, "port", "p", 0, "listen port (overrides config)")
	fs.IntVar(&f.pollInterval, "poll-interval", 0, "telemetry poll interval in seconds (overrides config)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: json or console")
	fs.BoolVar(&f.showVersion, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return &f, fs, nil
}

// loadConfig reads the file, then env, then explicit flags, then defaults.
func loadConfig(f *flags, fs *pflag.FlagSet, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("poll-interval") {
		cfg.Server.PollIntervalSeconds = f.pollInterval
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// closer is implemented by providers holding connections.
type closer interface{ Close() error }

func newProvider(ctx context.Context, cfg config.TelemetryConfig, logger zerolog.Logger) (telemetry.Provider, error) {
	switch cfg.Provider {
	case config.ProviderFile:
		logger.Info().Str("provider", cfg.Provider).Str("file", cfg.File).Msg("telemetry provider configured")
		return telemetry.NewFileProvider(cfg.File), nil
	case config.ProviderRedis:
		p := telemetry.NewRedisProvider(&telemetry.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			MaxAge:   cfg.Redis.MaxAge(),
		}, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			// The poller retries every tick, so an unreachable Redis is not fatal.
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet")
		}
		logger.Info().Str("provider", cfg.Provider).Str("addr", cfg.Redis.Addr).Str("key", cfg.Redis.Key).Msg("telemetry provider configured")
		return p, nil
	}
	return nil, fmt.Errorf("unknown telemetry provider %q", cfg.Provider)
}

func serverConfig(cfg *config.Config) *server.Config {
	sc := server.DefaultConfig()
	sc.ListenAddr = cfg.Server.Addr()
	sc.PollInterval = cfg.Server.PollInterval()
	sc.MaxFrameSize = cfg.Server.MaxFrameSize
	sc.MaxConnections = cfg.Server.MaxConnections
	sc.MaxPendingBytes = cfg.Server.MaxPendingBytes
	sc.HandshakeLimit = cfg.Server.HandshakeLimit
	return sc
}

func run(args []string, stdout, stderr io.Writer) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if f.showVersion {
		fmt.Fprintf(stdout, "pbxlive %s\n", version)
		return nil
	}

	cfg, err := loadConfig(f, fs, os.LookupEnv)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	if c, ok := provider.(closer); ok {
		defer c.Close()
	}

	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	control.RegisterRuntimeProbes(probes)

	srv, err := server.New(serverConfig(cfg), provider,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithProbes(probes),
	)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	runErr := srv.Run(ctx)

	logger.Info().
		Interface("metrics", metrics.GetSnapshot()).
		Interface("probes", probes.DumpState()).
		Msg("shutdown state")
	return runErr
}
