// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package logging builds the daemon's zerolog logger.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the level and output format ("json" or "console").
type Config struct {
	Level  string
	Format string
}

// New returns a logger writing to w with a timestamp on every event.
func New(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	switch cfg.Format {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: must be json or console", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "pbxlive").Logger(), nil
}
