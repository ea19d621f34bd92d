// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/reactor"
	"github.com/rs/zerolog"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the base logger; the server derives its component loggers from it.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics shares a counter registry with the caller.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(s *Server) {
		s.metrics = mr
	}
}

// WithProbes shares a debug probe registry with the caller.
func WithProbes(dp *control.DebugProbes) Option {
	return func(s *Server) {
		s.probes = dp
	}
}

// WithReactor replaces the platform reactor.
func WithReactor(r reactor.Reactor) Option {
	return func(s *Server) {
		s.reactor = r
	}
}

// WithListener supplies an already bound listening socket.
func WithListener(l Acceptor) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// WithClock overrides the wall clock used for poll scheduling.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}
