// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server owns the listener, the reactor, and the connection registry, and
// drives them from a single goroutine. Only Shutdown is safe to call from
// other goroutines.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/internal/broadcast"
	"github.com/momentics/pbxlive/internal/poller"
	"github.com/momentics/pbxlive/internal/router"
	"github.com/momentics/pbxlive/internal/session"
	"github.com/momentics/pbxlive/internal/transport"
	"github.com/momentics/pbxlive/reactor"
	"github.com/momentics/pbxlive/telemetry"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrNoProvider     = errors.New("server: telemetry provider is required")
)

// Server is the live telemetry WebSocket server.
type Server struct {
	cfg      Config
	provider telemetry.Provider
	logger   zerolog.Logger
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	now      func() time.Time

	registry    *session.Registry
	router      *router.Router
	poller      *poller.Poller
	broadcaster *broadcast.Broadcaster

	mu        sync.Mutex
	listener  Acceptor
	reactor   reactor.Reactor
	listening bool

	events   []reactor.Event
	scratch  []byte
	interest map[int]reactor.Events

	running  atomic.Bool
	stopping atomic.Bool

	// view is the registry summary the loop publishes after each step.
	view atomic.Pointer[registryView]
}

type registryView struct {
	connections int
	channels    map[string]int
}

// New builds a server. It does not bind; see Listen and Run.
func New(cfg *Config, provider telemetry.Provider, opts ...Option) (*Server, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:      withDefaults(*cfg),
		provider: provider,
		logger:   zerolog.Nop(),
		now:      time.Now,
		interest: make(map[int]reactor.Events),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}
	if s.probes == nil {
		s.probes = control.NewDebugProbes()
	}

	base := s.logger
	s.logger = base.With().Str("component", "server").Logger()
	s.registry = session.NewRegistry(s.cfg.MaxPendingBytes)
	s.router = router.New(s.registry, provider, s.metrics, base)
	s.poller = poller.New(poller.Config{
		Interval: s.cfg.PollInterval,
		Timeout:  s.cfg.PollTimeout,
		Now:      s.now,
	}, provider, s.metrics, base)
	s.broadcaster = broadcast.New(s.registry, s.metrics, base)
	s.events = make([]reactor.Event, s.cfg.EventBatch)
	s.scratch = make([]byte, s.cfg.ReadBufferSize)

	s.publishView()
	s.probes.RegisterProbe("connections", func() any { return s.view.Load().connections })
	s.probes.RegisterProbe("channels", func() any { return s.view.Load().channels })
	return s, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if cfg.HandshakeLimit <= 0 {
		cfg.HandshakeLimit = def.HandshakeLimit
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = def.ReadBufferSize
	}
	if cfg.EventBatch <= 0 {
		cfg.EventBatch = def.EventBatch
	}
	return cfg
}

// Listen binds the listening socket and creates the reactor unless they
// were supplied as options. Calling it again is a no-op.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return nil
	}
	if s.listener == nil {
		l, err := transport.Listen(s.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
		}
		s.listener = l
	}
	if s.reactor == nil {
		r, err := reactor.New()
		if err != nil {
			s.listener.Close()
			return fmt.Errorf("server: create reactor: %w", err)
		}
		s.reactor = r
	}
	if err := s.reactor.Add(s.listener.Fd(), reactor.EventRead); err != nil {
		return fmt.Errorf("server: watch listener: %w", err)
	}
	s.listening = true
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled or Shutdown is called, then closes
// every connection without a Close frame and releases the listener and
// reactor.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if err := s.Listen(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.Shutdown)
	defer stop()

	s.logger.Info().
		Str("addr", s.listener.Addr().String()).
		Dur("poll_interval", s.poller.Interval()).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("server started")

	var err error
	for !s.stopping.Load() {
		if err = s.step(ctx); err != nil {
			break
		}
	}
	s.teardown()
	return err
}

// Shutdown asks Run to finish its current iteration and exit.
func (s *Server) Shutdown() {
	s.stopping.Store(true)
	s.mu.Lock()
	r := s.reactor
	s.mu.Unlock()
	if r != nil {
		_ = r.Wake()
	}
}

func (s *Server) teardown() {
	open := s.registry.Len()
	s.registry.CloseAll()
	s.metrics.Set(control.ConnectionsOpen, 0)
	s.publishView()
	if err := s.listener.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close listener")
	}
	if err := s.reactor.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close reactor")
	}
	s.logger.Info().Int("closed_connections", open).Msg("server stopped")
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// publishView copies the registry summary for probe readers. Only the loop
// goroutine touches the registry itself.
func (s *Server) publishView() {
	s.view.Store(&registryView{
		connections: s.registry.Len(),
		channels:    s.registry.Channels(),
	})
}

// Probes returns the server's debug probes. DumpState is safe from any
// goroutine; it reports the state as of the last completed loop step.
func (s *Server) Probes() *control.DebugProbes { return s.probes }
