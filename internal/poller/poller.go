// File: internal/poller/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package poller schedules telemetry polls on a fixed wall-clock interval
// and turns each successful snapshot into an update message. It owns no
// goroutine: the server's event loop asks when the next tick is due and
// calls Poll when it is.
package poller

import (
	"context"
	"time"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/internal/message"
	"github.com/momentics/pbxlive/telemetry"
	"github.com/rs/zerolog"
)

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5s)
	Timeout  time.Duration // Provider call timeout, 0 disables (default: 2s)

	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  2 * time.Second,
	}
}

// Poller tracks the next due tick and fetches snapshots.
type Poller struct {
	cfg      Config
	provider telemetry.Provider
	metrics  *control.MetricsRegistry
	logger   zerolog.Logger
	now      func() time.Time
	next     time.Time
}

// New creates a poller whose first tick is one interval from now.
// A non-positive interval falls back to the default.
func New(cfg Config, provider telemetry.Provider, metrics *control.MetricsRegistry, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Poller{
		cfg:      cfg,
		provider: provider,
		metrics:  metrics,
		logger:   logger.With().Str("component", "poller").Logger(),
		now:      now,
		next:     now().Add(cfg.Interval),
	}
}

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

// Due reports whether a tick should run at t.
func (p *Poller) Due(t time.Time) bool { return !t.Before(p.next) }

// NextIn returns how long until the next tick, never negative.
func (p *Poller) NextIn(t time.Time) time.Duration {
	d := p.next.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// Poll runs one tick: it reschedules the next tick, calls the provider,
// and returns the encoded update. On any failure the tick is skipped and
// ok is false; the next tick retries.
func (p *Poller) Poll(ctx context.Context) (payload []byte, ok bool) {
	start := p.now()
	p.next = start.Add(p.cfg.Interval)
	for !p.next.After(start) {
		p.next = p.next.Add(p.cfg.Interval)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	snap, err := p.provider.GetSnapshot(ctx)
	if err == nil && snap == nil {
		err = telemetry.ErrNoSnapshot
	}
	if err != nil {
		p.metrics.Inc(control.BroadcastSkipped)
		p.logger.Warn().Err(err).Msg("telemetry poll failed, skipping tick")
		return nil, false
	}
	if snap.Timestamp.IsZero() {
		stamped := *snap
		stamped.Timestamp = start
		snap = &stamped
	}

	payload, err = message.Update(snap)
	if err != nil {
		p.metrics.Inc(control.BroadcastSkipped)
		p.logger.Warn().Err(err).Msg("encode update, skipping tick")
		return nil, false
	}
	p.metrics.Inc(control.BroadcastTicks)
	p.logger.Debug().
		Int("queues", len(snap.Queues)).
		Int("active_calls", len(snap.ActiveCalls)).
		Dur("took", p.now().Sub(start)).
		Msg("telemetry polled")
	return payload, true
}
