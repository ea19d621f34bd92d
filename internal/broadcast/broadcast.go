// File: internal/broadcast/broadcast.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package broadcast fans one update out to every subscribed open
// connection. Delivery is best effort: a failed write is reported to the
// caller, which drops that connection, and never stops delivery to the rest.
package broadcast

import (
	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/internal/session"
	"github.com/momentics/pbxlive/protocol"
	"github.com/rs/zerolog"
)

// DefaultChannels are the subscriptions that receive poll updates.
var DefaultChannels = []string{"all", "queues"}

// Failure is one connection whose write failed.
type Failure struct {
	Conn *session.Connection
	Err  error
}

// Report summarizes one broadcast.
type Report struct {
	Attempted int
	Delivered int
	Failed    []Failure
}

// Broadcaster delivers update payloads to channel subscribers.
type Broadcaster struct {
	registry *session.Registry
	channels []string
	metrics  *control.MetricsRegistry
	logger   zerolog.Logger
}

// New creates a broadcaster for DefaultChannels.
func New(registry *session.Registry, metrics *control.MetricsRegistry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		channels: DefaultChannels,
		metrics:  metrics,
		logger:   logger.With().Str("component", "broadcast").Logger(),
	}
}

// Broadcast wraps payload in a text frame once and sends it to every open
// connection subscribed to any broadcast channel. The subscriber set is
// fixed before the first write.
func (b *Broadcaster) Broadcast(payload []byte) Report {
	targets := b.registry.Subscribers(b.channels...)
	var rep Report
	if len(targets) == 0 {
		return rep
	}

	frame := protocol.EncodeText(payload)
	for _, c := range targets {
		rep.Attempted++
		if err := c.Send(frame); err != nil {
			rep.Failed = append(rep.Failed, Failure{Conn: c, Err: err})
			continue
		}
		rep.Delivered++
	}

	b.metrics.Add(control.BroadcastWrites, int64(rep.Attempted))
	b.metrics.Add(control.BroadcastFailures, int64(len(rep.Failed)))
	b.logger.Debug().
		Int("attempted", rep.Attempted).
		Int("delivered", rep.Delivered).
		Int("failed", len(rep.Failed)).
		Int("frame_bytes", len(frame)).
		Msg("update broadcast")
	return rep
}
