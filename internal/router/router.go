// File: internal/router/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package router dispatches client control messages arriving on open
// connections. A control message is a JSON object
// {"action": "...", "channel": "..."}; unknown actions are ignored.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/internal/message"
	"github.com/momentics/pbxlive/internal/session"
	"github.com/momentics/pbxlive/telemetry"
	"github.com/rs/zerolog"
)

// Action is the closed set of client actions.
type Action int

const (
	ActionUnknown Action = iota
	ActionSubscribe
	ActionUnsubscribe
	ActionPing
	ActionGetQueues
	ActionGetAgents
)

var actionNames = map[string]Action{
	"subscribe":   ActionSubscribe,
	"unsubscribe": ActionUnsubscribe,
	"ping":        ActionPing,
	"get_queues":  ActionGetQueues,
	"get_agents":  ActionGetAgents,
}

// ParseAction maps a wire name to an Action; anything else is ActionUnknown.
func ParseAction(name string) Action {
	return actionNames[name]
}

func (a Action) String() string {
	for name, v := range actionNames {
		if v == a {
			return name
		}
	}
	return "unknown"
}

// Request is a decoded control message.
type Request struct {
	Action  Action
	Name    string
	Channel string
}

// Parse decodes a text-frame payload.
func Parse(payload []byte) (Request, error) {
	var raw struct {
		Action  string `json:"action"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Request{}, fmt.Errorf("router: invalid control message: %w", err)
	}
	return Request{Action: ParseAction(raw.Action), Name: raw.Action, Channel: raw.Channel}, nil
}

// Router applies control messages to the registry and answers queries
// from the telemetry provider.
type Router struct {
	registry *session.Registry
	provider telemetry.Provider
	metrics  *control.MetricsRegistry
	logger   zerolog.Logger
}

// New creates a router. metrics may be nil.
func New(registry *session.Registry, provider telemetry.Provider, metrics *control.MetricsRegistry, logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		provider: provider,
		metrics:  metrics,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// Handle processes one payload from c and returns the reply to send back,
// or nil when the action has no reply. Invalid JSON is logged and ignored.
func (r *Router) Handle(ctx context.Context, c *session.Connection, payload []byte) []byte {
	req, err := Parse(payload)
	if err != nil {
		r.metrics.Inc(control.MessagesInvalid)
		r.logger.Warn().Err(err).Str("conn_id", c.ID()).Int("bytes", len(payload)).Msg("ignoring message")
		return nil
	}

	switch req.Action {
	case ActionSubscribe:
		if req.Channel == "" || !r.registry.Subscribe(c, req.Channel) {
			return nil
		}
		r.logger.Debug().Str("conn_id", c.ID()).Str("channel", req.Channel).Msg("subscribed")
		return message.Subscribed(req.Channel)
	case ActionUnsubscribe:
		if req.Channel != "" && r.registry.Unsubscribe(c, req.Channel) {
			r.logger.Debug().Str("conn_id", c.ID()).Str("channel", req.Channel).Msg("unsubscribed")
		}
		return nil
	case ActionPing:
		return message.Pong()
	case ActionGetQueues:
		snap, err := r.snapshot(ctx, c, req)
		if err != nil {
			return message.Error(err.Error())
		}
		return r.encode(c, req, func() ([]byte, error) { return message.Queues(snap.Queues) })
	case ActionGetAgents:
		snap, err := r.snapshot(ctx, c, req)
		if err != nil {
			return message.Error(err.Error())
		}
		return r.encode(c, req, func() ([]byte, error) { return message.Agents(telemetry.Agents(snap.Queues)) })
	case ActionUnknown:
		r.logger.Debug().Str("conn_id", c.ID()).Str("action", req.Name).Msg("unknown action")
		return nil
	}
	return nil
}

func (r *Router) snapshot(ctx context.Context, c *session.Connection, req Request) (*telemetry.Snapshot, error) {
	snap, err := r.provider.GetSnapshot(ctx)
	if err == nil && snap == nil {
		err = telemetry.ErrNoSnapshot
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("conn_id", c.ID()).Stringer("action", req.Action).Msg("telemetry provider failed")
		return nil, err
	}
	return snap, nil
}

func (r *Router) encode(c *session.Connection, req Request, fn func() ([]byte, error)) []byte {
	b, err := fn()
	if err != nil {
		r.logger.Warn().Err(err).Str("conn_id", c.ID()).Stringer("action", req.Action).Msg("encode reply")
		return message.Error(err.Error())
	}
	return b
}
