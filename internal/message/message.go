// File: internal/message/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package message builds the JSON payloads the server sends to clients.
// Every payload is an object with a "type" field; the server wraps each one
// in a single text frame.
package message

import (
	"encoding/json"

	"github.com/momentics/pbxlive/telemetry"
)

// Type values of server→client messages.
const (
	TypeConnected  = "connected"
	TypeSubscribed = "subscribed"
	TypePong       = "pong"
	TypeQueues     = "queues"
	TypeAgents     = "agents"
	TypeUpdate     = "update"
	TypeError      = "error"
)

type envelope struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

type dataEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// UpdateData is the body of an update message.
type UpdateData struct {
	Queues      []telemetry.QueueStatus `json:"queues"`
	ActiveCalls int                     `json:"active_calls"`
	Channels    []telemetry.CallChannel `json:"channels"`
}

type update struct {
	Type      string     `json:"type"`
	Timestamp int64      `json:"timestamp"`
	Data      UpdateData `json:"data"`
}

// Precomputed constant payloads.
var (
	connected = mustMarshal(envelope{Type: TypeConnected})
	pong      = mustMarshal(envelope{Type: TypePong})
)

// Connected is the welcome message sent right after the handshake.
func Connected() []byte { return connected }

// Pong answers a ping action.
func Pong() []byte { return pong }

// Subscribed confirms a subscription to channel.
func Subscribed(channel string) []byte {
	return mustMarshal(envelope{Type: TypeSubscribed, Channel: channel})
}

// Error reports a failure to the requesting client.
func Error(msg string) []byte {
	b, err := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{TypeError, msg})
	if err != nil {
		return []byte(`{"type":"error","message":"internal error"}`)
	}
	return b
}

// Queues wraps the queue list of a snapshot.
func Queues(queues []telemetry.QueueStatus) ([]byte, error) {
	if queues == nil {
		queues = []telemetry.QueueStatus{}
	}
	return json.Marshal(dataEnvelope{Type: TypeQueues, Data: queues})
}

// Agents wraps a flattened agent list.
func Agents(agents []telemetry.Agent) ([]byte, error) {
	if agents == nil {
		agents = []telemetry.Agent{}
	}
	return json.Marshal(dataEnvelope{Type: TypeAgents, Data: agents})
}

// Update renders a poll tick's broadcast. The timestamp is the snapshot's
// time in unix seconds and active_calls counts the channel list.
func Update(snap *telemetry.Snapshot) ([]byte, error) {
	u := update{
		Type:      TypeUpdate,
		Timestamp: snap.Timestamp.Unix(),
		Data: UpdateData{
			Queues:      snap.Queues,
			ActiveCalls: len(snap.ActiveCalls),
			Channels:    snap.ActiveCalls,
		},
	}
	if u.Data.Queues == nil {
		u.Data.Queues = []telemetry.QueueStatus{}
	}
	if u.Data.Channels == nil {
		u.Data.Channels = []telemetry.CallChannel{}
	}
	return json.Marshal(u)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
