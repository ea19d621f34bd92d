// File: telemetry/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Member is one queue member (agent interface) as reported by the PBX.
type Member struct {
	Interface string `json:"interface" yaml:"interface"`
	Paused    bool   `json:"paused" yaml:"paused"`
	Status    int    `json:"status" yaml:"status"`
	InCall    bool   `json:"in_call" yaml:"in_call"`
}

// QueueStatus is the live state of one call queue.
type QueueStatus struct {
	Name         string   `json:"name" yaml:"name"`
	CallsWaiting int      `json:"calls_waiting" yaml:"calls_waiting"`
	Members      []Member `json:"members" yaml:"members"`
}

// CallChannel is one active call leg. Duration is in seconds.
type CallChannel struct {
	UniqueID    string `json:"uniqueid" yaml:"uniqueid"`
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
	Duration    int    `json:"duration" yaml:"duration"`
}

// Snapshot bundles one poll's worth of telemetry.
type Snapshot struct {
	Timestamp   time.Time
	Queues      []QueueStatus
	ActiveCalls []CallChannel
}

// document is the serialized snapshot form written by the collector.
// Timestamp is unix seconds; zero means "not stamped".
type document struct {
	Timestamp   int64         `json:"timestamp" yaml:"timestamp"`
	Queues      []QueueStatus `json:"queues" yaml:"queues"`
	ActiveCalls []CallChannel `json:"active_calls" yaml:"active_calls"`
}

func (d *document) snapshot() *Snapshot {
	s := &Snapshot{Queues: d.Queues, ActiveCalls: d.ActiveCalls}
	if d.Timestamp > 0 {
		s.Timestamp = time.Unix(d.Timestamp, 0)
	}
	if s.Queues == nil {
		s.Queues = []QueueStatus{}
	}
	if s.ActiveCalls == nil {
		s.ActiveCalls = []CallChannel{}
	}
	return s
}

// DecodeJSON parses a collector snapshot in JSON form.
func DecodeJSON(data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot json: %w", err)
	}
	return doc.snapshot(), nil
}

// DecodeYAML parses a collector snapshot in YAML form.
func DecodeYAML(data []byte) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot yaml: %w", err)
	}
	return doc.snapshot(), nil
}

// EncodeJSON renders s in the collector document form.
func EncodeJSON(s *Snapshot) ([]byte, error) {
	doc := document{Queues: s.Queues, ActiveCalls: s.ActiveCalls}
	if !s.Timestamp.IsZero() {
		doc.Timestamp = s.Timestamp.Unix()
	}
	return json.Marshal(doc)
}
