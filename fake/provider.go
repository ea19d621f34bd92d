// File: fake/provider.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/pbxlive/telemetry"
)

// Provider is a stub telemetry.Provider returning a fixed snapshot or error.
type Provider struct {
	mu    sync.Mutex
	snap  *telemetry.Snapshot
	err   error
	calls int
}

// NewProvider returns a provider serving snap.
func NewProvider(snap *telemetry.Snapshot) *Provider {
	return &Provider{snap: snap}
}

// Set replaces the served snapshot and error.
func (p *Provider) Set(snap *telemetry.Snapshot, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap, p.err = snap, err
}

func (p *Provider) GetSnapshot(ctx context.Context) (*telemetry.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.snap, nil
}

// Calls returns how many times GetSnapshot ran.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Snapshot builds a deterministic snapshot with the given number of queues,
// two members per queue (the first shared by all queues), and one active call.
func Snapshot(queues int) *telemetry.Snapshot {
	snap := &telemetry.Snapshot{
		Timestamp: time.Unix(1700000000, 0),
		Queues:    make([]telemetry.QueueStatus, 0, queues),
		ActiveCalls: []telemetry.CallChannel{
			{UniqueID: "1700000000.1", Source: "5550100", Destination: "600", Duration: 12},
		},
	}
	for i := 0; i < queues; i++ {
		snap.Queues = append(snap.Queues, telemetry.QueueStatus{
			Name:         fmt.Sprintf("queue-%d", i+1),
			CallsWaiting: i,
			Members: []telemetry.Member{
				{Interface: "SIP/100", Status: 1},
				{Interface: fmt.Sprintf("SIP/%d", 200+i), Status: 2, InCall: true},
			},
		})
	}
	return snap
}
