// File: telemetry/provider.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package telemetry

import (
	"context"
	"errors"
)

var (
	// ErrNoSnapshot means the collector has not published anything yet.
	ErrNoSnapshot = errors.New("telemetry: no snapshot published")
	// ErrStaleSnapshot means the newest snapshot is older than the allowed age.
	ErrStaleSnapshot = errors.New("telemetry: snapshot is stale")
)

// Provider returns the current telemetry snapshot. Calls are synchronous
// and made from the server's event loop.
type Provider interface {
	GetSnapshot(ctx context.Context) (*Snapshot, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (*Snapshot, error)

// GetSnapshot calls f.
func (f ProviderFunc) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}
