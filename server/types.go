// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"
	"time"

	"github.com/momentics/pbxlive/internal/transport"
	"github.com/momentics/pbxlive/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. ":8080"
	PollInterval    time.Duration // telemetry poll cadence
	PollTimeout     time.Duration // provider call timeout per tick (0 = none)
	MaxFrameSize    int64         // largest accepted client payload
	MaxConnections  int           // sockets beyond this are closed at accept
	MaxPendingBytes int           // per-connection outbound backlog cap (0 = unlimited)
	HandshakeLimit  int           // largest accepted upgrade request header block
	ReadBufferSize  int           // scratch buffer for socket reads
	EventBatch      int           // readiness events fetched per wait
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		PollInterval:    5 * time.Second,
		PollTimeout:     2 * time.Second,
		MaxFrameSize:    protocol.DefaultMaxFramePayload,
		MaxConnections:  1024,
		MaxPendingBytes: 4 << 20,
		HandshakeLimit:  protocol.DefaultMaxHandshakeSize,
		ReadBufferSize:  16 * 1024,
		EventBatch:      128,
	}
}

// Acceptor is a non-blocking listening socket.
// Accept returns transport.ErrWouldBlock when no connection is pending.
type Acceptor interface {
	Fd() int
	Addr() *net.TCPAddr
	Accept() (transport.Conn, error)
	Close() error
}
