// File: fake/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"net"
	"sync"

	"github.com/momentics/pbxlive/internal/transport"
)

// Listener hands out queued connections; an empty queue reports
// ErrWouldBlock like a drained non-blocking socket.
type Listener struct {
	mu      sync.Mutex
	fd      int
	pending []transport.Conn
	closed  bool
}

// NewListener returns a fake listening socket with descriptor fd.
func NewListener(fd int) *Listener {
	return &Listener{fd: fd}
}

// Queue makes conns available to Accept in order.
func (l *Listener) Queue(conns ...transport.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, conns...)
}

func (l *Listener) Fd() int { return l.fd }

func (l *Listener) Addr() *net.TCPAddr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

func (l *Listener) Accept() (transport.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, transport.ErrWouldBlock
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
