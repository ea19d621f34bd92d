// File: internal/session/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"errors"
	"sort"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/pbxlive/internal/transport"
)

var (
	// ErrBacklogExceeded means the peer is not draining its socket.
	ErrBacklogExceeded = errors.New("session: outbound backlog exceeded")
	// ErrClosed is returned when sending on a closing or closed connection.
	ErrClosed = errors.New("session: connection closed")
)

// State is a connection lifecycle stage. Transitions only move forward.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Connection is one client socket with its protocol state, subscriptions,
// and inbound/outbound buffers.
type Connection struct {
	id        string
	seq       uint64
	conn      transport.Conn
	state     State
	channels  map[string]struct{}
	createdAt time.Time

	inbound []byte

	// outbound holds []byte chunks the kernel did not accept yet;
	// headOffset is how much of the first chunk has been written.
	outbound   *queue.Queue
	headOffset int
	pending    int
	maxPending int
}

// ID returns the opaque connection identifier.
func (c *Connection) ID() string { return c.id }

// Fd returns the socket descriptor.
func (c *Connection) Fd() int { return c.conn.Fd() }

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() string { return c.conn.RemoteAddr() }

// State returns the lifecycle stage.
func (c *Connection) State() State { return c.state }

// CreatedAt returns the accept time.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Subscribed reports whether the connection listens on channel.
func (c *Connection) Subscribed(channel string) bool {
	_, ok := c.channels[channel]
	return ok
}

// Channels returns the subscribed channel names in sorted order.
func (c *Connection) Channels() []string {
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// advance moves the state forward; backwards or repeated moves are refused.
func (c *Connection) advance(to State) bool {
	if to <= c.state {
		return false
	}
	c.state = to
	return true
}

// Read reads available bytes from the socket into the inbound buffer.
// It returns the number of bytes appended.
func (c *Connection) Read(scratch []byte) (int, error) {
	n, err := c.conn.Read(scratch)
	if n > 0 {
		c.inbound = append(c.inbound, scratch[:n]...)
	}
	return n, err
}

// Inbound returns the unconsumed inbound bytes.
func (c *Connection) Inbound() []byte { return c.inbound }

// Consume discards n bytes from the front of the inbound buffer.
func (c *Connection) Consume(n int) {
	if n >= len(c.inbound) {
		c.inbound = c.inbound[:0]
		return
	}
	c.inbound = append(c.inbound[:0], c.inbound[n:]...)
}

// Send writes data now if nothing is queued, and queues whatever the
// socket did not accept. The caller may reuse data afterwards.
func (c *Connection) Send(data []byte) error {
	if c.state >= StateClosing {
		return ErrClosed
	}
	if len(data) == 0 {
		return nil
	}
	if c.outbound.Length() > 0 {
		return c.enqueue(data)
	}
	n, err := c.conn.Write(data)
	if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
		return err
	}
	if n < len(data) {
		return c.enqueue(data[n:])
	}
	return nil
}

func (c *Connection) enqueue(rest []byte) error {
	if c.maxPending > 0 && c.pending+len(rest) > c.maxPending {
		return ErrBacklogExceeded
	}
	chunk := make([]byte, len(rest))
	copy(chunk, rest)
	c.outbound.Add(chunk)
	c.pending += len(chunk)
	return nil
}

// Flush writes queued chunks until the queue is empty or the socket would block.
func (c *Connection) Flush() error {
	for c.outbound.Length() > 0 {
		head := c.outbound.Peek().([]byte)
		n, err := c.conn.Write(head[c.headOffset:])
		c.pending -= n
		c.headOffset += n
		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				return nil
			}
			return err
		}
		if c.headOffset < len(head) {
			return nil
		}
		c.outbound.Remove()
		c.headOffset = 0
	}
	return nil
}

// Pending returns the number of queued outbound bytes.
func (c *Connection) Pending() int { return c.pending }

// WantsWrite reports whether queued bytes are waiting for writability.
func (c *Connection) WantsWrite() bool { return c.outbound.Length() > 0 }
