// File: internal/session/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"sort"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/pbxlive/internal/transport"
)

// Registry exclusively owns live connections, keyed by socket descriptor,
// plus the channel → subscribers index.
type Registry struct {
	conns      map[int]*Connection
	channels   map[string]map[int]*Connection
	seq        uint64
	maxPending int
	now        func() time.Time
}

// NewRegistry creates an empty registry. maxPending caps each connection's
// outbound backlog in bytes; 0 means unlimited.
func NewRegistry(maxPending int) *Registry {
	return &Registry{
		conns:      make(map[int]*Connection),
		channels:   make(map[string]map[int]*Connection),
		maxPending: maxPending,
		now:        time.Now,
	}
}

// Add registers a freshly accepted socket in the Connecting state.
func (r *Registry) Add(conn transport.Conn) *Connection {
	r.seq++
	c := &Connection{
		id:         uuid.NewString(),
		seq:        r.seq,
		conn:       conn,
		state:      StateConnecting,
		channels:   make(map[string]struct{}),
		createdAt:  r.now(),
		outbound:   queue.New(),
		maxPending: r.maxPending,
	}
	r.conns[conn.Fd()] = c
	return c
}

// Get looks a connection up by descriptor.
func (r *Registry) Get(fd int) (*Connection, bool) {
	c, ok := r.conns[fd]
	return c, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) owns(c *Connection) bool {
	return c != nil && r.conns[c.Fd()] == c
}

// Open completes the handshake transition Connecting → Open.
func (r *Registry) Open(c *Connection) bool {
	if !r.owns(c) || c.state != StateConnecting {
		return false
	}
	return c.advance(StateOpen)
}

// Closing marks a connection as shutting down; it stops receiving broadcasts.
func (r *Registry) Closing(c *Connection) bool {
	if !r.owns(c) {
		return false
	}
	return c.advance(StateClosing)
}

// Subscribe adds channel to an open connection's set.
func (r *Registry) Subscribe(c *Connection, channel string) bool {
	if !r.owns(c) || c.state != StateOpen {
		return false
	}
	c.channels[channel] = struct{}{}
	subs := r.channels[channel]
	if subs == nil {
		subs = make(map[int]*Connection)
		r.channels[channel] = subs
	}
	subs[c.Fd()] = c
	return true
}

// Unsubscribe removes channel from the connection's set.
// It reports whether the connection had been subscribed.
func (r *Registry) Unsubscribe(c *Connection, channel string) bool {
	if !r.owns(c) || !c.Subscribed(channel) {
		return false
	}
	delete(c.channels, channel)
	r.unindex(c.Fd(), channel)
	return true
}

func (r *Registry) unindex(fd int, channel string) {
	subs, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(subs, fd)
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
}

// Remove moves the connection to Closed, drops it from every index, and
// closes its socket. Removing an unknown connection is a no-op.
func (r *Registry) Remove(c *Connection) error {
	if !r.owns(c) {
		return nil
	}
	fd := c.Fd()
	for ch := range c.channels {
		r.unindex(fd, ch)
	}
	c.channels = make(map[string]struct{})
	delete(r.conns, fd)
	c.advance(StateClosed)
	return c.conn.Close()
}

// ForEachOpen calls fn for every open connection in accept order.
func (r *Registry) ForEachOpen(fn func(*Connection)) {
	for _, c := range r.ordered(r.conns) {
		if c.state == StateOpen {
			fn(c)
		}
	}
}

// Subscribers returns the open connections subscribed to any of channels,
// each at most once, in accept order.
func (r *Registry) Subscribers(channels ...string) []*Connection {
	set := make(map[int]*Connection)
	for _, ch := range channels {
		for fd, c := range r.channels[ch] {
			if c.state == StateOpen {
				set[fd] = c
			}
		}
	}
	return r.ordered(set)
}

// Channels returns subscriber counts per channel.
func (r *Registry) Channels() map[string]int {
	out := make(map[string]int, len(r.channels))
	for ch, subs := range r.channels {
		out[ch] = len(subs)
	}
	return out
}

// CloseAll removes every connection.
func (r *Registry) CloseAll() {
	for _, c := range r.ordered(r.conns) {
		_ = r.Remove(c)
	}
}

func (r *Registry) ordered(set map[int]*Connection) []*Connection {
	out := make([]*Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
