// File: server/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One event loop iteration: wait for readiness or the next poll tick,
// accept, read, dispatch, flush, and broadcast. Every I/O failure ends in
// drop.

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/momentics/pbxlive/control"
	"github.com/momentics/pbxlive/internal/message"
	"github.com/momentics/pbxlive/internal/session"
	"github.com/momentics/pbxlive/internal/transport"
	"github.com/momentics/pbxlive/protocol"
	"github.com/momentics/pbxlive/reactor"
)

var (
	errPeerClosed        = errors.New("peer sent close frame")
	errUnsupportedOpcode = errors.New("unsupported opcode")
)

func (s *Server) step(ctx context.Context) error {
	n, err := s.reactor.Wait(s.events, s.poller.NextIn(s.now()))
	if err != nil {
		return fmt.Errorf("server: reactor wait: %w", err)
	}
	lfd := s.listener.Fd()
	for _, ev := range s.events[:n] {
		if ev.Fd == lfd {
			s.acceptAll()
			continue
		}
		c, ok := s.registry.Get(ev.Fd)
		if !ok {
			continue
		}
		s.handle(ctx, c, ev.Events)
	}
	if s.poller.Due(s.now()) {
		s.tick(ctx)
	}
	s.publishView()
	return nil
}

func (s *Server) acceptAll() {
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, transport.ErrWouldBlock) {
			return
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("accept failed")
			return
		}
		if s.registry.Len() >= s.cfg.MaxConnections {
			s.metrics.Inc(control.ConnectionsRejected)
			s.logger.Warn().Str("remote", conn.RemoteAddr()).Int("limit", s.cfg.MaxConnections).Msg("connection limit reached, rejecting")
			conn.Close()
			continue
		}
		if err := s.reactor.Add(conn.Fd(), reactor.EventRead); err != nil {
			s.logger.Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("watch connection")
			conn.Close()
			continue
		}
		s.interest[conn.Fd()] = reactor.EventRead
		c := s.registry.Add(conn)
		s.metrics.Inc(control.ConnectionsAccepted)
		s.metrics.Set(control.ConnectionsOpen, int64(s.registry.Len()))
		s.logger.Debug().Str("conn_id", c.ID()).Str("remote", c.RemoteAddr()).Msg("connection accepted")
	}
}

func (s *Server) handle(ctx context.Context, c *session.Connection, ev reactor.Events) {
	if ev&reactor.EventWrite != 0 {
		if err := c.Flush(); err != nil {
			s.drop(c, err)
			return
		}
		s.watch(c)
		if c.State() == session.StateClosed {
			return
		}
	}
	if ev&(reactor.EventRead|reactor.EventHangup|reactor.EventError) != 0 {
		s.read(ctx, c)
	}
}

// maxReadsPerEvent caps reads per readiness event. The reactor is level
// triggered, so unread data is reported again on the next wait.
const maxReadsPerEvent = 4

// read pulls up to maxReadsPerEvent chunks from the socket, processing each
// as it arrives so the inbound buffer stays bounded by the frame and
// handshake limits.
func (s *Server) read(ctx context.Context, c *session.Connection) {
	for i := 0; i < maxReadsPerEvent; i++ {
		n, err := c.Read(s.scratch)
		if err != nil {
			if !errors.Is(err, transport.ErrWouldBlock) {
				s.drop(c, err)
			}
			return
		}
		if n == 0 {
			return
		}
		if !s.process(ctx, c) {
			return
		}
	}
}

// process consumes buffered input. It returns false once c has been dropped.
func (s *Server) process(ctx context.Context, c *session.Connection) bool {
	if c.State() == session.StateConnecting {
		resp, consumed, err := protocol.ProcessHandshake(c.Inbound(), s.cfg.HandshakeLimit)
		if err != nil {
			s.drop(c, err)
			return false
		}
		if resp == nil {
			return true
		}
		c.Consume(consumed)
		if err := c.Send(resp); err != nil {
			s.drop(c, err)
			return false
		}
		s.registry.Open(c)
		if err := s.send(c, message.Connected()); err != nil {
			s.drop(c, err)
			return false
		}
		s.logger.Debug().Str("conn_id", c.ID()).Str("remote", c.RemoteAddr()).Msg("connection opened")
	}

	for c.State() == session.StateOpen {
		frame, n, err := protocol.DecodeFrame(c.Inbound(), s.cfg.MaxFrameSize)
		if err != nil {
			s.drop(c, err)
			return false
		}
		if frame == nil {
			return true
		}
		c.Consume(n)
		s.metrics.Inc(control.FramesReceived)

		switch frame.Opcode {
		case protocol.OpcodeText:
			if reply := s.router.Handle(ctx, c, frame.Payload); reply != nil {
				if err := s.send(c, reply); err != nil {
					s.drop(c, err)
					return false
				}
			}
		case protocol.OpcodeClose:
			s.registry.Closing(c)
			s.drop(c, errPeerClosed)
			return false
		default:
			s.drop(c, fmt.Errorf("%w 0x%x", errUnsupportedOpcode, frame.Opcode))
			return false
		}
	}
	return c.State() != session.StateClosed
}

// send frames payload as a text message and updates write interest.
func (s *Server) send(c *session.Connection, payload []byte) error {
	if err := c.Send(protocol.EncodeText(payload)); err != nil {
		return err
	}
	s.watch(c)
	return nil
}

// watch keeps the reactor interest in step with the outbound backlog.
func (s *Server) watch(c *session.Connection) {
	want := reactor.EventRead
	if c.WantsWrite() {
		want |= reactor.EventWrite
	}
	fd := c.Fd()
	if s.interest[fd] == want {
		return
	}
	if err := s.reactor.Modify(fd, want); err != nil {
		s.drop(c, err)
		return
	}
	s.interest[fd] = want
}

func (s *Server) tick(ctx context.Context) {
	payload, ok := s.poller.Poll(ctx)
	if !ok {
		return
	}
	rep := s.broadcaster.Broadcast(payload)
	for _, f := range rep.Failed {
		s.drop(f.Conn, f.Err)
	}
	s.registry.ForEachOpen(s.watch)
}

// drop is the single exit path for a connection: it stops watching the
// socket, removes the connection from the registry, and closes it.
func (s *Server) drop(c *session.Connection, cause error) {
	if c.State() == session.StateClosed {
		return
	}
	fd := c.Fd()
	if err := s.reactor.Remove(fd); err != nil {
		s.logger.Debug().Err(err).Int("fd", fd).Msg("unwatch connection")
	}
	delete(s.interest, fd)
	if err := s.registry.Remove(c); err != nil {
		s.logger.Debug().Err(err).Str("conn_id", c.ID()).Msg("close socket")
	}
	s.metrics.Inc(control.ConnectionsDropped)
	s.metrics.Set(control.ConnectionsOpen, int64(s.registry.Len()))

	ev := s.logger.Warn()
	if expectedDrop(cause) {
		ev = s.logger.Debug()
	}
	ev.Err(cause).Str("conn_id", c.ID()).Str("remote", c.RemoteAddr()).Msg("connection closed")
}

// expectedDrop reports causes that are ordinary client behaviour.
func expectedDrop(err error) bool {
	switch {
	case transport.IsExpectedClose(err),
		errors.Is(err, errPeerClosed),
		errors.Is(err, errUnsupportedOpcode),
		errors.Is(err, protocol.ErrUnmaskedFrame),
		errors.Is(err, protocol.ErrFrameTooLarge),
		errors.Is(err, protocol.ErrBadRequestLine),
		errors.Is(err, protocol.ErrInvalidUpgradeHeaders),
		errors.Is(err, protocol.ErrHandshakeTooLarge):
		return true
	}
	return false
}
