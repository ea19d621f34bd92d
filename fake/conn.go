// File: fake/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/momentics/pbxlive/internal/transport"
	"github.com/momentics/pbxlive/protocol"
)

// Conn is a scripted transport.Conn. Reads drain queued chunks and then
// report ErrWouldBlock (or the injected read error). Writes are recorded.
type Conn struct {
	mu         sync.Mutex
	fd         int
	remote     string
	reads      [][]byte
	readErr    error
	writeErr   error
	writeLimit int
	blocked    bool
	written    bytes.Buffer
	writes     int
	closed     bool
}

// NewConn returns a fake socket with descriptor fd.
func NewConn(fd int) *Conn {
	return &Conn{fd: fd, remote: fmt.Sprintf("198.51.100.7:%d", 40000+fd)}
}

func (c *Conn) Fd() int            { return c.fd }
func (c *Conn) RemoteAddr() string { return c.remote }

// Feed queues bytes for the next Read.
func (c *Conn) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, append([]byte(nil), p...))
}

// FailReads makes Read return err once queued chunks are drained.
func (c *Conn) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailWrites makes every Write return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// LimitWrites caps the bytes accepted per Write call; 0 removes the cap.
func (c *Conn) LimitWrites(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLimit = n
}

// BlockWrites makes Write report ErrWouldBlock while on is true.
func (c *Conn) BlockWrites(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = on
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, transport.ErrNotSupported
	}
	if len(c.reads) == 0 {
		if c.readErr != nil {
			return 0, c.readErr
		}
		return 0, transport.ErrWouldBlock
	}
	n := copy(p, c.reads[0])
	if n < len(c.reads[0]) {
		c.reads[0] = c.reads[0][n:]
	} else {
		c.reads = c.reads[1:]
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.blocked {
		return 0, transport.ErrWouldBlock
	}
	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.written.Write(p[:n])
	return n, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Writes returns the number of Write attempts.
func (c *Conn) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// Written returns a copy of everything accepted so far.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written.Bytes()...)
}

// Frames decodes the server frames written so far, skipping a leading
// HTTP response if one was written.
func (c *Conn) Frames() ([]*protocol.Frame, error) {
	buf := c.Written()
	if bytes.HasPrefix(buf, []byte("HTTP/1.1")) {
		end := bytes.Index(buf, []byte("\r\n\r\n"))
		if end < 0 {
			return nil, fmt.Errorf("fake: truncated http response")
		}
		buf = buf[end+4:]
	}
	var frames []*protocol.Frame
	for len(buf) > 0 {
		f, n, err := protocol.DecodeServerFrame(buf, 0)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("fake: %d trailing bytes", len(buf))
		}
		frames = append(frames, f)
		buf = buf[n:]
	}
	return frames, nil
}
