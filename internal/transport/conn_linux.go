//go:build linux
// +build linux

// File: internal/transport/conn_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// fdConn is a connected non-blocking socket.
type fdConn struct {
	fd     int
	remote string
}

func newFdConn(fd int, remote string) *fdConn {
	return &fdConn{fd: fd, remote: remote}
}

func (c *fdConn) Fd() int            { return c.fd }
func (c *fdConn) RemoteAddr() string { return c.remote }

// Read reads whatever the kernel has buffered.
func (c *fdConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		switch err {
		case nil:
			if n == 0 && len(p) > 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("read: %w", err)
		}
	}
}

// Write sends without raising SIGPIPE on a reset peer.
func (c *fdConn) Write(p []byte) (int, error) {
	for {
		n, err := unix.SendmsgN(c.fd, p, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("write: %w", err)
		}
	}
}

func (c *fdConn) Close() error {
	return unix.Close(c.fd)
}
