// File: internal/transport/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrWouldBlock reports that a non-blocking call has nothing to do right now.
	ErrWouldBlock = errors.New("transport: operation would block")
	// ErrNotSupported is returned on platforms without a raw socket backend.
	ErrNotSupported = errors.New("transport: this platform is not supported")
)

// Conn is a non-blocking stream socket owned by exactly one connection record.
type Conn interface {
	// Fd returns the descriptor used for reactor registration.
	Fd() int
	// Read returns io.EOF on orderly peer shutdown and ErrWouldBlock when
	// no bytes are buffered.
	Read(p []byte) (int, error)
	// Write may write fewer than len(p) bytes; ErrWouldBlock means zero
	// bytes were accepted by the kernel.
	Write(p []byte) (int, error)
	// RemoteAddr is the peer address in host:port form.
	RemoteAddr() string
	Close() error
}

// IsExpectedClose reports whether err is an ordinary peer disconnect:
// EOF, closed connection, broken pipe, or connection reset.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
