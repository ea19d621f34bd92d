//go:build !linux
// +build !linux

// File: internal/transport/transport_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "net"

// Listener is unavailable on this platform.
type Listener struct{}

// Listen returns ErrNotSupported.
func Listen(addr string) (*Listener, error) {
	return nil, ErrNotSupported
}

func (l *Listener) Fd() int               { return -1 }
func (l *Listener) Addr() *net.TCPAddr    { return &net.TCPAddr{} }
func (l *Listener) Accept() (Conn, error) { return nil, ErrNotSupported }
func (l *Listener) Close() error          { return nil }
