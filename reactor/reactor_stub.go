//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

// New returns ErrNotSupported on platforms without an epoll backend.
func New() (Reactor, error) {
	return nil, ErrNotSupported
}
