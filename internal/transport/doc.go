// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP primitives for the reactor-driven server: a listening
// socket that accepts without blocking, and a per-connection socket whose
// Read/Write return ErrWouldBlock instead of parking the caller. Sockets are
// raw descriptors so they can be registered directly with the reactor.
// Linux only; other platforms get constructors returning ErrNotSupported.

package transport
