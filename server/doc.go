// Package server implements the live telemetry WebSocket server: a
// single-goroutine event loop over a readiness reactor that accepts
// clients, performs the upgrade handshake, routes control messages, and
// broadcasts telemetry updates on a fixed poll interval.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package server
