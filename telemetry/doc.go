// Package telemetry
// Author: momentics <momentics@gmail.com>
//
// Point-in-time queue and call telemetry produced by the PBX collector, and
// the Provider contract the broadcast server polls. Concrete providers read
// the collector's output from a snapshot file or from a Redis key; the
// server itself never talks to the PBX.
package telemetry
