// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime counters and debug introspection for the live-telemetry server.
//
// Provides concurrent-safe primitives including:
//   - MetricsRegistry: named counters and gauges with snapshot reads
//   - DebugProbes: named state hooks dumped on demand (the daemon logs them on shutdown)
package control
