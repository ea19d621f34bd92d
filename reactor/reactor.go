// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness reactor interface.

package reactor

import (
	"errors"
	"time"
)

// ErrNotSupported is returned by New on platforms without a reactor backend.
var ErrNotSupported = errors.New("reactor: this platform is not supported")

// Events is a bit set of readiness conditions.
type Events uint32

const (
	EventRead Events = 1 << iota
	EventWrite
	EventHangup
	EventError
)

// Event reports readiness for one registered descriptor.
type Event struct {
	Fd     int
	Events Events
}

// Reactor multiplexes readiness over many non-blocking descriptors.
// It is driven from a single goroutine; only Wake may be called concurrently.
type Reactor interface {
	// Add starts watching fd for the given interest set.
	Add(fd int, interest Events) error

	// Modify replaces the interest set of a watched fd.
	Modify(fd int, interest Events) error

	// Remove stops watching fd.
	Remove(fd int) error

	// Wait blocks until at least one event is ready, Wake is called, or
	// timeout elapses. A negative timeout blocks indefinitely.
	// Returns the number of events written to events.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Wake interrupts a blocked Wait.
	Wake() error

	// Close releases the reactor resources.
	Close() error
}

// timeoutMillis rounds a positive timeout up so that short waits do not spin.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
