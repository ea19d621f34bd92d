// File: fake/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"sync"
	"time"

	"github.com/momentics/pbxlive/reactor"
)

// Reactor is an in-memory reactor.Reactor. Wait returns events queued
// with Push and never blocks.
type Reactor struct {
	mu       sync.Mutex
	interest map[int]reactor.Events
	pending  []reactor.Event
	wakes    int
	closed   bool
}

// NewReactor returns an empty fake reactor.
func NewReactor() *Reactor {
	return &Reactor{interest: make(map[int]reactor.Events)}
}

func (r *Reactor) Add(fd int, interest reactor.Events) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interest[fd] = interest
	return nil
}

func (r *Reactor) Modify(fd int, interest reactor.Events) error {
	return r.Add(fd, interest)
}

func (r *Reactor) Remove(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.interest, fd)
	return nil
}

// Push queues an event for the next Wait.
func (r *Reactor) Push(ev reactor.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ev)
}

func (r *Reactor) Wait(events []reactor.Event, timeout time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(events, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *Reactor) Wake() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wakes++
	return nil
}

func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Interest returns the watched interest set for fd.
func (r *Reactor) Interest(fd int) (reactor.Events, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.interest[fd]
	return ev, ok
}

// Closed reports whether Close was called.
func (r *Reactor) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
