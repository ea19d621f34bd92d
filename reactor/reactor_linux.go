//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor with an eventfd(2) wakeup channel.

package reactor

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// linuxReactor is a level-triggered epoll reactor.
type linuxReactor struct {
	epfd   int
	wakeFd int
	raw    []unix.EpollEvent
}

// New constructs the epoll reactor.
func New() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	r := &linuxReactor{epfd: epfd, wakeFd: wakeFd}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		r.Close()
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return r, nil
}

// Add registers fd with epoll.
func (r *linuxReactor) Add(fd int, interest Events) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Modify updates the interest set of fd.
func (r *linuxReactor) Modify(fd int, interest Events) error {
	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Remove deregisters fd.
func (r *linuxReactor) Remove(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait waits for epoll events and translates them into events.
func (r *linuxReactor) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(r.raw) < len(events) {
		r.raw = make([]unix.EpollEvent, len(events))
	}
	raw := r.raw[:len(events)]

	n, err := unix.EpollWait(r.epfd, raw, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == r.wakeFd {
			r.drainWake()
			continue
		}
		events[out] = Event{Fd: fd, Events: fromEpoll(raw[i].Events)}
		out++
	}
	return out, nil
}

// Wake writes to the eventfd so a blocked Wait returns.
func (r *linuxReactor) Wake() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(r.wakeFd, one[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (r *linuxReactor) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(r.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// Close closes the epoll instance and the wakeup descriptor.
func (r *linuxReactor) Close() error {
	werr := unix.Close(r.wakeFd)
	if err := unix.Close(r.epfd); err != nil {
		return err
	}
	return werr
}

func toEpoll(interest Events) uint32 {
	ev := uint32(unix.EPOLLRDHUP)
	if interest&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpoll(ev uint32) Events {
	var out Events
	if ev&unix.EPOLLIN != 0 {
		out |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		out |= EventWrite
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		out |= EventHangup
	}
	if ev&unix.EPOLLERR != 0 {
		out |= EventError
	}
	return out
}
