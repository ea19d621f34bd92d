// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides a readiness-based event reactor over non-blocking
// descriptors. The Linux implementation is level-triggered epoll with an
// eventfd used to interrupt Wait from another goroutine.
package reactor
