// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package netport hands out free TCP ports for worker processes.
package netport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
)

// ErrPortAllocation is returned when the OS refuses to bind. This is
// fatal to starting a worker and must propagate to the caller.
var ErrPortAllocation = errors.New("port allocation failed")

// scanSpan bounds how far ScanFrom probes above its starting port.
const scanSpan = 100

// Allocator obtains OS-assigned ports. All state is owned by the
// instance; callers inject it rather than reaching for globals.
type Allocator struct {
	mu     sync.Mutex
	cached int // first ScanFrom success, reused for the process lifetime
}

// New creates a port allocator.
func New() *Allocator {
	return &Allocator{}
}

// Allocate binds a listener to port 0 on loopback, reads back the
// OS-assigned port, releases the socket, and returns the port. Safe to
// call concurrently; every call binds independently.
func (a *Allocator) Allocate() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPortAllocation, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, fmt.Errorf("%w: release socket: %v", ErrPortAllocation, err)
	}
	return port, nil
}

// ScanFrom probes upward from the preferred starting port, retrying the
// next integer while a port is in use. The first success is cached so
// repeated callers converge on one stable port. Used for development
// parity where a fixed default port is preferred; per-session isolation
// should use Allocate instead.
func (a *Allocator) ScanFrom(start int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != 0 {
		return a.cached, nil
	}

	for port := start; port < start+scanSpan; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			if isAddrInUse(err) {
				continue
			}
			return 0, fmt.Errorf("%w: %v", ErrPortAllocation, err)
		}
		ln.Close()
		a.cached = port
		return port, nil
	}
	return 0, fmt.Errorf("%w: no free port in [%d,%d)", ErrPortAllocation, start, start+scanSpan)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
