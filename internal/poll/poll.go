/*
 * MIT License
 *
 * Copyright (c) 2025 Twinkle Labs
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package poll is the central selector: the scheduler loop's single
// blocking wait on every fd any WAITING process has
// registered, plus the self-pipe (here, an eventfd/pipe-backed
// WakeUp) that lets a worker thread force an early return from that
// wait. The OS-specific implementations (poller_linux.go,
// poller_darwin.go) are grounded on the epoll/kqueue pollers of
// joeycumines-go-utilpkg's eventloop package, adapted from that
// package's fixed-size direct-FD-indexing style to a map-based
// registry sized to the handful of sockets a process runtime
// multiplexes (MAX_PROCESS, not 65536 raw fds).
package poll

import "time"

// Events is a bitmask of readiness conditions, mirroring the
// eventloop.IOEvents enumeration.
type Events uint32

const (
	EventRead Events = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// Callback is invoked with the events observed ready on the registered fd.
type Callback func(Events)

// Selector is the interface internal/sched drives: register interest in
// process fds, block for readiness or a bounded timeout, and allow any
// thread to interrupt that block early.
type Selector interface {
	Register(fd int, events Events, cb Callback) error
	Modify(fd int, events Events) error
	Unregister(fd int) error
	// Wait blocks until an fd becomes ready, WakeUp is called, or the
	// timeout elapses, whichever comes first. Ready callbacks are
	// invoked synchronously before Wait returns.
	Wait(timeout time.Duration) error
	// WakeUp forces the in-progress or next Wait to return promptly.
	WakeUp() error
	Close() error
}
