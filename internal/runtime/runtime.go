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

// Package runtime gathers the process-wide mutable state — process
// table, scheduler, router, logger, paths — into a single Runtime value
// constructed at startup and threaded through workers; the
// host-callback hangs off it. It wires internal/process, internal/sched,
// internal/route, internal/mailbox, and internal/peer into the one value
// cmd/twk constructs once at process startup.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/twinkle-labs/twk/internal/mailbox"
	"github.com/twinkle-labs/twk/internal/metrics"
	"github.com/twinkle-labs/twk/internal/poll"
	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/route"
	"github.com/twinkle-labs/twk/internal/sched"
	"github.com/twinkle-labs/twk/internal/twkconfig"
	"github.com/twinkle-labs/twk/internal/twklog"
)

// Runtime is the single process-wide value everything else hangs off.
type Runtime struct {
	Table   *process.Table
	Sched   *sched.Scheduler
	Router  *route.Router
	Log     *twklog.Logger
	Paths   twkconfig.Paths
	Tuning  twkconfig.Tuning
	Metrics *metrics.Metrics // nil unless EnableMetrics was called

	reqMu    sync.Mutex
	requests map[process.Pid]*route.Requests

	portMu sync.Mutex
	ports  map[process.Pid]*socketPort
}

// New constructs a Runtime: a process table, the platform selector, the
// scheduler bound to it, and a router handing pid −1 sends to host.
func New(paths twkconfig.Paths, tuning twkconfig.Tuning, log *twklog.Logger, host route.HostCallback) (*Runtime, error) {
	sel, err := poll.New()
	if err != nil {
		return nil, err
	}

	table := process.NewTable(process.MaxProcess, log)
	schedCfg := sched.Config{NumWorkers: tuning.MaxThreads, SelectorTimeout: tuning.SelectorTimeout}
	s := sched.New(table, sel, log, schedCfg)
	router := route.NewRouter(table, host)

	rt := &Runtime{
		Table:    table,
		Sched:    s,
		Router:   router,
		Log:      log,
		Paths:    paths,
		Tuning:   tuning,
		requests: make(map[process.Pid]*route.Requests),
		ports:    make(map[process.Pid]*socketPort),
	}

	table.OnChildAbort(func(parent, child process.Pid, cause error) {
		rt.Router.SendMessage(parent, abortMessage(child, cause))
	})
	table.OnReclaim(func(pid process.Pid) {
		rt.reqMu.Lock()
		delete(rt.requests, pid)
		rt.reqMu.Unlock()
		rt.portMu.Lock()
		delete(rt.ports, pid)
		rt.portMu.Unlock()
	})

	return rt, nil
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (rt *Runtime) Run(ctx context.Context) error {
	return rt.Sched.Run(ctx)
}

// Spawn creates a process, binds a fresh mailbox sized to the
// configured tuning, and registers its request-correlation queue.
func (rt *Runtime) Spawn(name string, parent process.Pid, privileged bool, level twklog.Level, cont process.Continuation) (*process.Process, error) {
	p, err := rt.Sched.Spawn(name, parent, privileged, level, cont)
	if err != nil {
		return nil, err
	}

	mb := mailbox.New(4096, rt.Tuning.MaxMboxSize, rt.waitingFunc(p.Pid), rt.wakeFunc(p.Pid))
	rt.Table.BindMailbox(p.Pid, mb)
	rt.reqMu.Lock()
	rt.requests[p.Pid] = route.NewRequests()
	rt.reqMu.Unlock()
	return p, nil
}

func (rt *Runtime) waitingFunc(pid process.Pid) func() bool {
	return func() bool {
		p, ok := rt.Table.Lookup(pid)
		return ok && p.State == process.WAITING
	}
}

func (rt *Runtime) wakeFunc(pid process.Pid) func() {
	return func() { rt.Sched.ScheduleImmediate(pid) }
}

// Requests returns the pending-request queue owned by pid, or nil if
// pid names no live process.
func (rt *Runtime) Requests(pid process.Pid) *route.Requests {
	rt.reqMu.Lock()
	defer rt.reqMu.Unlock()
	return rt.requests[pid]
}

// SetTimeout implements the `set-timeout(seconds)` host primitive;
// zero clears the deadline. The scheduler loop may be blocked in the
// selector with a longer timeout than the new deadline, so it is woken
// to recompute.
func (rt *Runtime) SetTimeout(pid process.Pid, d time.Duration) {
	if d <= 0 {
		rt.Table.SetWakeAt(pid, time.Time{}, false)
		return
	}
	rt.Table.SetWakeAt(pid, time.Now().Add(d), true)
	_ = rt.Sched.WakeSelector()
}
