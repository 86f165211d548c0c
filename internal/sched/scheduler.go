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

// Package sched runs a fixed pool of worker goroutines against the
// runnable processes of a table, plus one dedicated scheduler-loop
// goroutine that owns the central selector (internal/poll) and promotes
// WAITING processes back to RUNNABLE when their mailbox gets data or
// their wake_at passes.
//
// Coordination is deliberately coarse: a runnable-list mutex and
// condvar, a per-mailbox lock (internal/mailbox), and a self-pipe-style
// wakeup (internal/poll.Selector.WakeUp) so a worker can interrupt the
// scheduler loop's blocking select.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/twinkle-labs/twk/internal/poll"
	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/twklog"
)

// Config carries the twkconfig.Tuning knobs this package actually
// consumes.
type Config struct {
	NumWorkers      int
	SelectorTimeout time.Duration // capped at 10s so late wake_at updates are still honored
}

func (c Config) withDefaults() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 8
	}
	if c.SelectorTimeout <= 0 || c.SelectorTimeout > 10*time.Second {
		c.SelectorTimeout = 10 * time.Second
	}
	return c
}

// Scheduler ties the process table, the runnable queue, and the
// selector together; one instance is threaded through every worker.
type Scheduler struct {
	table *process.Table
	sel   poll.Selector
	log   *twklog.Logger
	cfg   Config

	mu    sync.Mutex
	cond  *sync.Cond
	queue runnableQueue
	quit  bool
	busy  atomic.Int64

	fdMu     sync.Mutex
	fdOwners map[int]process.Pid
}

// New constructs a Scheduler bound to an existing process table and
// selector. Callers obtain the selector from poll.New() (platform
// selected) before calling this.
func New(table *process.Table, sel poll.Selector, log *twklog.Logger, cfg Config) *Scheduler {
	s := &Scheduler{
		table:    table,
		sel:      sel,
		log:      log,
		cfg:      cfg.withDefaults(),
		fdOwners: make(map[int]process.Pid),
	}
	s.cond = sync.NewCond(&s.mu)

	table.OnCascadeWake(func(pid process.Pid) {
		// A DONE parent whose last child vanished is now SHUTDOWN and
		// will never run again; reclaim it here rather than waiting
		// out the selector's next tick. Reclaim may cascade further up
		// the tree, re-entering this callback.
		if p, ok := table.Lookup(pid); ok && p.State == process.SHUTDOWN {
			table.Reclaim(pid, s.closeFD)
			return
		}
		s.ScheduleImmediate(pid)
	})
	return s
}

// Enqueue appends pid to the runnable queue and wakes one worker.
// Callers must have already transitioned the process to RUNNABLE in
// the table; Enqueue only manages the queue.
func (s *Scheduler) Enqueue(pid process.Pid) {
	s.mu.Lock()
	s.queue.push(pid)
	s.mu.Unlock()
	s.cond.Signal()
}

// ScheduleImmediate transitions a CREATED or WAITING process to
// RUNNABLE and enqueues it for the next free worker.
func (s *Scheduler) ScheduleImmediate(pid process.Pid) {
	s.table.Schedule(pid, true)
	if p, ok := s.table.Lookup(pid); ok && p.State == process.RUNNABLE {
		s.Enqueue(pid)
	}
}

// Spawn allocates a process via the table and schedules it to run
// immediately.
func (s *Scheduler) Spawn(name string, parent process.Pid, privileged bool, level twklog.Level, cont process.Continuation) (*process.Process, error) {
	p, err := s.table.Spawn(name, parent, privileged, level, cont)
	if err != nil {
		return nil, err
	}
	s.ScheduleImmediate(p.Pid)
	return p, nil
}

// Run starts NumWorkers worker goroutines and the scheduler loop, and
// blocks until Shutdown is called or ctx is cancelled. Shutdown stops
// the scheduler loop after its current iteration, signals all workers
// to exit at their next condvar check, and waits for them to drain.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		s.Shutdown()
		return nil
	})

	g.Go(func() error { return s.schedulerLoop(ctx) })

	for i := 0; i < s.cfg.NumWorkers; i++ {
		g.Go(func() error { return s.workerLoop() })
	}

	return g.Wait()
}

// WakeSelector interrupts the scheduler loop's current selector wait so
// it re-reads fds and deadlines; callers use it after changing a
// process's wake_at from outside a worker step.
func (s *Scheduler) WakeSelector() error {
	return s.sel.WakeUp()
}

// QueueDepth reports how many processes are queued for a worker.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// Busy reports how many workers are currently inside a continuation.
func (s *Scheduler) Busy() int {
	return int(s.busy.Load())
}

// Shutdown sets the quit flag and wakes every worker and the scheduler
// loop so they can observe it and exit.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.quit = true
	s.mu.Unlock()
	s.cond.Broadcast()
	_ = s.sel.WakeUp()
}
