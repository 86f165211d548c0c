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

package sched

import (
	"fmt"

	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/twkerr"
)

// workerLoop pops the head of the runnable queue, marks it RUNNING,
// executes its continuation to the next suspension point, then applies
// the state-machine transition out of RUNNING and promotes any freshly
// CREATED children.
func (s *Scheduler) workerLoop() error {
	for {
		pid, ok := s.nextRunnable()
		if !ok {
			return nil // quit observed with an empty queue
		}

		p, ok := s.table.MarkRunning(pid)
		if !ok {
			continue // lost the race (shouldn't happen: queue is single-consumer per pid)
		}

		directive, fault := s.runStep(p)
		if fault != nil {
			if s.log != nil {
				s.log.Errorf("process %d (%s) faulted: %v", p.Pid, p.Name, fault)
			}
			next, _ := s.table.AbortChild(pid, fault)
			s.afterFinish(pid, next, p)
			continue
		}

		next, _ := s.table.FinishRunning(pid, directive)
		s.afterFinish(pid, next, p)
	}
}

// runStep executes one continuation step, converting a panic into a
// ContinuationFault error instead of taking the worker down.
func (s *Scheduler) runStep(p *process.Process) (d process.Directive, fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = twkerr.New(twkerr.ContinuationFault, fmt.Sprint(r), nil)
		}
	}()
	s.busy.Add(1)
	defer s.busy.Add(-1)
	return p.Continuation(p), nil
}

// nextRunnable blocks on the runnable condvar until an item is queued
// or quit is set.
func (s *Scheduler) nextRunnable() (process.Pid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.queue.len() == 0 && !s.quit {
		s.cond.Wait()
	}
	if s.queue.len() == 0 {
		return 0, false
	}
	pid, _ := s.queue.pop()
	return pid, true
}

// afterFinish runs once a continuation step returns: promote newly
// CREATED children to RUNNABLE, reclaim a SHUTDOWN leaf immediately,
// and nudge the scheduler loop if the process now carries an fd or
// wake_at it should know about.
func (s *Scheduler) afterFinish(pid process.Pid, next process.State, p *process.Process) {
	for _, child := range s.table.PromoteCreatedChildren(pid) {
		s.Enqueue(child)
	}

	switch next {
	case process.SHUTDOWN:
		s.table.Reclaim(pid, s.closeFD)
	case process.WAITING:
		if p.Mailbox != nil && !p.Mailbox.Empty() {
			// A message landed while the process was RUNNING, so the
			// mailbox wake already missed it; promote it back now.
			s.ScheduleImmediate(pid)
			return
		}
		if p.HasFD || p.HasWakeAt {
			// A worker just changed fd/wake_at state the scheduler
			// loop may be blocked inside the selector without
			// knowing about; force a rescan.
			_ = s.sel.WakeUp()
		}
	}
}

func (s *Scheduler) closeFD(fd int) {
	s.fdMu.Lock()
	delete(s.fdOwners, fd)
	s.fdMu.Unlock()
	_ = s.sel.Unregister(fd)
	closeRawFD(fd)
}
