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
	"github.com/twinkle-labs/twk/internal/poll"
	"github.com/twinkle-labs/twk/internal/process"
)

// SetProcessFD attaches fd to pid for selector polling, registering a
// callback that promotes pid back to RUNNABLE on readiness.
func (s *Scheduler) SetProcessFD(pid process.Pid, fd int) error {
	s.table.SetFD(pid, fd, true)

	s.fdMu.Lock()
	s.fdOwners[fd] = pid
	s.fdMu.Unlock()

	err := s.sel.Register(fd, poll.EventRead, func(poll.Events) {
		s.ScheduleImmediate(pid)
	})
	if err != nil {
		s.table.SetFD(pid, 0, false)
		return err
	}
	return s.sel.WakeUp()
}

// ClearProcessFD detaches fd tracking from pid without closing it
// (ownership of closing the raw descriptor stays with the caller unless
// the process is torn down, at which point Reclaim's closeFD callback
// does it).
func (s *Scheduler) ClearProcessFD(pid process.Pid, fd int) error {
	s.table.SetFD(pid, 0, false)
	s.fdMu.Lock()
	delete(s.fdOwners, fd)
	s.fdMu.Unlock()
	return s.sel.Unregister(fd)
}
