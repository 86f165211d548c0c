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

package process

import "time"

// FinishRunning applies the state-machine transition out of RUNNING once
// a worker's continuation step returns. It does
// not itself dequeue/enqueue runnable processes; the caller (internal/sched)
// is responsible for acting on the returned nextState by, e.g., enqueuing
// onto the runnable list or recording wake_at with the scheduler loop.
func (t *Table) FinishRunning(pid Pid, d Directive) (next State, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.lookupLocked(pid)
	if p == nil || p.State != RUNNING {
		return NONE, false
	}

	switch d.Kind {
	case DirExit:
		if p.hasChildren() {
			p.State = DONE
		} else {
			p.State = SHUTDOWN
		}
	case DirWaitUntil:
		p.WakeAt = d.WakeAt
		p.HasWakeAt = true
		if p.hasChildren() {
			p.State = PENDING
		} else {
			p.State = WAITING
		}
	default: // DirSuspend
		p.HasWakeAt = false
		if p.hasChildren() {
			p.State = PENDING
		} else {
			p.State = WAITING
		}
	}
	return p.State, true
}

// PromoteCreatedChildren transitions every CREATED child of pid to
// RUNNABLE, in the child list's existing newest-first order.
// Returns the pids promoted, for the caller to enqueue onto the
// runnable set.
func (t *Table) PromoteCreatedChildren(pid Pid) []Pid {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.lookupLocked(pid)
	if parent == nil {
		return nil
	}
	var promoted []Pid
	for _, cpid := range parent.children {
		if c := t.lookupLocked(cpid); c != nil && c.State == CREATED {
			c.State = RUNNABLE
			promoted = append(promoted, cpid)
		}
	}
	return promoted
}

// AbortChild handles an uncaught continuation fault: `on-child-abort`
// is sent to the parent (if any) and the fault
// pushes the child toward DONE/SHUTDOWN exactly as if it had called
// exit.
func (t *Table) AbortChild(pid Pid, cause error) (next State, ok bool) {
	t.mu.Lock()
	p := t.lookupLocked(pid)
	if p == nil {
		t.mu.Unlock()
		return NONE, false
	}
	if p.hasChildren() {
		p.State = DONE
	} else {
		p.State = SHUTDOWN
	}
	next = p.State
	parent, hasParent := p.Parent, p.HasParent
	t.mu.Unlock()

	if hasParent && t.onChildAbort != nil {
		t.onChildAbort(parent, pid, cause)
	}
	return next, true
}

// Reclaim destroys a slot in SHUTDOWN state: closes the fd, drops the
// mailbox, detaches the process from its parent's child list, clears
// the slot for reuse, and cascade-wakes the parent if this was its
// last child. closeFD is invoked with the process's fd
// (if any) while the table lock is NOT held, since fd closure is an
// external syscall.
func (t *Table) Reclaim(pid Pid, closeFD func(fd int)) {
	t.mu.Lock()
	p := t.lookupLocked(pid)
	if p == nil || p.State != SHUTDOWN {
		t.mu.Unlock()
		return
	}

	fd, hasFD := p.FD, p.HasFD
	parent, hasParent := p.Parent, p.HasParent

	slot := t.slotOf(pid)
	t.slots[slot] = nil
	t.free.Set(slot)

	var cascade Pid
	var shouldCascade bool
	if hasParent {
		if pp := t.lookupLocked(parent); pp != nil {
			pp.removeChild(pid)
			if !pp.hasChildren() {
				switch pp.State {
				case PENDING:
					pp.State = WAITING
					cascade, shouldCascade = parent, true
				case DONE:
					pp.State = SHUTDOWN
					cascade, shouldCascade = parent, true
				}
			}
		}
	}
	t.mu.Unlock()

	if hasFD && closeFD != nil {
		closeFD(fd)
	}
	if t.onReclaim != nil {
		t.onReclaim(pid)
	}
	if shouldCascade && t.onCascadeWake != nil {
		t.onCascadeWake(cascade)
	}
}

// SetFD attaches (or clears, with ok=false) an OS file descriptor the
// selector polls on this process's behalf.
func (t *Table) SetFD(pid Pid, fd int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.lookupLocked(pid); p != nil {
		p.FD, p.HasFD = fd, ok
	}
}

// SetWakeAt records a one-shot wakeup deadline; ok=false clears it.
func (t *Table) SetWakeAt(pid Pid, at time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.lookupLocked(pid); p != nil {
		p.WakeAt, p.HasWakeAt = at, ok
	}
}

// SetName renames a live process, truncating to MaxNameLen.
func (t *Table) SetName(pid Pid, name string) {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.lookupLocked(pid); p != nil {
		p.Name = name
	}
}

// TryRunnable transitions a WAITING process to RUNNABLE if its mailbox
// has unread bytes or its wake_at has passed. Returns true if the
// transition happened.
func (t *Table) TryRunnable(pid Pid, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.lookupLocked(pid)
	if p == nil || p.State != WAITING {
		return false
	}
	if p.Mailbox != nil && !p.Mailbox.Empty() {
		p.State = RUNNABLE
		return true
	}
	if p.HasWakeAt && !now.Before(p.WakeAt) {
		p.State = RUNNABLE
		return true
	}
	return false
}

// WaitingSnapshot returns the pids currently in WAITING state, for the
// scheduler loop's table scan.
func (t *Table) WaitingSnapshot() []Pid {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Pid
	for _, p := range t.slots {
		if p != nil && p.State == WAITING {
			out = append(out, p.Pid)
		}
	}
	return out
}

// NextWakeAt returns the earliest pending wake_at among WAITING
// processes, so the scheduler loop can cap its selector timeout at the
// nearest deadline instead of sleeping the full bound past it.
func (t *Table) NextWakeAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var earliest time.Time
	found := false
	for _, p := range t.slots {
		if p == nil || p.State != WAITING || !p.HasWakeAt {
			continue
		}
		if !found || p.WakeAt.Before(earliest) {
			earliest = p.WakeAt
			found = true
		}
	}
	return earliest, found
}

// ShutdownSnapshot returns pids in SHUTDOWN state awaiting reclamation.
func (t *Table) ShutdownSnapshot() []Pid {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Pid
	for _, p := range t.slots {
		if p != nil && p.State == SHUTDOWN {
			out = append(out, p.Pid)
		}
	}
	return out
}

// MarkRunning transitions a RUNNABLE process to RUNNING; returns the
// Process for the worker to execute, or nil if it lost the race (e.g.
// another mechanism already moved it).
func (t *Table) MarkRunning(pid Pid) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.lookupLocked(pid)
	if p == nil || p.State != RUNNABLE {
		return nil, false
	}
	p.State = RUNNING
	return p, true
}
