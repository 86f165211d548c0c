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

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/twinkle-labs/twk/internal/mailbox"
	"github.com/twinkle-labs/twk/internal/twklog"
)

// Table is the fixed-size process slot array, indexed by
// `pid mod TableSize`. free tracks allocatable slots with a bitset,
// scanned from a rolling cursor so allocation picks the first free slot
// past the last one handed out. A pid is derived from its slot and a
// per-slot generation counter (pid = slot + gen*size), so the low bits
// of every pid always index its slot and a reused slot reissues a
// different pid each time.
//
// Slot allocation and parent/child list edits share a single table-wide
// mutex: both are small, non-blocking operations, and a single mutex
// keeps the lock order trivially sound — mailbox locks are always
// acquired afterward, never before.
type Table struct {
	mu     sync.Mutex
	slots  []*Process
	free   *bitset.BitSet
	gens   []int64
	cursor uint
	size   uint

	log *twklog.Logger

	// onReclaim is invoked (table lock released) after a slot has been
	// fully torn down, so owners of per-pid side state can drop theirs.
	onReclaim func(pid Pid)
	// onChildAbort delivers `on-child-abort` to a parent.
	onChildAbort func(parent Pid, child Pid, err error)
	// onCascadeWake notifies the scheduler a PENDING/DONE parent whose
	// last child just vanished should be re-examined.
	onCascadeWake func(pid Pid)
}

// NewTable constructs an empty table of the given capacity; zero means
// MaxProcess.
func NewTable(size uint, log *twklog.Logger) *Table {
	if size == 0 {
		size = MaxProcess
	}
	return &Table{
		slots: make([]*Process, size),
		free:  bitset.New(size).Complement(), // all bits set: every slot starts allocatable
		gens:  make([]int64, size),
		size:  size,
		log:   log,
	}
}

func (t *Table) OnReclaim(f func(pid Pid)) { t.onReclaim = f }

func (t *Table) OnChildAbort(f func(parent, child Pid, err error)) { t.onChildAbort = f }

func (t *Table) OnCascadeWake(f func(pid Pid)) { t.onCascadeWake = f }

// Spawn allocates a slot, derives a fresh pid from it, and transitions
// the new process NONE→CREATED. HasParent is set unless parent == NoPid.
// Returns an error if no free slot exists; existing processes are
// unaffected.
func (t *Table) Spawn(name string, parent Pid, privileged bool, logLevel twklog.Level, cont Continuation) (*Process, error) {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	t.mu.Lock()
	slot, ok := t.findFreeSlotLocked()
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("process: no free slot (table full at %d)", t.size)
	}

	pid := Pid(int64(slot) + t.gens[slot]*int64(t.size))
	t.gens[slot]++
	t.free.Clear(slot)

	p := &Process{
		Pid:          pid,
		State:        CREATED,
		Name:         name,
		Parent:       parent,
		HasParent:    parent != NoPid,
		FD:           -1,
		Continuation: cont,
		IsPrivileged: privileged,
		LoggingLevel: logLevel,
	}
	if t.log != nil {
		p.Log = t.log.With(twklog.Fields{"pid": int64(pid), "name": name})
	}
	t.slots[slot] = p

	if p.HasParent {
		if ps := t.lookupLocked(parent); ps != nil {
			ps.addChild(pid)
		} else {
			p.HasParent = false
		}
	}
	t.mu.Unlock()

	return p, nil
}

// findFreeSlotLocked scans for the first allocatable slot starting at
// the rolling cursor. Caller holds t.mu.
func (t *Table) findFreeSlotLocked() (uint, bool) {
	n := t.size
	for i := uint(0); i < n; i++ {
		idx := (t.cursor + i) % n
		if t.free.Test(idx) {
			t.cursor = (idx + 1) % n
			return idx, true
		}
	}
	return 0, false
}

func (t *Table) slotOf(pid Pid) uint {
	return uint(pid) % t.size
}

// lookupLocked resolves a pid to its live Process, or nil if the slot is
// empty or now holds a different pid. This is what makes pid references
// weak: they are re-resolved at every use and can observe the process
// gone.
func (t *Table) lookupLocked(pid Pid) *Process {
	slot := t.slotOf(pid)
	p := t.slots[slot]
	if p == nil || p.Pid != pid || p.State == NONE {
		return nil
	}
	return p
}

// Lookup resolves a pid to a live Process snapshot pointer (callers must
// not mutate fields outside the owning worker's continuation step).
func (t *Table) Lookup(pid Pid) (*Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.lookupLocked(pid)
	return p, p != nil
}

// BindMailbox attaches a mailbox to a freshly created process; the
// mailbox is owned exclusively by it from here on.
func (t *Table) BindMailbox(pid Pid, mb *mailbox.Mailbox) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.lookupLocked(pid); p != nil {
		p.Mailbox = mb
	}
}

// Schedule makes a CREATED or WAITING process RUNNABLE (immediate) or
// leaves it WAITING for the scheduler loop to promote; any other state
// is a no-op.
func (t *Table) Schedule(pid Pid, immediate bool) {
	t.mu.Lock()
	p := t.lookupLocked(pid)
	if p == nil {
		t.mu.Unlock()
		return
	}
	switch {
	case (p.State == CREATED || p.State == WAITING) && immediate:
		p.State = RUNNABLE
	case (p.State == CREATED || p.State == WAITING) && !immediate:
		p.State = WAITING
	}
	t.mu.Unlock()
}

// ListProcesses returns the pids of every non-NONE slot.
func (t *Table) ListProcesses() []Pid {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pid, 0, t.size)
	for _, p := range t.slots {
		if p != nil && p.State != NONE {
			out = append(out, p.Pid)
		}
	}
	return out
}

// Count reports the number of allocated (non-NONE) slots.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.slots {
		if p != nil && p.State != NONE {
			n++
		}
	}
	return n
}

// Exists reports whether pid currently names a live process.
func (t *Table) Exists(pid Pid) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookupLocked(pid) != nil
}
