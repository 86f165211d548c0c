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
	"time"

	"github.com/twinkle-labs/twk/internal/mailbox"
	"github.com/twinkle-labs/twk/internal/twklog"
)

// Pid identifies a process uniquely over its lifetime. Pid % TableSize
// indexes the slot array; each reuse of a slot bumps the pid by the
// table size, so a slot never reissues the same pid.
type Pid int64

// NoPid is the sentinel used for "no parent"; a message sent to NoPid
// is handed to the host callback instead of a mailbox.
const NoPid Pid = -1

// Directive is what a Continuation returns to tell the scheduler the
// process's next suspension: plain suspend, exit, or a timed wakeup.
type Directive struct {
	Kind   DirectiveKind
	WakeAt time.Time // only meaningful for DirWaitUntil
}

type DirectiveKind uint8

const (
	// DirSuspend: plain return — become WAITING (or PENDING if
	// children remain outstanding per the worker's own check).
	DirSuspend DirectiveKind = iota
	// DirExit: continuation called exit — process moves toward DONE/SHUTDOWN.
	DirExit
	// DirWaitUntil: process wants to be woken at a specific instant.
	DirWaitUntil
)

// Continuation advances a process by exactly one step. While it runs,
// no other code touches the same process; it must not retain references
// across invocations.
type Continuation func(p *Process) Directive

// Process is an isolated unit of execution: a mailbox, an optional fd,
// an optional timed wakeup, and the continuation that advances it.
type Process struct {
	Pid       Pid
	State     State
	Name      string
	Parent    Pid // weak reference, resolved by table lookup at use time
	HasParent bool

	children []Pid // newest first, insertion at head

	Mailbox *mailbox.Mailbox

	FD        int // optional OS file descriptor; -1 if unset
	HasFD     bool
	WakeAt    time.Time
	HasWakeAt bool

	Continuation Continuation

	IsPrivileged bool
	LoggingLevel twklog.Level

	Log *twklog.Logger

	pendingErr error // unused: on-child-abort goes through the OnChildAbort callback
}

// Children returns a snapshot of the child pid list, newest-first.
func (p *Process) Children() []Pid {
	out := make([]Pid, len(p.children))
	copy(out, p.children)
	return out
}

// addChild inserts pid at the head of the child list, keeping it in
// newest-first order.
func (p *Process) addChild(pid Pid) {
	p.children = append([]Pid{pid}, p.children...)
}

// removeChild drops pid from the child list; used by the teardown path
// when a child reaches SHUTDOWN.
func (p *Process) removeChild(pid Pid) {
	for i, c := range p.children {
		if c == pid {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

func (p *Process) hasChildren() bool {
	return len(p.children) > 0
}
