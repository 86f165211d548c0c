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

package runtime

import (
	"time"

	"github.com/twinkle-labs/twk/internal/mailbox"
	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/route"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

// abortMessage builds the `on-child-abort` term delivered to a parent
// when a child's continuation faults.
func abortMessage(child process.Pid, cause error) wire.Value {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	return wire.Lst(wire.Sym("on-child-abort"), wire.Int(int64(child)), wire.Str(reason))
}

// API is the in-process host surface consumed by process bodies:
// ordinary Go methods a Continuation closes over, bound to the one
// process that owns them.
type API struct {
	rt   *Runtime
	self process.Pid
}

// NewAPI binds an API to pid, for use from that process's Continuation.
func NewAPI(rt *Runtime, pid process.Pid) *API {
	return &API{rt: rt, self: pid}
}

// GetPid implements `get-pid`.
func (a *API) GetPid() process.Pid { return a.self }

// GetParentPid implements `get-parent-pid`.
func (a *API) GetParentPid() (process.Pid, bool) {
	p, ok := a.rt.Table.Lookup(a.self)
	if !ok || !p.HasParent {
		return process.NoPid, false
	}
	return p.Parent, true
}

// Spawn implements `spawn(procedure, arglist)`. The child inherits the
// parent's privilege and logging level unless clearPrivilege is set.
func (a *API) Spawn(name string, clearPrivilege bool, cont process.Continuation) (process.Pid, error) {
	p, ok := a.rt.Table.Lookup(a.self)
	privileged, level := false, twklog.InfoLevel
	if ok {
		privileged, level = p.IsPrivileged && !clearPrivilege, p.LoggingLevel
	}
	child, err := a.rt.Spawn(name, a.self, privileged, level, cont)
	if err != nil {
		return process.NoPid, err
	}
	return child.Pid, nil
}

// SendMessage implements `send-message(pid|-1, message)`.
func (a *API) SendMessage(pid process.Pid, msg wire.Value) bool {
	return a.rt.Router.SendMessage(pid, msg)
}

// SendRequest implements `send-request` with response correlation.
func (a *API) SendRequest(target process.Pid, payload wire.Value, cb route.Callback) (string, bool, error) {
	reqs := a.rt.Requests(a.self)
	return route.SendRequest(a.rt.Router, reqs, a.self, target, payload, cb)
}

// ProcessExists implements `process-exists?`.
func (a *API) ProcessExists(pid process.Pid) bool { return a.rt.Table.Exists(pid) }

// ListProcesses implements `list-processes`.
func (a *API) ListProcesses() []process.Pid { return a.rt.Table.ListProcesses() }

// SetProcessName implements `set-process-name`.
func (a *API) SetProcessName(name string) { a.rt.Table.SetName(a.self, name) }

// SetProcessSocket implements `set-process-socket(pid, fd)`.
func (a *API) SetProcessSocket(pid process.Pid, fd int) error {
	return a.rt.Sched.SetProcessFD(pid, fd)
}

// OpenMbox implements `open-mbox([size]) → input-port`: this process's
// own mailbox, for directly draining bytes rather than going through
// the dispatch loop.
func (a *API) OpenMbox() *mailbox.Mailbox {
	p, ok := a.rt.Table.Lookup(a.self)
	if !ok {
		return nil
	}
	return p.Mailbox
}

// Exit is the `exit` suspension primitive: the continuation returns it
// instead of mutating any global state.
func Exit() process.Directive { return process.Directive{Kind: process.DirExit} }

// Wait implements `wait_for_message`. Whether the process lands in
// WAITING or PENDING is computed by the table from whether children
// remain, not chosen by the continuation.
func Wait() process.Directive { return process.Directive{Kind: process.DirSuspend} }

// WaitUntil implements `wait_until(instant)` / `set-timeout(seconds)`.
func WaitUntil(at time.Time) process.Directive {
	return process.Directive{Kind: process.DirWaitUntil, WakeAt: at}
}

// GetTimeout implements `get-timeout`.
func (a *API) GetTimeout() (time.Time, bool) {
	p, ok := a.rt.Table.Lookup(a.self)
	if !ok {
		return time.Time{}, false
	}
	return p.WakeAt, p.HasWakeAt
}

// SetLoggingLevel implements `set-logging-level`.
func (a *API) SetLoggingLevel(level twklog.Level) {
	p, ok := a.rt.Table.Lookup(a.self)
	if !ok {
		return
	}
	p.LoggingLevel = level
	if p.Log != nil {
		p.Log.SetLevel(level)
	}
}

// Verbose implements `verbose`: log at Info if the process's level allows it.
func (a *API) Verbose(msg string) {
	if p, ok := a.rt.Table.Lookup(a.self); ok && p.Log != nil {
		p.Log.Infof("%s", msg)
	}
}

// Vverbose implements `vverbose`: log at Debug if the process's level allows it.
func (a *API) Vverbose(msg string) {
	if p, ok := a.rt.Table.Lookup(a.self); ok && p.Log != nil {
		p.Log.Debugf("%s", msg)
	}
}
