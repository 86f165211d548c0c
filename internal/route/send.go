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

package route

import (
	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/wire"
)

// HostCallback handles a message addressed to process.NoPid: instead of
// landing in a mailbox it is handed out to the embedding host.
type HostCallback func(msg wire.Value)

// Router ties a process.Table to the host callback and exposes
// send-message/send-request.
type Router struct {
	table   *process.Table
	host    HostCallback
	observe func(ok bool)
}

// NewRouter constructs a Router over table. host may be nil if this
// runtime instance never expects pid=-1 sends.
func NewRouter(table *process.Table, host HostCallback) *Router {
	return &Router{table: table, host: host}
}

// SetObserver installs a callback invoked with each SendMessage outcome,
// used to feed delivery counters.
func (r *Router) SetObserver(f func(ok bool)) {
	r.observe = f
}

// SendMessage serializes msg, appends it to the destination's mailbox,
// and reports whether it was appended.
func (r *Router) SendMessage(pid process.Pid, msg wire.Value) bool {
	ok := r.send(pid, msg)
	if r.observe != nil {
		r.observe(ok)
	}
	return ok
}

func (r *Router) send(pid process.Pid, msg wire.Value) bool {
	if pid == process.NoPid {
		if r.host != nil {
			r.host(msg)
		}
		return true
	}
	p, ok := r.table.Lookup(pid)
	if !ok || p.Mailbox == nil {
		return false
	}
	return p.Mailbox.Post(wire.Encode(msg))
}

// SendRequest issues a correlation id against the sender's Requests
// queue, then delivers `(request self-pid id payload)` to target.
func SendRequest(r *Router, reqs *Requests, self, target process.Pid, payload wire.Value, cb Callback) (string, bool, error) {
	id, err := reqs.Issue(cb)
	if err != nil {
		return "", false, err
	}
	msg := wire.Lst(wire.Sym("request"), wire.Int(int64(self)), wire.Str(id), payload)
	return id, r.SendMessage(target, msg), nil
}

// Reply is the target side of a request: send
// `(did-request id response)` back to the requester.
func (r *Router) Reply(requester process.Pid, id string, response wire.Value) bool {
	return r.SendMessage(requester, wire.Lst(wire.Sym("did-request"), wire.Str(id), response))
}

// ReplyError reports a failed request back to the requester as a
// structured `(error reason)` term instead of silence.
func (r *Router) ReplyError(requester process.Pid, id string, reason string) bool {
	return r.SendMessage(requester, wire.Lst(wire.Sym("did-request"), wire.Str(id), wire.Lst(wire.Sym("error"), wire.Str(reason))))
}
