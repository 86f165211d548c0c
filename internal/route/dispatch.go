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
	"strconv"

	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/wire"
)

// Handler is a process's user-defined message handler: named methods
// looked up by the leading symbol of an inbound message.
type Handler interface {
	// Method returns the callable for name, or ok=false if the handler
	// does not define one (the message is then ignored).
	Method(name string) (func(process.Pid, wire.Value) (wire.Value, error), bool)
}

// Dispatcher wires the scheduler's default recognition of
// `(request …)`, `(did-request …)`, `(quit)`, `(timeout)` ahead of a
// process's user-defined Handler.
type Dispatcher struct {
	router  *Router
	reqs    *Requests
	handler Handler
	self    process.Pid

	onQuit    func()
	onTimeout func()
}

// NewDispatcher builds a Dispatcher for one process.
func NewDispatcher(router *Router, reqs *Requests, self process.Pid, h Handler) *Dispatcher {
	return &Dispatcher{router: router, reqs: reqs, handler: h, self: self}
}

func (d *Dispatcher) OnQuit(f func()) { d.onQuit = f }
func (d *Dispatcher) OnTimeout(f func()) { d.onTimeout = f }

// Dispatch routes one decoded inbound message.
func (d *Dispatcher) Dispatch(msg wire.Value) {
	sym, ok := msg.Head()
	if !ok {
		return
	}

	switch sym {
	case "request":
		d.handleRequest(msg)
	case "did-request":
		d.handleDidRequest(msg)
	case "quit":
		if d.onQuit != nil {
			d.onQuit()
		}
	case "timeout":
		if d.onTimeout != nil {
			d.onTimeout()
		}
	default:
		if d.handler == nil {
			return
		}
		if fn, ok := d.handler.Method(sym); ok {
			d.invokeUserMethod(sym, fn, msg)
		}
	}
}

// handleRequest is the target side of a request: a
// `(request sender-pid id payload)` arrives, the named handler method
// runs, and the result is replied via `did-request`. A reply that
// cannot be produced comes back as a structured `(error reason)` term
// rather than silence.
func (d *Dispatcher) handleRequest(msg wire.Value) {
	if len(msg.Elems) != 4 {
		return
	}
	senderVal, idVal, payload := msg.Elems[1], msg.Elems[2], msg.Elems[3]
	if senderVal.Kind != wire.Integer || idVal.Kind != wire.String {
		return
	}
	sender := process.Pid(senderVal.Int)
	id := idVal.Str

	methodName, _ := payload.Head()
	if d.handler == nil {
		d.router.ReplyError(sender, id, "no handler installed")
		return
	}
	fn, ok := d.handler.Method(methodName)
	if !ok {
		d.router.ReplyError(sender, id, "unknown method: "+methodName)
		return
	}

	result, err := fn(sender, payload)
	if err != nil {
		d.router.ReplyError(sender, id, err.Error())
		return
	}
	if !d.router.Reply(sender, id, result) {
		d.router.ReplyError(sender, id, "reply serialization or delivery failed")
	}
}

// handleDidRequest is the sender side: look up the callback for the
// replied id and invoke it.
func (d *Dispatcher) handleDidRequest(msg wire.Value) {
	if len(msg.Elems) != 3 {
		return
	}
	idVal, response := msg.Elems[1], msg.Elems[2]
	if idVal.Kind != wire.String {
		return
	}
	cb, ok := d.reqs.Resolve(idVal.Str)
	if !ok {
		return // purged or unknown id, callback is never invoked
	}
	cb(response)
}

func (d *Dispatcher) invokeUserMethod(name string, fn func(process.Pid, wire.Value) (wire.Value, error), msg wire.Value) {
	_, _ = fn(d.self, msg)
}

// ParsePid is a small helper for decoding a pid carried as a wire
// Integer atom (used by peer-session handlers translating wire
// messages into host pids).
func ParsePid(v wire.Value) (process.Pid, bool) {
	if v.Kind != wire.Integer {
		return 0, false
	}
	return process.Pid(v.Int), true
}

// FormatPid is the inverse of ParsePid, used when building outbound messages.
func FormatPid(p process.Pid) string {
	return strconv.FormatInt(int64(p), 10)
}
