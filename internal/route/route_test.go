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

package route_test

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/mailbox"
	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/route"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

func TestRoute(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "route suite")
}

func noop(*process.Process) process.Directive { return process.Directive{Kind: process.DirSuspend} }

var _ = Describe("Requests", func() {
	It("resolves a callback exactly once for the matching id", func() {
		reqs := route.NewRequests()
		var got wire.Value
		id, err := reqs.Issue(func(v wire.Value) { got = v })
		Expect(err).NotTo(HaveOccurred())

		cb, ok := reqs.Resolve(id)
		Expect(ok).To(BeTrue())
		cb(wire.Str("ok"))
		Expect(got).To(Equal(wire.Str("ok")))

		_, ok = reqs.Resolve(id)
		Expect(ok).To(BeFalse())
	})

	It("reports zero pending once every entry has been resolved", func() {
		reqs := route.NewRequests()
		id, err := reqs.Issue(func(wire.Value) {})
		Expect(err).NotTo(HaveOccurred())
		Expect(reqs.Pending()).To(Equal(1))

		_, ok := reqs.Resolve(id)
		Expect(ok).To(BeTrue())
		Expect(reqs.Pending()).To(Equal(0))
	})
})

var _ = Describe("Router", func() {
	var (
		tbl *process.Table
		rt  *route.Router
	)

	BeforeEach(func() {
		tbl = process.NewTable(8, twklog.New(twklog.NilLevel))
		rt = route.NewRouter(tbl, nil)
	})

	It("delivers a message into the destination mailbox", func() {
		p, err := tbl.Spawn("dst", process.NoPid, false, twklog.InfoLevel, noop)
		Expect(err).NotTo(HaveOccurred())
		mb := mailbox.New(64, 1024, func() bool { return false }, func() {})
		tbl.BindMailbox(p.Pid, mb)

		ok := rt.SendMessage(p.Pid, wire.Lst(wire.Sym("ping")))
		Expect(ok).To(BeTrue())
		Expect(mb.Empty()).To(BeFalse())
	})

	It("routes pid=-1 to the host callback instead of a mailbox", func() {
		var captured wire.Value
		rt2 := route.NewRouter(tbl, func(msg wire.Value) { captured = msg })
		ok := rt2.SendMessage(process.NoPid, wire.Lst(wire.Sym("log"), wire.Str("hi")))
		Expect(ok).To(BeTrue())
		sym, _ := captured.Head()
		Expect(sym).To(Equal("log"))
	})

	It("fails to deliver to an unknown pid", func() {
		ok := rt.SendMessage(process.Pid(9999), wire.Lst(wire.Sym("x")))
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Dispatcher", func() {
	It("replies did-request with the handler's result for a request message", func() {
		tbl := process.NewTable(8, twklog.New(twklog.NilLevel))
		rt := route.NewRouter(tbl, nil)

		client, _ := tbl.Spawn("client", process.NoPid, false, twklog.InfoLevel, noop)
		cmb := mailbox.New(64, 1024, func() bool { return false }, func() {})
		tbl.BindMailbox(client.Pid, cmb)

		server, _ := tbl.Spawn("server", process.NoPid, false, twklog.InfoLevel, noop)

		disp := route.NewDispatcher(rt, route.NewRequests(), server.Pid, stubHandler{})
		reqMsg := wire.Lst(wire.Sym("request"), wire.Int(int64(client.Pid)), wire.Str("req-1"), wire.Lst(wire.Sym("echo"), wire.Str("hi")))
		disp.Dispatch(reqMsg)

		Expect(cmb.Empty()).To(BeFalse())
		buf := make([]byte, 256)
		n := cmb.Drain(buf)
		got, err := wire.Decode(buf[:n])
		Expect(err).NotTo(HaveOccurred())
		sym, _ := got.Head()
		Expect(sym).To(Equal("did-request"))
	})

	It("invokes onQuit for a (quit) message", func() {
		tbl := process.NewTable(8, twklog.New(twklog.NilLevel))
		rt := route.NewRouter(tbl, nil)
		disp := route.NewDispatcher(rt, route.NewRequests(), process.Pid(1), nil)
		quit := false
		disp.OnQuit(func() { quit = true })
		disp.Dispatch(wire.Lst(wire.Sym("quit")))
		Expect(quit).To(BeTrue())
	})
})

type stubHandler struct{}

func (stubHandler) Method(name string) (func(process.Pid, wire.Value) (wire.Value, error), bool) {
	if name != "echo" {
		return nil, false
	}
	return func(from process.Pid, payload wire.Value) (wire.Value, error) {
		if len(payload.Elems) < 2 {
			return wire.Value{}, errors.New("missing argument")
		}
		return payload.Elems[1], nil
	}, true
}
