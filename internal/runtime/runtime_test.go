//go:build linux || darwin

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

package runtime_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/twinkle-labs/twk/internal/process"
	rt "github.com/twinkle-labs/twk/internal/runtime"
	"github.com/twinkle-labs/twk/internal/twkconfig"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

func TestRuntime(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "runtime suite")
}

func newRuntime(host func(wire.Value)) *rt.Runtime {
	paths := twkconfig.Paths{Dist: GinkgoT().TempDir(), Var: GinkgoT().TempDir()}
	tuning := twkconfig.Tuning{
		MaxThreads:      4,
		MaxMboxSize:     1 << 20,
		SelectorTimeout: 100 * time.Millisecond,
	}
	r, err := rt.New(paths, tuning, twklog.New(twklog.NilLevel), host)
	Expect(err).NotTo(HaveOccurred())
	return r
}

var _ = Describe("Runtime", func() {
	var (
		runtime *rt.Runtime
		cancel  context.CancelFunc
		runDone chan error
	)

	start := func(host func(wire.Value)) {
		runtime = newRuntime(host)
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		runDone = make(chan error, 1)
		go func() { runDone <- runtime.Run(ctx) }()
	}

	AfterEach(func() {
		cancel()
		Eventually(runDone, "2s").Should(Receive())
	})

	It("binds a mailbox and a request queue to every spawned process", func() {
		start(nil)
		p, err := runtime.Spawn("root", process.NoPid, true, twklog.NilLevel,
			func(*process.Process) process.Directive { return rt.Wait() })
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Mailbox).NotTo(BeNil())
		Expect(runtime.Requests(p.Pid)).NotTo(BeNil())
	})

	It("delivers on-child-abort to the parent when a child panics", func() {
		start(nil)
		parent, err := runtime.Spawn("parent", process.NoPid, true, twklog.NilLevel,
			func(*process.Process) process.Directive { return rt.Wait() })
		Expect(err).NotTo(HaveOccurred())

		child, err := runtime.Spawn("child", parent.Pid, false, twklog.NilLevel,
			func(*process.Process) process.Directive { panic("boom") })
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int { return parent.Mailbox.Len() }, "2s").Should(BeNumerically(">", 0))

		buf := make([]byte, 1024)
		n := parent.Mailbox.Drain(buf)
		v, err := wire.Decode(buf[:n])
		Expect(err).NotTo(HaveOccurred())
		sym, _ := v.Head()
		Expect(sym).To(Equal("on-child-abort"))
		Expect(v.Elems[1].Int).To(Equal(int64(child.Pid)))
		Expect(v.Elems[2].Str).To(ContainSubstring("boom"))

		Eventually(func() bool { return runtime.Table.Exists(child.Pid) }, "2s").Should(BeFalse())
	})

	It("hands pid -1 messages to the host callback", func() {
		got := make(chan wire.Value, 1)
		start(func(v wire.Value) { got <- v })

		Expect(runtime.Router.SendMessage(process.NoPid, wire.Lst(wire.Sym("hello")))).To(BeTrue())
		Eventually(got).Should(Receive())
	})

	It("wakes a waiting process when its timeout elapses", func() {
		start(nil)
		ran := make(chan struct{}, 8)
		first := true
		p, err := runtime.Spawn("timer", process.NoPid, false, twklog.NilLevel,
			func(*process.Process) process.Directive {
				ran <- struct{}{}
				if first {
					first = false
					return rt.WaitUntil(time.Now().Add(50 * time.Millisecond))
				}
				return rt.Exit()
			})
		Expect(err).NotTo(HaveOccurred())

		Eventually(ran, "1s").Should(Receive())        // initial step
		Eventually(ran, "2s").Should(Receive())        // fired by the timer
		Eventually(func() bool { return runtime.Table.Exists(p.Pid) }, "2s").Should(BeFalse())
	})

	It("carries ciphered bytes between two attached socket ports", func() {
		start(nil)
		idle := func(*process.Process) process.Directive { return rt.Wait() }
		server, err := runtime.Spawn("server", process.NoPid, false, twklog.NilLevel, idle)
		Expect(err).NotTo(HaveOccurred())
		client, err := runtime.Spawn("client", process.NoPid, false, twklog.NilLevel, idle)
		Expect(err).NotTo(HaveOccurred())

		serverAPI := rt.NewAPI(runtime, server.Pid)
		clientAPI := rt.NewAPI(runtime, client.Pid)

		ln, err := serverAPI.OpenTCPServer("127.0.0.1", 0)
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		accepted := make(chan net.Conn, 1)
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				accepted <- conn
			}
		}()

		addr := ln.Addr().(*net.TCPAddr)
		conn, err := clientAPI.Connect("127.0.0.1", addr.Port)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		var serverConn net.Conn
		Eventually(accepted, "2s").Should(Receive(&serverConn))
		defer serverConn.Close()
		Expect(serverAPI.SetProcessConn(server.Pid, serverConn)).To(Succeed())

		key := bytes.Repeat([]byte{0x42}, 32)
		iv := bytes.Repeat([]byte{0x17}, 16)
		Expect(clientAPI.SetStreamCipher("aes-256-cfb8", key, iv)).To(Succeed())
		Expect(serverAPI.SetStreamCipher("aes-256-cfb8", key, iv)).To(Succeed())

		out, err := clientAPI.OpenSocketOutput()
		Expect(err).NotTo(HaveOccurred())
		in, err := serverAPI.OpenSocketInput()
		Expect(err).NotTo(HaveOccurred())

		msg := []byte("over the ciphered port")
		_, err = out.Write(msg)
		Expect(err).NotTo(HaveOccurred())

		got := make([]byte, len(msg))
		_, err = io.ReadFull(in, got)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(msg))
	})

	It("rejects an unknown stream cipher algorithm", func() {
		start(nil)
		p, err := runtime.Spawn("p", process.NoPid, false, twklog.NilLevel,
			func(*process.Process) process.Directive { return rt.Wait() })
		Expect(err).NotTo(HaveOccurred())
		api := rt.NewAPI(runtime, p.Pid)
		Expect(api.SetStreamCipher("rc4", nil, nil)).To(HaveOccurred())
	})

	It("samples scheduler gauges through the metrics registry", func() {
		start(nil)
		reg := prometheus.NewRegistry()
		m, err := runtime.EnableMetrics(reg)
		Expect(err).NotTo(HaveOccurred())
		Expect(m).NotTo(BeNil())

		_, err = runtime.Spawn("idle", process.NoPid, false, twklog.NilLevel,
			func(*process.Process) process.Directive { return rt.Wait() })
		Expect(err).NotTo(HaveOccurred())

		Eventually(runtime.ProcessCount, "1s").Should(Equal(1))

		families, err := reg.Gather()
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}
		Expect(names).To(ContainElements("twk_live_processes", "twk_runnable_processes", "twk_busy_workers"))
	})
})
