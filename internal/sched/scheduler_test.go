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

package sched_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/poll"
	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/sched"
	"github.com/twinkle-labs/twk/internal/twklog"
)

func TestSched(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "sched suite")
}

func newScheduler(workers int) (*sched.Scheduler, *process.Table, func()) {
	tbl := process.NewTable(64, twklog.New(twklog.NilLevel))
	sel, err := poll.New()
	Expect(err).NotTo(HaveOccurred())
	s := sched.New(tbl, sel, twklog.New(twklog.NilLevel), sched.Config{NumWorkers: workers, SelectorTimeout: 200 * time.Millisecond})
	return s, tbl, func() { sel.Close() }
}

var _ = Describe("Scheduler", func() {
	It("runs a spawned process to completion", func() {
		s, _, cleanup := newScheduler(4)
		defer cleanup()

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() { defer wg.Done(); _ = s.Run(ctx) }()

		var ran atomic.Bool
		_, err := s.Spawn("solo", process.NoPid, false, twklog.InfoLevel, func(p *process.Process) process.Directive {
			ran.Store(true)
			return process.Directive{Kind: process.DirExit}
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(ran.Load, time.Second).Should(BeTrue())
		cancel()
		wg.Wait()
	})

	It("fires a wake_at deadline well before the selector's outer bound", func() {
		tbl := process.NewTable(64, twklog.New(twklog.NilLevel))
		sel, err := poll.New()
		Expect(err).NotTo(HaveOccurred())
		defer sel.Close()
		// Leave SelectorTimeout unset so the default 10s bound applies.
		s := sched.New(tbl, sel, twklog.New(twklog.NilLevel), sched.Config{NumWorkers: 2})

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() { defer wg.Done(); _ = s.Run(ctx) }()

		var runs atomic.Int32
		start := time.Now()
		var woken atomic.Int64
		_, err = s.Spawn("timer", process.NoPid, false, twklog.InfoLevel, func(p *process.Process) process.Directive {
			if runs.Add(1) == 1 {
				return process.Directive{Kind: process.DirWaitUntil, WakeAt: time.Now().Add(50 * time.Millisecond)}
			}
			woken.Store(int64(time.Since(start)))
			return process.Directive{Kind: process.DirExit}
		})
		Expect(err).NotTo(HaveOccurred())

		// The deadline must cut the 10s wait short, not ride out the
		// full tick.
		Eventually(func() int32 { return runs.Load() }, 2*time.Second, 5*time.Millisecond).Should(Equal(int32(2)))
		Expect(time.Duration(woken.Load())).To(BeNumerically("<", time.Second))

		cancel()
		wg.Wait()
	})

	It("returns a suspended parent to WAITING once its child exits", func() {
		s, tbl, cleanup := newScheduler(4)
		defer cleanup()

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() { defer wg.Done(); _ = s.Run(ctx) }()

		var parentPid process.Pid

		parent, err := s.Spawn("parent", process.NoPid, false, twklog.InfoLevel, func(p *process.Process) process.Directive {
			return process.Directive{Kind: process.DirSuspend} // suspends with children outstanding -> PENDING
		})
		Expect(err).NotTo(HaveOccurred())
		parentPid = parent.Pid

		_, err = s.Spawn("childA", parentPid, false, twklog.InfoLevel, func(p *process.Process) process.Directive {
			return process.Directive{Kind: process.DirExit} // exits immediately, no children -> SHUTDOWN
		})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() bool {
			pp, ok := tbl.Lookup(parentPid)
			return ok && pp.State == process.WAITING
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		cancel()
		wg.Wait()
	})
})
