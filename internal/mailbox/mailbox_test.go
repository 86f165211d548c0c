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

package mailbox_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/mailbox"
)

func TestMailbox(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "mailbox suite")
}

var _ = Describe("Mailbox", func() {
	var (
		waiting bool
		woke    int
		mb      *mailbox.Mailbox
	)

	BeforeEach(func() {
		waiting = false
		woke = 0
		mb = mailbox.New(8, 64, func() bool { return waiting }, func() { woke++ })
	})

	It("starts empty", func() {
		Expect(mb.Empty()).To(BeTrue())
		Expect(mb.Len()).To(Equal(0))
	})

	It("posts and drains a single message in FIFO order", func() {
		Expect(mb.Post([]byte("hello"))).To(BeTrue())
		Expect(mb.Len()).To(Equal(5))

		buf := make([]byte, 5)
		n := mb.Drain(buf)
		Expect(n).To(Equal(5))
		Expect(string(buf)).To(Equal("hello"))
		Expect(mb.Empty()).To(BeTrue())
	})

	It("wakes the owning process only when it was WAITING", func() {
		waiting = false
		Expect(mb.Post([]byte("a"))).To(BeTrue())
		Expect(woke).To(Equal(0))

		waiting = true
		Expect(mb.Post([]byte("b"))).To(BeTrue())
		Expect(woke).To(Equal(1))
	})

	It("fails a Post that would overflow the ceiling, with no observable side effect", func() {
		tiny := mailbox.New(4, 4, func() bool { return false }, func() {})
		ok := tiny.Post([]byte("abcdefgh"))
		Expect(ok).To(BeFalse())
		Expect(tiny.Len()).To(Equal(0))
		Expect(tiny.Empty()).To(BeTrue())
	})

	It("grows capacity by doubling as occupancy approaches half", func() {
		small := mailbox.New(8, 64, func() bool { return false }, func() {})
		before := small.Capacity()
		Expect(small.Post([]byte("abcdef"))).To(BeTrue())
		// Draining one byte leaves 5 of 8 occupied, past half: Drain grows.
		small.Drain(make([]byte, 1))
		Expect(small.Capacity()).To(Equal(before * 2))
	})

	It("rolls back a multi-chunk append to its snapshot on overflow", func() {
		capped := mailbox.New(4, 4, func() bool { return false }, func() {})
		Expect(capped.Post([]byte("a"))).To(BeTrue())
		lenBefore := capped.Len()

		h := capped.BeginAppend()
		capped.AppendChunk(h, []byte("xx"))
		capped.AppendChunk(h, []byte("yyyyyyyyyy")) // forces overflow against the 4-byte ceiling
		ok := capped.EndAppend(h)

		Expect(ok).To(BeFalse())
		Expect(capped.Len()).To(Equal(lenBefore))
	})

	It("commits a multi-chunk append atomically when it fits", func() {
		h := mb.BeginAppend()
		mb.AppendChunk(h, []byte("ab"))
		mb.AppendChunk(h, []byte("cd"))
		ok := mb.EndAppend(h)
		Expect(ok).To(BeTrue())

		buf := make([]byte, 4)
		n := mb.Drain(buf)
		Expect(n).To(Equal(4))
		Expect(string(buf)).To(Equal("abcd"))
	})

	It("preserves byte order across a ring wraparound", func() {
		Expect(mb.Post([]byte("1234"))).To(BeTrue())
		out := make([]byte, 4)
		mb.Drain(out)
		Expect(mb.Post([]byte("567890"))).To(BeTrue())

		buf := make([]byte, 6)
		n := mb.Drain(buf)
		Expect(n).To(Equal(6))
		Expect(string(buf)).To(Equal("567890"))
	})
})
