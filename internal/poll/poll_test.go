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

package poll_test

import (
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/poll"
)

func TestPoll(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "poll suite")
}

var _ = Describe("Selector", func() {
	It("delivers a read-ready callback for a registered pipe fd", func() {
		sel, err := poll.New()
		Expect(err).NotTo(HaveOccurred())
		defer sel.Close()

		r, w, err := os.Pipe()
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		defer w.Close()

		fired := make(chan poll.Events, 1)
		Expect(sel.Register(int(r.Fd()), poll.EventRead, func(e poll.Events) {
			fired <- e
		})).To(Succeed())

		_, err = w.Write([]byte("x"))
		Expect(err).NotTo(HaveOccurred())

		Expect(sel.Wait(time.Second)).To(Succeed())

		Eventually(fired).Should(Receive())
	})

	It("returns from Wait promptly when WakeUp is called with nothing ready", func() {
		sel, err := poll.New()
		Expect(err).NotTo(HaveOccurred())
		defer sel.Close()

		done := make(chan error, 1)
		go func() { done <- sel.Wait(5 * time.Second) }()

		time.Sleep(20 * time.Millisecond)
		Expect(sel.WakeUp()).To(Succeed())

		Eventually(done, time.Second).Should(Receive(BeNil()))
	})
})
