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

package main

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestArgs(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "twk args suite")
}

var _ = Describe("ParseOptions", func() {
	It("keeps plain arguments positional", func() {
		o := ParseOptions([]string{"alpha", "beta"})
		Expect(o.Positional).To(Equal([]string{"alpha", "beta"}))
		Expect(o.Symbols).To(BeEmpty())
	})

	It("collects single-dash arguments as symbol flags", func() {
		o := ParseOptions([]string{"-verbose", "x", "-fast"})
		Expect(o.Symbols).To(Equal([]string{"verbose", "fast"}))
		Expect(o.HasSymbol("verbose")).To(BeTrue())
		Expect(o.HasSymbol("slow")).To(BeFalse())
		Expect(o.Positional).To(Equal([]string{"x"}))
	})

	It("pairs --name with the following value", func() {
		o := ParseOptions([]string{"--listen", "127.0.0.1:9001", "rest"})
		Expect(o.Value("listen", "")).To(Equal("127.0.0.1:9001"))
		Expect(o.Positional).To(Equal([]string{"rest"}))
	})

	It("returns the default for an unset value option", func() {
		o := ParseOptions(nil)
		Expect(o.Value("listen", "fallback")).To(Equal("fallback"))
	})

	It("consumes the rest of the arguments after ---name", func() {
		o := ParseOptions([]string{"pos", "---params", "a", "--b", "-c"})
		Expect(o.Positional).To(Equal([]string{"pos"}))
		Expect(o.Lists["params"]).To(Equal([]string{"a", "--b", "-c"}))
	})

	It("treats a lone dash as positional", func() {
		o := ParseOptions([]string{"-"})
		Expect(o.Positional).To(Equal([]string{"-"}))
	})
})

var _ = Describe("methodMessage", func() {
	It("encodes numeric parameters as integers and the rest as strings", func() {
		v := methodMessage("ping", []string{"42", "hello"})
		Expect(v.String()).To(Equal(`(ping 42 "hello")`))
	})
})
