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

package peer_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/peer"
)

var _ = Describe("Identity", func() {
	It("derives a self-consistent check-encoded identity from a public key", func() {
		kp, err := peer.GenerateKeyPair()
		Expect(err).NotTo(HaveOccurred())

		id := peer.DeriveIdentity(kp.Public)
		Expect(id.Verify()).To(BeTrue())
		Expect(id.MatchesKey(kp.Public)).To(BeTrue())
	})

	It("rejects an identity asserted against the wrong key", func() {
		a, _ := peer.GenerateKeyPair()
		b, _ := peer.GenerateKeyPair()

		id := peer.DeriveIdentity(a.Public)
		Expect(id.MatchesKey(b.Public)).To(BeFalse())
	})

	It("persists and reloads a keypair in the textual pair form", func() {
		kp, err := peer.GenerateKeyPair()
		Expect(err).NotTo(HaveOccurred())

		path := filepath.Join(os.TempDir(), "twk-identity-test.key")
		defer os.Remove(path)

		Expect(peer.SaveKeyPair(path, kp)).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(HavePrefix("("))
		Expect(string(raw)).To(ContainSubstring(" . "))

		loaded, err := peer.LoadKeyPair(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Public.Bytes()).To(Equal(kp.Public.Bytes()))
	})
})
