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
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/peer"
)

func TestCipher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "peer cipher suite")
}

var _ = Describe("SessionCipher", func() {
	It("round-trips plaintext through independent encrypt/decrypt streams", func() {
		var key [32]byte
		var iv [32]byte
		for i := range key {
			key[i] = byte(i)
		}
		for i := range iv {
			iv[i] = byte(255 - i)
		}

		enc, err := peer.NewSessionCipher(key, iv)
		Expect(err).NotTo(HaveOccurred())
		dec, err := peer.NewSessionCipher(key, iv)
		Expect(err).NotTo(HaveOccurred())

		plain := []byte("(ping 1700000000)(pong 1700000000 1700000001)")
		ct := make([]byte, len(plain))
		enc.Encrypt.XORKeyStream(ct, plain)

		pt := make([]byte, len(ct))
		dec.Decrypt.XORKeyStream(pt, ct)

		Expect(pt).To(Equal(plain))
	})

	It("produces different ciphertext for different keys", func() {
		var key1, key2, iv [32]byte
		key2[0] = 1

		c1, _ := peer.NewSessionCipher(key1, iv)
		c2, _ := peer.NewSessionCipher(key2, iv)

		plain := []byte("same plaintext, different key")
		ct1 := make([]byte, len(plain))
		ct2 := make([]byte, len(plain))
		c1.Encrypt.XORKeyStream(ct1, plain)
		c2.Encrypt.XORKeyStream(ct2, plain)

		Expect(ct1).NotTo(Equal(ct2))
	})

	It("streams byte-at-a-time identically to a single bulk call", func() {
		var key, iv [32]byte
		key[5] = 9

		bulk, _ := peer.NewSessionCipher(key, iv)
		piecemeal, _ := peer.NewSessionCipher(key, iv)

		plain := []byte("abcdefghijklmnopqrstuvwxyz")
		bulkOut := make([]byte, len(plain))
		bulk.Encrypt.XORKeyStream(bulkOut, plain)

		pieceOut := make([]byte, len(plain))
		for i := range plain {
			piecemeal.Encrypt.XORKeyStream(pieceOut[i:i+1], plain[i:i+1])
		}

		Expect(pieceOut).To(Equal(bulkOut))
	})
})
