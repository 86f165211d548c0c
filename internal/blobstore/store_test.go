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

package blobstore_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/blobstore"
	"github.com/twinkle-labs/twk/internal/twkconfig"
)

func TestBlobstore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "blobstore suite")
}

var _ = Describe("Store", func() {
	var (
		paths twkconfig.Paths
		store *blobstore.Store
	)

	BeforeEach(func() {
		paths = twkconfig.Paths{Dist: GinkgoT().TempDir(), Var: GinkgoT().TempDir()}
		Expect(paths.EnsureLayout()).To(Succeed())
		store = blobstore.New(paths)
	})

	It("stores a blob under its two-hex-digit shard directory", func() {
		content := []byte("the quick brown fox")
		hash, err := store.Put(bytes.NewReader(content), int64(len(content)), false)
		Expect(err).NotTo(HaveOccurred())

		sum := sha256.Sum256(content)
		Expect(hash).To(Equal(hex.EncodeToString(sum[:])))

		p, err := store.PathFor(hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(filepath.Join(paths.Var, "data", "blob", hash[:2], hash[2:])))
		Expect(store.Exists(hash)).To(BeTrue())
	})

	It("reads back exactly what was stored", func() {
		content := []byte("payload bytes")
		hash, err := store.Put(bytes.NewReader(content), int64(len(content)), false)
		Expect(err).NotTo(HaveOccurred())

		r, err := store.Open(hash)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		got, err := io.ReadAll(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(content))
	})

	It("is idempotent for identical content", func() {
		content := []byte("same bytes twice")
		h1, err := store.Put(bytes.NewReader(content), int64(len(content)), false)
		Expect(err).NotTo(HaveOccurred())
		h2, err := store.Put(bytes.NewReader(content), int64(len(content)), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(h1).To(Equal(h2))
	})

	It("leaves nothing staged under cache/upload after a successful put", func() {
		content := strings.Repeat("x", 64<<10)
		_, err := store.Put(strings.NewReader(content), int64(len(content)), false)
		Expect(err).NotTo(HaveOccurred())

		entries, err := os.ReadDir(filepath.Join(paths.Var, "cache", "upload"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("returns ErrNotFound for an absent hash", func() {
		sum := sha256.Sum256([]byte("never stored"))
		_, err := store.Open(hex.EncodeToString(sum[:]))
		Expect(err).To(MatchError(blobstore.ErrNotFound))
	})

	It("rejects a hash too short to shard", func() {
		_, err := store.PathFor("ab")
		Expect(err).To(HaveOccurred())
	})
})
