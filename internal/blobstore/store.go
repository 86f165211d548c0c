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

package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/twinkle-labs/twk/internal/twkconfig"
)

// ErrNotFound is returned by Open when no blob exists for the given hash.
var ErrNotFound = errors.New("blobstore: not found")

// Store is a content-addressed blob store rooted at a Paths.Var
// directory.
type Store struct {
	paths twkconfig.Paths
}

// New returns a Store rooted at paths.Var. EnsureLayout must already
// have been called on paths (cmd/twk does this once at startup).
func New(paths twkconfig.Paths) *Store {
	return &Store{paths: paths}
}

// dirFor returns the two-hex-digit shard directory a hash is stored
// under.
func dirFor(hash string) (shard, rest string, err error) {
	if len(hash) < 3 {
		return "", "", fmt.Errorf("blobstore: hash %q too short", hash)
	}
	return hash[:2], hash[2:], nil
}

// PathFor returns the on-disk path of the blob named by hash, whether
// or not it currently exists.
func (s *Store) PathFor(hash string) (string, error) {
	shard, rest, err := dirFor(hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.paths.Var, "data", "blob", shard, rest), nil
}

// Exists reports whether a blob with the given hash is already stored.
func (s *Store) Exists(hash string) bool {
	p, err := s.PathFor(hash)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Open returns a reader over the blob named by hash.
func (s *Store) Open(hash string) (io.ReadCloser, error) {
	p, err := s.PathFor(hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Put stages src under cache/upload/, hashing it as it is copied, reports
// progress on an mpb bar sized to size (use 0 if unknown — the bar then
// runs as a spinner-style counter), and on success renames the staged
// file into its final content-addressed path. If a blob with the same
// hash already exists, the staged file is discarded instead of
// overwriting it (content-addressed storage is naturally idempotent).
func (s *Store) Put(src io.Reader, size int64, showProgress bool) (hash string, err error) {
	staged, err := newStaged(filepath.Join(s.paths.Var, "cache", "upload"), "blob-*")
	if err != nil {
		return "", err
	}
	stagedPath := staged.Path()
	defer func() {
		if err != nil {
			_ = staged.CloseDelete()
		}
	}()

	var bars *mpb.Progress
	if showProgress {
		bars = mpb.New()
		bar := bars.AddBar(size,
			mpb.PrependDecorators(decor.Name("upload")),
			mpb.AppendDecorators(decor.CountersKibiByte("% .2f / % .2f")),
		)
		staged.RegisterFctIncrement(func(n int64) { bar.IncrBy(int(n)) })
	}

	h := sha256.New()
	if _, err = io.Copy(io.MultiWriter(staged, h), src); err != nil {
		return "", err
	}
	if bars != nil {
		bars.Wait()
	}
	if err = staged.Sync(); err != nil {
		return "", err
	}
	if err = staged.Close(); err != nil {
		return "", err
	}

	hash = hex.EncodeToString(h.Sum(nil))
	dest, err := s.PathFor(hash)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if s.Exists(hash) {
		_ = os.Remove(stagedPath)
		return hash, nil
	}
	if err = os.Rename(stagedPath, dest); err != nil {
		return "", err
	}
	return hash, nil
}
