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
	"os"
	"sync/atomic"
)

// FctIncrement is invoked after every successful write with the number
// of bytes just staged, so callers can feed a progress bar without the
// staging path knowing anything about rendering.
type FctIncrement func(size int64)

// stagedFile is a half-written upload living under cache/upload/ until
// its content hash is known and it can be renamed into the blob tree.
// Writes pass straight through to the OS file; the increment callback
// observes them.
type stagedFile struct {
	f    *os.File
	inc  atomic.Pointer[FctIncrement]
	path string
}

// newStaged creates a uniquely named file in dir using os.CreateTemp's
// pattern syntax.
func newStaged(dir, pattern string) (*stagedFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &stagedFile{f: f, path: f.Name()}, nil
}

// RegisterFctIncrement installs (or replaces, or with nil removes) the
// per-write progress callback.
func (s *stagedFile) RegisterFctIncrement(fct FctIncrement) {
	if fct == nil {
		s.inc.Store(nil)
		return
	}
	s.inc.Store(&fct)
}

func (s *stagedFile) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	if n > 0 {
		if fct := s.inc.Load(); fct != nil {
			(*fct)(int64(n))
		}
	}
	return n, err
}

// Path returns the on-disk location of the staged file.
func (s *stagedFile) Path() string {
	return s.path
}

func (s *stagedFile) Sync() error {
	return s.f.Sync()
}

func (s *stagedFile) Close() error {
	return s.f.Close()
}

// CloseDelete closes the staged file and removes it, for the error path
// where the upload never reaches its final blob location.
func (s *stagedFile) CloseDelete() error {
	if err := s.f.Close(); err != nil && !os.IsNotExist(err) {
		_ = os.Remove(s.path)
		return err
	}
	return os.Remove(s.path)
}
