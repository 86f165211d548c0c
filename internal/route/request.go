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

// Package route implements message routing: send-message delivery into
// a destination mailbox, the request/response correlation table that
// matches a `did-request` reply back to the callback which asked for
// it, and the scheduler's default dispatch of `(request …)`,
// `(did-request …)`, `(quit)`, and `(timeout)`.
package route

import (
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/twinkle-labs/twk/internal/process"
	"github.com/twinkle-labs/twk/internal/wire"
)

// Retention is the fixed purge window: entries older than this are
// dropped on every insertion, and their callbacks never run.
const Retention = 10 * time.Second

// Callback is invoked with the decoded response payload once a
// `did-request` with the matching id arrives.
type Callback func(response wire.Value)

type pendingEntry struct {
	id       string
	issuedAt time.Time
	cb       Callback
}

// Requests is a per-process pending-request queue: a list of
// (request-id, issued-at, callback) records, one instance owned by each
// process that issues requests.
type Requests struct {
	mu      sync.Mutex
	entries []pendingEntry
}

// NewRequests constructs an empty pending-request queue.
func NewRequests() *Requests {
	return &Requests{}
}

// purgeLocked drops every entry older than Retention. Caller holds mu.
func (r *Requests) purgeLocked(now time.Time) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if now.Sub(e.issuedAt) < Retention {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// Issue allocates a fresh random request id, purges stale entries, and
// records the new one.
func (r *Requests) Issue(cb Callback) (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}
	now := time.Now()

	r.mu.Lock()
	r.purgeLocked(now)
	r.entries = append(r.entries, pendingEntry{id: id, issuedAt: now, cb: cb})
	r.mu.Unlock()

	return id, nil
}

// Resolve locates id, removes it, and returns its callback. ok is false
// if id is unknown (never issued, already resolved, or purged).
func (r *Requests) Resolve(id string) (Callback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return e.cb, true
		}
	}
	return nil, false
}

// Pending reports the number of outstanding (unpurged as of the last
// Issue/Resolve) requests, for diagnostics.
func (r *Requests) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// pid is re-exported so callers of this package don't need a direct
// dependency on internal/process just to name the type in signatures.
type Pid = process.Pid
