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

// Package mailbox implements the bounded, transactional byte FIFO each
// process owns: the only channel through which other processes deliver
// data to it. Writes commit in whole-message units, so a reader never
// observes a partial message.
package mailbox

import "sync"

// Ceiling is the hard growth limit of a mailbox ring: 1 MiB.
const Ceiling = 1 << 20

// WakeFunc is invoked with the lock released whenever a successful write
// lands in a mailbox whose owning process is waiting for input. The
// scheduler supplies this; the mailbox itself knows nothing about
// process state.
type WakeFunc func()

// Mailbox is a ring buffer of bytes with power-of-two capacity. Readers
// only advance the read index; writers only advance the write index;
// occupancy is tracked separately so begin/append/end can roll back to
// an exact byte offset on overflow.
type Mailbox struct {
	mu       sync.Mutex
	buf      []byte
	capacity int // power of two
	readAt   int
	writeAt  int
	occ      int // bytes currently queued
	ceiling  int
	wake     WakeFunc
	waiting  func() bool // reports whether the owning process is WAITING
}

// Handle is returned by BeginAppend and threaded through AppendChunk/EndAppend.
type Handle struct {
	snapshot int // write index at BeginAppend
	snapOcc  int
	overflow bool
}

// New creates a Mailbox with the given initial capacity, rounded up to
// a power of two. waiting reports whether the owning process is
// currently blocked on input; wake is called (lock released) on a
// successful post to make it runnable and signal workers.
func New(initialCapacity int, ceiling int, waiting func() bool, wake WakeFunc) *Mailbox {
	if initialCapacity <= 0 {
		initialCapacity = 4096
	}
	initialCapacity = nextPow2(initialCapacity)
	if ceiling <= 0 || ceiling > Ceiling {
		ceiling = Ceiling
	}
	return &Mailbox{
		buf:      make([]byte, initialCapacity),
		capacity: initialCapacity,
		ceiling:  ceiling,
		waiting:  waiting,
		wake:     wake,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// room returns free capacity under the current lock. One slot is always
// kept empty so readAt == writeAt is unambiguously "empty":
// occ + room == capacity - 1.
func (m *Mailbox) room() int {
	return m.capacity - 1 - m.occ
}

// Post atomically appends a pre-formed message. Returns false if free
// capacity is insufficient even after growth; in that case no data is
// written and there is no observable side effect.
func (m *Mailbox) Post(msg []byte) bool {
	m.mu.Lock()
	if m.room() < len(msg) {
		m.growLocked()
		if m.room() < len(msg) {
			m.mu.Unlock()
			return false
		}
	}
	m.writeLocked(msg)
	shouldWake := m.waiting != nil && m.waiting()
	m.mu.Unlock()

	if shouldWake && m.wake != nil {
		m.wake()
	}
	return true
}

// writeLocked copies msg into the ring starting at writeAt, wrapping as
// needed, and advances writeAt/occ. Caller holds m.mu.
func (m *Mailbox) writeLocked(msg []byte) {
	n := len(msg)
	first := m.capacity - m.writeAt
	if first > n {
		first = n
	}
	copy(m.buf[m.writeAt:], msg[:first])
	if first < n {
		copy(m.buf, msg[first:])
	}
	m.writeAt = (m.writeAt + n) % m.capacity
	m.occ += n
}

// BeginAppend takes the lock and snapshots the write index for a
// multi-chunk transactional append.
func (m *Mailbox) BeginAppend() *Handle {
	m.mu.Lock()
	return &Handle{snapshot: m.writeAt, snapOcc: m.occ}
}

// AppendChunk appends a chunk if room remains and the handle has not
// already overflowed; once overflowed, further chunks are silently
// discarded.
func (m *Mailbox) AppendChunk(h *Handle, chunk []byte) {
	if h.overflow {
		return
	}
	if m.room() < len(chunk) {
		m.growLocked()
	}
	if m.room() < len(chunk) {
		h.overflow = true
		return
	}
	m.writeLocked(chunk)
}

// EndAppend commits or rolls back the transaction and releases the lock.
// On overflow the write index and occupancy are rewound to the
// BeginAppend snapshot and false is returned; otherwise the owning
// process is woken exactly as Post does.
func (m *Mailbox) EndAppend(h *Handle) bool {
	if h.overflow {
		m.writeAt = h.snapshot
		m.occ = h.snapOcc
		m.mu.Unlock()
		return false
	}
	shouldWake := m.waiting != nil && m.waiting()
	m.mu.Unlock()
	if shouldWake && m.wake != nil {
		m.wake()
	}
	return true
}

// Drain consumes up to len(buf) bytes into buf, advances the read index,
// and grows the ring if occupancy still exceeds half of capacity.
// Returns the number of bytes copied.
func (m *Mailbox) Drain(buf []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(buf)
	if n > m.occ {
		n = m.occ
	}
	first := m.capacity - m.readAt
	if first > n {
		first = n
	}
	copy(buf[:first], m.buf[m.readAt:m.readAt+first])
	if first < n {
		copy(buf[first:n], m.buf[:n-first])
	}
	m.readAt = (m.readAt + n) % m.capacity
	m.occ -= n

	if m.occ*2 > m.capacity && m.capacity < m.ceiling {
		m.growLocked()
	}
	return n
}

// growLocked doubles capacity, up to the ceiling, compacting the ring
// into a fresh linear buffer. Caller holds m.mu. Growth normally happens
// on the reader's side in Drain, but Post/AppendChunk also try it before
// reporting overflow.
func (m *Mailbox) growLocked() {
	newCap := m.capacity * 2
	if newCap > m.ceiling {
		newCap = m.ceiling
	}
	if newCap <= m.capacity {
		return
	}
	nb := make([]byte, newCap)
	n := m.occ
	first := m.capacity - m.readAt
	if first > n {
		first = n
	}
	copy(nb, m.buf[m.readAt:m.readAt+first])
	if first < n {
		copy(nb[first:], m.buf[:n-first])
	}
	m.buf = nb
	m.capacity = newCap
	m.readAt = 0
	m.writeAt = n % newCap
}

// Len reports current occupancy in bytes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occ
}

// Capacity reports the current ring size.
func (m *Mailbox) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity
}

// Empty reports whether readAt == writeAt, i.e. occupancy is zero.
func (m *Mailbox) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occ == 0
}
