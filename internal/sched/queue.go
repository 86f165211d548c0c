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

package sched

import "github.com/twinkle-labs/twk/internal/process"

// runnableQueue is a strict FIFO runnable set. Compared with scanning
// the table from a rolling cursor, a queue is simpler to reason about
// and immune to starvation under adversarial workloads, at the cost of
// the scan's cache locality — an acceptable trade at table scale. A
// worker pops the front under the scheduler mutex; pushes append to
// the back.
type runnableQueue struct {
	items []process.Pid
}

func (q *runnableQueue) push(pid process.Pid) {
	q.items = append(q.items, pid)
}

func (q *runnableQueue) pop() (process.Pid, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	pid := q.items[0]
	q.items = q.items[1:]
	return pid, true
}

func (q *runnableQueue) len() int {
	return len(q.items)
}
