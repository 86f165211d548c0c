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

import (
	"context"
	"time"
)

// schedulerLoop alternates between rescanning the table and blocking in
// the central selector. The selector timeout is the bounded outer limit
// reduced to the nearest pending wake_at, so a timer fires when it is
// due rather than on the next full tick; the bound itself only covers a
// lost wakeup signal. Draining the self-pipe is handled inside
// internal/poll's Selector.Wait itself, since the wake fd is just
// another registration there.
func (s *Scheduler) schedulerLoop(ctx context.Context) error {
	for {
		s.mu.Lock()
		quit := s.quit
		s.mu.Unlock()
		if quit {
			return nil
		}

		timeout := s.rescan()

		if err := s.sel.Wait(timeout); err != nil {
			if s.log != nil {
				s.log.Errorf("sched: selector wait: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// rescan promotes WAITING processes whose mailbox has data or whose
// timer fired, and reclaims SHUTDOWN slots. It returns how long the
// next selector wait may block: the configured bound, shrunk to the
// earliest wake_at still pending after the promotions.
func (s *Scheduler) rescan() time.Duration {
	now := time.Now()
	for _, pid := range s.table.WaitingSnapshot() {
		if s.table.TryRunnable(pid, now) {
			s.Enqueue(pid)
		}
	}
	for _, pid := range s.table.ShutdownSnapshot() {
		s.table.Reclaim(pid, s.closeFD)
	}

	timeout := s.cfg.SelectorTimeout
	if at, ok := s.table.NextWakeAt(); ok {
		if d := at.Sub(now); d < timeout {
			timeout = d
		}
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return timeout
}
