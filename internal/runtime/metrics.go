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

package runtime

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/twinkle-labs/twk/internal/metrics"
)

// RunnableDepth reports how many processes are queued for a worker.
func (rt *Runtime) RunnableDepth() int { return rt.Sched.QueueDepth() }

// ProcessCount reports the number of allocated process slots.
func (rt *Runtime) ProcessCount() int { return rt.Table.Count() }

// BusyWorkers reports how many workers are inside a continuation.
func (rt *Runtime) BusyWorkers() int { return rt.Sched.Busy() }

// EnableMetrics registers the runtime's gauge set on reg and starts
// feeding the delivery counters from the router. Hosts that don't
// scrape simply never call this.
func (rt *Runtime) EnableMetrics(reg prometheus.Registerer) (*metrics.Metrics, error) {
	m, err := metrics.New(reg, rt)
	if err != nil {
		return nil, err
	}
	rt.Router.SetObserver(func(ok bool) {
		if ok {
			m.MessagesSent.Inc()
		} else {
			m.SendFailures.Inc()
		}
	})
	rt.Metrics = m
	return m, nil
}
