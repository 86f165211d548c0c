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

// Package metrics exposes scheduler and transport gauges for hosts that
// embed the runtime: runnable queue depth, live process count, busy
// workers, and open peer sessions, registered on a caller-supplied
// prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sampler reports current scheduler depths; the Runtime implements it.
type Sampler interface {
	RunnableDepth() int
	ProcessCount() int
	BusyWorkers() int
}

// Metrics is the gauge set registered for one runtime instance.
type Metrics struct {
	PeerSessions prometheus.Gauge
	MessagesSent prometheus.Counter
	SendFailures prometheus.Counter

	busy     prometheus.GaugeFunc
	runnable prometheus.GaugeFunc
	procs    prometheus.GaugeFunc
}

// New builds and registers the gauge set on reg, sampling queue depths
// from s on every scrape.
func New(reg prometheus.Registerer, s Sampler) (*Metrics, error) {
	m := &Metrics{
		PeerSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "twk",
			Name:      "peer_sessions",
			Help:      "Open secure peer sessions.",
		}),
		busy: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "twk",
			Name:      "busy_workers",
			Help:      "Worker goroutines currently executing a continuation.",
		}, func() float64 { return float64(s.BusyWorkers()) }),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twk",
			Name:      "messages_sent_total",
			Help:      "Messages successfully posted to a mailbox.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twk",
			Name:      "send_failures_total",
			Help:      "Messages dropped on mailbox overflow or a dead pid.",
		}),
		runnable: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "twk",
			Name:      "runnable_processes",
			Help:      "Processes queued for a worker.",
		}, func() float64 { return float64(s.RunnableDepth()) }),
		procs: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "twk",
			Name:      "live_processes",
			Help:      "Allocated process slots.",
		}, func() float64 { return float64(s.ProcessCount()) }),
	}

	for _, c := range []prometheus.Collector{
		m.PeerSessions, m.MessagesSent, m.SendFailures, m.busy, m.runnable, m.procs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
