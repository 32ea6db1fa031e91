/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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
 *
 */

package monitor

import "github.com/prometheus/client_golang/prometheus"

// Collector exports a Hub's tracked counters as Prometheus gauges: one
// series per counter name, summed across every tracked address, plus the
// ActiveClients global counter (the number of tracked addresses); the
// Memory and ActiveProcesses global counters are not exported. monitor.c
// has no metrics-export concept of its
// own (its only observability channel is the log/cmd/email/http remedies);
// this is a supplemental read path over the same Tracker data, not a
// remedy, so it lives beside rather than inside the remedy table.
type Collector struct {
	hub *Hub
	vec *prometheus.GaugeVec
}

// NewCollector builds a Collector over hub. Register it with a
// prometheus.Registry the way any other prometheus.Collector is registered.
func NewCollector(hub *Hub) *Collector {
	return &Collector{
		hub: hub,
		vec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "httpcore",
			Subsystem: "monitor",
			Name:      "counter",
			Help:      "Aggregate value of a monitor counter across tracked addresses.",
		}, []string{"counter"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.vec.Describe(ch)
}

// Collect implements prometheus.Collector, recomputing every counter's
// aggregate value on each scrape rather than caching it between scrapes.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	totals := map[string]int64{
		CounterActiveClients: int64(c.hub.Tracker.Len()),
	}

	c.hub.Tracker.mu.RLock()
	for _, addr := range c.hub.Tracker.addresses {
		addr.mu.Lock()
		for name, v := range addr.Counters {
			totals[name] += v
		}
		addr.mu.Unlock()
	}
	c.hub.Tracker.mu.RUnlock()

	for name, v := range totals {
		c.vec.WithLabelValues(name).Set(float64(v))
	}
	c.vec.Collect(ch)
}
