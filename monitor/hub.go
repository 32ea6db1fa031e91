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

import (
	"context"
	"sync"
	"sync/atomic"
)

// Hub is the explicit, per-server bundle of monitoring state: the address
// tracker, the defense table, and the set of active Monitor evaluators.
// monitor.c keeps the equivalent of all three as globals hanging off a
// process-wide MprHttp (http->addresses, http->defenses, http->monitors);
// this is the reimplementation spec.md §9 calls for — an explicit value a
// caller constructs and threads through, not package-level state, so a
// process can run more than one independent HttpService.
type Hub struct {
	Tracker  *Tracker
	Defenses map[string]*Defense

	mu       sync.Mutex
	monitors []*Monitor

	// activeProcesses backs the ActiveProcesses global counter. monitor.c
	// derives this from its own child-command list (MprCmd); this module
	// has no equivalent process registry, so callers that spawn subprocess
	// work (e.g. around the cmd remedy) report it explicitly via
	// IncActiveProcesses/DecActiveProcesses instead.
	activeProcesses int64
}

// IncActiveProcesses records the start of a subprocess the caller wants
// reflected in the ActiveProcesses counter.
func (h *Hub) IncActiveProcesses() {
	atomic.AddInt64(&h.activeProcesses, 1)
}

// DecActiveProcesses records the exit of a subprocess previously counted by
// IncActiveProcesses.
func (h *Hub) DecActiveProcesses() {
	atomic.AddInt64(&h.activeProcesses, -1)
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		Tracker:  NewTracker(),
		Defenses: make(map[string]*Defense),
	}
}

// AddDefense registers a defense by name, grounded on httpAddDefense.
func (h *Hub) AddDefense(d *Defense) {
	h.Defenses[d.Name] = d
}

// AddMonitor registers a counter-threshold Monitor on the Hub; the caller
// Starts it once the Hub is fully configured.
func (h *Hub) AddMonitor(m *Monitor) {
	m.hub = h
	h.mu.Lock()
	h.monitors = append(h.monitors, m)
	h.mu.Unlock()
}

// RecordEvent adjusts one counter for ip by delta, grounded on
// httpMonitorEvent — the call a connection/request lifecycle makes on
// every accept, parse error, completed request, etc.
func (h *Hub) RecordEvent(ip, counter string, delta int64) {
	h.Tracker.Record(ip, counter, delta)
}

// invoke runs every named defense against msg, grounded on
// invokeDefenses's "for (each defense on monitor) runRemedy(...)".
func (h *Hub) invoke(ctx context.Context, address *Address, defenseNames []string, msg Message) []error {
	var errs []error
	for _, name := range defenseNames {
		d, ok := h.Defenses[name]
		if !ok {
			continue
		}
		if err := d.Invoke(ctx, h.Tracker, address, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Stop halts every Monitor registered on this Hub.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.monitors {
		m.Stop()
	}
}
