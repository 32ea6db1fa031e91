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

// Package monitor implements the per-address counter map, periodic
// threshold evaluation, and the defense/remedy indirection of spec.md §4.9.
// Grounded on original_source/src/monitor.c
// (httpMonitorEvent/checkMonitor/checkCounter/httpAddMonitor/httpAddDefense/
// httpAddRemedy).
package monitor

import (
	"sync"
	"time"
)

// Address is the per-client-IP tracking record, grounded on monitor.c's
// HttpAddress: a counter array plus the ban/delay state the network layer
// consults on accept.
type Address struct {
	mu sync.Mutex

	Counters map[string]int64
	Updated  time.Time

	BanUntil   time.Time
	DelayUntil time.Time
	Delay      time.Duration
}

// Banned reports whether this address is currently within its ban window.
func (a *Address) Banned(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Before(a.BanUntil)
}

// CurrentDelay reports the artificial accept-latency this address should
// currently incur, per monitor.c's delayRemedy/address.delay semantics.
func (a *Address) CurrentDelay(now time.Time) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if now.After(a.DelayUntil) {
		return 0
	}
	return a.Delay
}

func (a *Address) counter(name string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Counters[name]
}

func (a *Address) add(name string, delta int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := a.Counters[name] + delta
	if v < 0 {
		v = 0
	}
	a.Counters[name] = v
	a.Updated = time.Now()
	return v
}

// Tracker is the process-wide address map, grounded on monitor.c's
// http->addresses MprHash plus its lock discipline ("this module typically
// runs ... multi-threaded").
type Tracker struct {
	mu        sync.RWMutex
	addresses map[string]*Address
}

// NewTracker builds an empty address tracker.
func NewTracker() *Tracker {
	return &Tracker{addresses: make(map[string]*Address)}
}

// getOrCreate returns the Address for ip, creating one on first touch
// (httpMonitorEvent's "address || address->ncounters <= counterIndex"
// lazily-grown record, simplified to a plain map since Go needs no
// preallocated counter array).
func (t *Tracker) getOrCreate(ip string) *Address {
	t.mu.RLock()
	a, ok := t.addresses[ip]
	t.mu.RUnlock()
	if ok {
		return a
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok = t.addresses[ip]; ok {
		return a
	}
	a = &Address{Counters: make(map[string]int64), Updated: time.Now()}
	t.addresses[ip] = a
	return a
}

// Get returns the Address for ip without creating one.
func (t *Tracker) Get(ip string) (*Address, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.addresses[ip]
	return a, ok
}

// Len reports how many addresses are currently tracked, the data source
// for the built-in ActiveClients global counter.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.addresses)
}

// Record adjusts one named counter for ip by delta, grounded on
// httpMonitorEvent.
func (t *Tracker) Record(ip, counter string, delta int64) int64 {
	return t.getOrCreate(ip).add(counter, delta)
}

// Evict removes addresses untouched for longer than period, mirroring
// checkMonitor's "period = max(monitor->period, 5*60*1000)" expiry sweep.
func (t *Tracker) Evict(period time.Duration) int {
	if period < 5*time.Minute {
		period = 5 * time.Minute
	}
	cutoff := time.Now().Add(-period)

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for ip, a := range t.addresses {
		a.mu.Lock()
		stale := a.Updated.Before(cutoff)
		a.mu.Unlock()
		if stale {
			delete(t.addresses, ip)
			removed++
		}
	}
	return removed
}
