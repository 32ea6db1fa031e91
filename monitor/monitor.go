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
	"time"

	"github.com/shirou/gopsutil/process"
)

// Expr is the comparison checkCounter applies between a counter's delta and
// its configured Limit.
type Expr uint8

const (
	// ExprGreater fires when the period's delta exceeds Limit.
	ExprGreater Expr = iota
	// ExprLess fires when the period's delta falls below Limit.
	ExprLess
)

// Monitor evaluates one named counter against a limit on a fixed period and
// invokes its defenses on breach, grounded on monitor.c's HttpMonitor
// (httpAddMonitor/monitorTimer/checkMonitor/checkCounter).
type Monitor struct {
	Counter  string
	Expr     Expr
	Limit    int64
	Period   time.Duration
	Defenses []string

	hub *Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	prior map[string]int64 // per-IP prior snapshot; "" key for global counters
}

// NewMonitor builds a Monitor. Call Hub.AddMonitor to attach it, then Start
// to begin periodic evaluation.
func NewMonitor(counter string, expr Expr, limit int64, period time.Duration, defenses ...string) *Monitor {
	return &Monitor{
		Counter:  counter,
		Expr:     expr,
		Limit:    limit,
		Period:   period,
		Defenses: defenses,
		prior:    make(map[string]int64),
	}
}

// Start launches the periodic evaluation goroutine, grounded on
// monitorTimer's recurring mprCreateTimerEvent(period, checkMonitor).
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts the periodic evaluation goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// check is one tick of checkMonitor: it either evaluates a single
// process-wide value (Memory/ActiveProcesses/ActiveClients) or iterates
// every tracked address, evaluating the counter for each and evicting
// addresses idle past the sweep window.
func (m *Monitor) check(ctx context.Context) {
	if IsGlobalCounter(m.Counter) {
		value, ok := m.globalValue()
		if ok {
			m.checkCounter(ctx, "", value)
		}
		m.hub.Tracker.Evict(m.Period)
		return
	}

	for ip, addr := range m.snapshotAddresses() {
		m.checkCounter(ctx, ip, addr.counter(m.Counter))
	}
	m.hub.Tracker.Evict(m.Period)
}

func (m *Monitor) snapshotAddresses() map[string]*Address {
	m.hub.Tracker.mu.RLock()
	defer m.hub.Tracker.mu.RUnlock()
	out := make(map[string]*Address, len(m.hub.Tracker.addresses))
	for ip, a := range m.hub.Tracker.addresses {
		out[ip] = a
	}
	return out
}

// globalValue samples the three process-wide counters, grounded on
// checkMonitor's "mp == 0" branch.
func (m *Monitor) globalValue() (int64, bool) {
	switch m.Counter {
	case CounterActiveClients:
		return int64(m.hub.Tracker.Len()), true
	case CounterActiveProcesses:
		return atomic.LoadInt64(&m.hub.activeProcesses), true
	case CounterMemory:
		p, err := process.NewProcess(int32(currentPID()))
		if err != nil {
			return 0, false
		}
		info, err := p.MemoryInfo()
		if err != nil || info == nil {
			return 0, false
		}
		return int64(info.RSS), true
	default:
		return 0, false
	}
}

// checkCounter is the delta/threshold test of monitor.c's checkCounter:
// value = counter - prior; if expr holds against Limit, build a Message and
// invoke every configured defense; prior is always advanced to counter
// regardless of whether the threshold fired.
func (m *Monitor) checkCounter(ctx context.Context, ip string, counter int64) {
	m.mu.Lock()
	prior := m.prior[ip]
	value := counter - prior
	m.prior[ip] = counter
	m.mu.Unlock()

	var fired bool
	var exprStr string
	switch m.Expr {
	case ExprGreater:
		fired = value > m.Limit
		exprStr = ">"
	case ExprLess:
		fired = value < m.Limit
		exprStr = "<"
	}
	if !fired {
		return
	}

	msg := NewMessage(m.Counter, ip, value, m.Limit, m.Period, exprStr)
	var addr *Address
	if ip != "" {
		addr, _ = m.hub.Tracker.Get(ip)
	}
	m.hub.invoke(ctx, addr, m.Defenses, msg)
}
