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

// Package reqstate implements the stream request lifecycle state machine of
// spec.md §4.2: nine monotonically-increasing states from BEGIN to
// COMPLETE, driven by Process() and gated on three finalize axes.
package reqstate

import "sync"

// State is one point in the request lifecycle.
type State int

const (
	Begin State = iota
	Connected
	First
	Parsed
	Content
	Ready
	Running
	Finalized
	Complete
)

func (s State) String() string {
	switch s {
	case Begin:
		return "BEGIN"
	case Connected:
		return "CONNECTED"
	case First:
		return "FIRST"
	case Parsed:
		return "PARSED"
	case Content:
		return "CONTENT"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finalized:
		return "FINALIZED"
	case Complete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Notifier is called once per intermediate state crossed by SetState, in
// order, per spec.md §4.2 "Progression is monotonic".
type Notifier func(s State)

// Machine holds the current state plus the three finalize axes spec.md §4.2
// requires before a stream may advance past FINALIZED.
type Machine struct {
	mu sync.Mutex

	current State

	finalizedInput     bool
	finalizedOutput    bool
	finalizedConnector bool

	notify Notifier
}

// New creates a Machine starting at BEGIN.
func New(notify Notifier) *Machine {
	return &Machine{current: Begin, notify: notify}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetState advances the machine to target. Calls with target <= current are
// a no-op and fire no notification; calls with target > current fire a
// notification for every intermediate state up to and including target, in
// order (spec.md §4.2, §8 Universal invariants). Advancing to or past
// FINALIZED is refused unless all three finalize axes are set, except when
// target is exactly Finalized and the caller is the one completing the
// third axis (see MarkFinalizedConnector/MarkFinalizedInput/Output, which
// call setStateLocked directly once the gate opens).
func (m *Machine) SetState(target State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(target)
}

func (m *Machine) setStateLocked(target State) {
	if target <= m.current {
		return
	}
	if target >= Finalized && !m.finalizeGateLocked() {
		// cannot cross into FINALIZED until all three axes are set; stop
		// just short, at Running, and let the axis setters re-drive this.
		target = Running
		if target <= m.current {
			return
		}
	}
	for s := m.current + 1; s <= target; s++ {
		m.current = s
		if m.notify != nil {
			m.notify(s)
		}
	}
}

func (m *Machine) finalizeGateLocked() bool {
	return m.finalizedInput && m.finalizedOutput && m.finalizedConnector
}

// MarkFinalizedInput/Output/Connector set one of the three finalize axes
// (spec.md §4.2). Once all three are set, the machine automatically
// advances to FINALIZED and then the caller may drive it on to COMPLETE.
func (m *Machine) MarkFinalizedInput() { m.markAxis(func() { m.finalizedInput = true }) }
func (m *Machine) MarkFinalizedOutput() { m.markAxis(func() { m.finalizedOutput = true }) }
func (m *Machine) MarkFinalizedConnector() {
	m.markAxis(func() { m.finalizedConnector = true })
}

func (m *Machine) markAxis(set func()) {
	m.mu.Lock()
	set()
	if m.finalizeGateLocked() {
		m.setStateLocked(Finalized)
	}
	m.mu.Unlock()
}

// IsFinalized reports whether all three finalize axes are set.
func (m *Machine) IsFinalized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizeGateLocked()
}

// Complete drives the machine to COMPLETE; only meaningful once FINALIZED.
func (m *Machine) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current >= Finalized {
		m.setStateLocked(Complete)
	}
}
