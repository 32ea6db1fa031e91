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

// Package queue implements the pipeline's FIFO packet queue, backpressure
// contract, and scheduler-ring hookup. See spec.md §3 (Queue) and §4.1.
package queue

import (
	"sync"

	"github.com/nabbar/httpcore/packet"
)

// Flags mirror spec.md §3: SUSPENDED, SERVICED, OPEN, REQUEST, OUTGOING.
type Flags uint8

const (
	FlagSuspended Flags = 1 << iota
	FlagServiced
	FlagOpen
	FlagRequest
	FlagOutgoing
)

// StageRef is the minimal view of an owning stage a Queue needs. The full
// callback-bearing Stage type lives one layer up, in package stage, to keep
// the dependency order Packet -> Queue -> Stage from spec.md §2 acyclic.
type StageRef interface {
	Name() string
}

// Scheduler is implemented by the owning Network: it maintains the
// service ring a Queue joins when it has work to do (spec.md §4.1 Service
// loop).
type Scheduler interface {
	Schedule(q *Queue)
}

// ServiceFunc is the callback invoked when the queue is serviced. Assigned
// by the stage during pipeline construction.
type ServiceFunc func(q *Queue)

// Queue is a bidirectional pipeline node.
type Queue struct {
	mu sync.Mutex

	Name       string
	first      *packet.Packet
	last       *packet.Packet
	count      int64 // bytes currently queued, excluding prefixes
	Max        int64
	Low        int64
	PacketSize int64

	Stage StageRef
	Pair  *Queue // counterpart queue for the same stage, opposite direction

	// Owner is the per-stream Context this queue belongs to, opaque here
	// (package stage owns the Context type and would cycle back through
	// this package if named concretely). A Service callback that needs
	// more than generic queue mechanics — a cache filter reading tx state,
	// say — recovers it with a type assertion, the same pattern stage
	// callbacks use for their ctx parameter.
	Owner interface{}

	NextQ *Queue // pipeline neighbor (same direction, downstream)
	PrevQ *Queue // pipeline neighbor (same direction, upstream)

	Service ServiceFunc
	Sched   Scheduler

	// OnResume, if set, fires every time Resume clears this queue's
	// SUSPENDED flag — the hook pipeline.Build wires to a stage's Writable
	// capability, so package queue never needs to know about package stage
	// (spec.md §3 Stage's "Writable ... invoked when the stage's outgoing
	// queue transitions from suspended to writable").
	OnResume func(q *Queue)

	flags Flags

	// scheduled is true while this queue is linked into the scheduler ring,
	// or (while running) marks that the service routine asked to run again;
	// guards against double-scheduling (spec.md §4.1 "if not already
	// scheduled").
	scheduled bool
	// running is true for the duration of RunService, so a service
	// callback that reschedules itself mid-run is looped in place instead
	// of being re-added to the ring (spec.md §4.1 RESERVICE-on-reentry).
	running bool
}

// New creates a Queue bound to the given stage and scheduler.
func New(name string, stg StageRef, sched Scheduler) *Queue {
	return &Queue{Name: name, Stage: stg, Sched: sched, flags: FlagOpen}
}

// Count returns bytes currently queued (spec.md §3 invariant: count == sum
// of content lengths of queued packets).
func (q *Queue) Count() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// SetMax updates the queue's byte ceiling under lock, used by flow-control
// aware stages (e.g. HTTP/2 WINDOW_UPDATE handling) that adjust a queue's
// capacity after construction (spec.md §4.6 "window updates modify stream
// outputq max").
func (q *Queue) SetMax(n int64) {
	q.mu.Lock()
	q.Max = n
	q.mu.Unlock()
}

func (q *Queue) HasFlag(f Flags) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flags&f != 0
}

func (q *Queue) setFlag(f Flags)   { q.flags |= f }
func (q *Queue) clearFlag(f Flags) { q.flags &^= f }

// Put appends a packet to the tail and updates count. The caller is
// responsible for flow control (checking willAccept before Put, per
// spec.md §4.1); Put itself never refuses.
func (q *Queue) Put(p *packet.Packet) {
	q.mu.Lock()
	if q.first == nil {
		q.first = p
		q.last = p
	} else {
		q.last.Next = p
		q.last = p
	}
	p.Next = nil
	if !p.IsControl() {
		q.count += p.Len()
	}
	q.mu.Unlock()
}

// PutBack pushes a packet at the head, used when a downstream queue refuses
// it (spec.md §4.1 Backpressure contract).
func (q *Queue) PutBack(p *packet.Packet) {
	q.mu.Lock()
	p.Next = q.first
	q.first = p
	if q.last == nil {
		q.last = p
	}
	if !p.IsControl() {
		q.count += p.Len()
	}
	q.mu.Unlock()
}

// Get pops the head packet. If the queue then has count < Low, the
// previous queue in the chain is resumed (spec.md §4.1).
func (q *Queue) Get() *packet.Packet {
	q.mu.Lock()
	p := q.first
	if p == nil {
		q.mu.Unlock()
		return nil
	}
	q.first = p.Next
	if q.first == nil {
		q.last = nil
	}
	p.Next = nil
	if !p.IsControl() {
		q.count -= p.Len()
	}
	below := q.count < q.Low
	prev := q.PrevQ
	q.mu.Unlock()

	if below && prev != nil {
		Resume(prev)
	}
	return p
}

// Peek returns the head packet without removing it.
func (q *Queue) Peek() *packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.first
}

// Empty reports whether the queue currently has no packets.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.first == nil
}

// WillAccept reports whether packet p can be appended to "next" without
// violating its packetSize/max limits, optionally splitting p's head
// fragment and retesting if split is true and only the head would fit
// (spec.md §4.1 willAccept). When a split occurs, tail holds the bytes
// carved off the back of p that the caller must PutBack onto its own queue
// (not next's) so they are retried rather than lost — p alone no longer
// carries the full packet once split. tail is nil whenever no split
// happened, including rejection (ok==false, split==false).
func WillAccept(next *Queue, p *packet.Packet, split bool) (ok bool, head *packet.Packet, tail *packet.Packet) {
	next.mu.Lock()
	packetSize := next.PacketSize
	max := next.Max
	count := next.count
	next.mu.Unlock()

	fits := func(n int64) bool {
		if packetSize > 0 && n > packetSize {
			return false
		}
		if max > 0 && n+count > max {
			return false
		}
		return true
	}

	if p.IsControl() {
		return true, p, nil
	}

	n := p.Len()
	if fits(n) {
		return true, p, nil
	}
	if !split {
		return false, p, nil
	}

	limit := n
	if packetSize > 0 && packetSize < limit {
		limit = packetSize
	}
	if max > 0 {
		room := max - count
		if room < limit {
			limit = room
		}
	}
	if limit <= 0 {
		return false, p, nil
	}
	t := packet.Split(p, limit)
	return fits(p.Len()), p, t
}

// Suspend sets the SUSPENDED flag.
func Suspend(q *Queue) {
	q.mu.Lock()
	q.setFlag(FlagSuspended)
	q.mu.Unlock()
}

// Resume clears the SUSPENDED flag and reschedules the queue.
func Resume(q *Queue) {
	q.mu.Lock()
	q.clearFlag(FlagSuspended)
	onResume := q.OnResume
	q.mu.Unlock()
	if onResume != nil {
		onResume(q)
	}
	Schedule(q)
}

// Schedule inserts q into the network's service ring if it is not already
// scheduled and not suspended (spec.md §4.1). If called while q is in the
// middle of RunService (a service routine rescheduling itself), it only
// flags q for another in-place iteration instead of re-entering the ring.
func Schedule(q *Queue) {
	q.mu.Lock()
	if q.flags&FlagSuspended != 0 {
		q.mu.Unlock()
		return
	}
	if q.running {
		q.scheduled = true
		q.mu.Unlock()
		return
	}
	if q.scheduled {
		q.mu.Unlock()
		return
	}
	q.scheduled = true
	sched := q.Sched
	q.mu.Unlock()

	if sched != nil {
		sched.Schedule(q)
	}
}

// RunService invokes q.Service with the RESERVICE-on-reentry discipline: if
// the service routine reschedules itself during its own invocation, it runs
// again before RunService returns control to the dispatcher's ring drain
// (spec.md §4.1 service(q)).
func RunService(q *Queue) {
	q.mu.Lock()
	q.running = true
	q.scheduled = false
	q.mu.Unlock()

	for {
		if q.Service != nil {
			q.Service(q)
		}
		q.mu.Lock()
		again := q.scheduled
		q.scheduled = false
		if !again {
			q.running = false
			q.mu.Unlock()
			break
		}
		q.mu.Unlock()
	}
}

// Flush schedules q and runs its service synchronously until the queue
// drains below Max, or — if nonBlock is true — for one attempt only
// (spec.md §4.1 flush(q, flags)).
func Flush(q *Queue, nonBlock bool) {
	for {
		RunService(q)
		if nonBlock {
			return
		}
		if q.Max <= 0 || q.Count() < q.Max {
			return
		}
	}
}
