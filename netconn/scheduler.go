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

package netconn

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/nabbar/httpcore/queue"
)

// ring is the network's service queue: a FIFO index plus a bitset of
// pending queue slot IDs, the concrete rendering of spec.md §9's
// "model as a bitmap of pending queue IDs plus a FIFO index" suggestion for
// the scheduleNext/schedulePrev doubly-linked ring.
type ring struct {
	mu      sync.Mutex
	pending *bitset.BitSet
	order   []*queue.Queue
	slots   map[*queue.Queue]uint
	next    uint
}

func newRing() *ring {
	return &ring{
		pending: bitset.New(64),
		slots:   make(map[*queue.Queue]uint),
	}
}

// Schedule implements queue.Scheduler: append q to the FIFO order and mark
// its bit pending, unless it is already pending.
func (r *ring) Schedule(q *queue.Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[q]
	if !ok {
		slot = r.next
		r.next++
		r.slots[q] = slot
	}
	if r.pending.Test(slot) {
		return
	}
	r.pending.Set(slot)
	r.order = append(r.order, q)
}

// drainOnce dequeues the ring's current contents (a snapshot, so a queue
// that reschedules itself while being drained re-enters at tail rather than
// being skipped) and services each one. Returns the number serviced.
func (r *ring) drainOnce() int {
	r.mu.Lock()
	batch := r.order
	r.order = nil
	for _, q := range batch {
		if slot, ok := r.slots[q]; ok {
			r.pending.Clear(slot)
		}
	}
	r.mu.Unlock()

	for _, q := range batch {
		queue.RunService(q)
	}
	return len(batch)
}

// Drain runs the dispatcher's service loop: drain the ring FIFO until empty
// (spec.md §4.1 Service loop). A queue's own RunService call handles
// RESERVICE-on-reentry; Drain only needs to keep calling drainOnce while new
// work keeps appearing (a queue rescheduling itself from Service lands in
// the ring's next batch).
func (r *ring) Drain() {
	for {
		if n := r.drainOnce(); n == 0 {
			return
		}
	}
}

// Pending reports whether the ring currently holds unserviced work.
func (r *ring) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order) > 0
}
