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
	"testing"

	"github.com/nabbar/httpcore/queue"
)

func TestRingDrainsServicesExactlyOnce(t *testing.T) {
	r := newRing()
	q := queue.New("q", nil, nil)
	calls := 0
	q.Service = func(*queue.Queue) { calls++ }

	r.Schedule(q)
	r.Schedule(q) // duplicate schedule before drain must not double-service
	r.Drain()

	if calls != 1 {
		t.Fatalf("expected exactly one service call, got %d", calls)
	}
	if r.Pending() {
		t.Fatal("expected ring to be empty after Drain")
	}
}

func TestRingDrainHandlesReschedulingDuringDrain(t *testing.T) {
	r := newRing()
	q1 := queue.New("q1", nil, nil)
	q2 := queue.New("q2", nil, nil)

	calls := 0
	q1.Service = func(*queue.Queue) {
		calls++
		r.Schedule(q2) // q1's service schedules q2 mid-drain
	}
	q2.Service = func(*queue.Queue) { calls++ }

	r.Schedule(q1)
	r.Drain()

	if calls != 2 {
		t.Fatalf("expected both queues serviced, got %d calls", calls)
	}
}
