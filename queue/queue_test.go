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

package queue_test

import (
	"testing"

	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
)

type fakeStage struct{ name string }

func (f *fakeStage) Name() string { return f.name }

type fakeSched struct{ scheduled []*queue.Queue }

func (f *fakeSched) Schedule(q *queue.Queue) { f.scheduled = append(f.scheduled, q) }

func mkPacket(data string) *packet.Packet {
	p := packet.New(0)
	p.Content.WriteString(data)
	return p
}

func TestCountInvariant(t *testing.T) {
	q := queue.New("rx", &fakeStage{"h"}, &fakeSched{})
	q.Put(mkPacket("hello"))
	q.Put(mkPacket("world!"))

	if got, want := q.Count(), int64(11); got != want {
		t.Fatalf("count = %d, want %d", got, want)
	}
	p := q.Get()
	if string(p.Content.Bytes()) != "hello" {
		t.Fatalf("unexpected FIFO order: %q", p.Content.Bytes())
	}
	if got, want := q.Count(), int64(6); got != want {
		t.Fatalf("count after get = %d, want %d", got, want)
	}
}

func TestPutBackIsLIFOAtHead(t *testing.T) {
	q := queue.New("rx", &fakeStage{"h"}, &fakeSched{})
	q.Put(mkPacket("second"))
	q.PutBack(mkPacket("first"))

	p := q.Get()
	if string(p.Content.Bytes()) != "first" {
		t.Fatalf("expected PutBack packet to come out first, got %q", p.Content.Bytes())
	}
}

func TestWillAcceptRejectsOversizedPacket(t *testing.T) {
	next := queue.New("tx", &fakeStage{"h"}, &fakeSched{})
	next.PacketSize = 4

	ok, _, _ := queue.WillAccept(next, mkPacket("hello world"), false)
	if ok {
		t.Fatal("expected willAccept to reject an oversized packet without split")
	}

	ok, head, tail := queue.WillAccept(next, mkPacket("hello world"), true)
	if !ok {
		t.Fatal("expected willAccept to succeed after splitting")
	}
	if head.Len() > 4 {
		t.Fatalf("split head too large: %d", head.Len())
	}
	if tail == nil {
		t.Fatal("expected a non-nil tail for the bytes split off the head")
	}
	if head.Len()+tail.Len() != int64(len("hello world")) {
		t.Fatalf("split lost bytes: head=%d tail=%d want=%d", head.Len(), tail.Len(), len("hello world"))
	}
}

func TestWillAcceptRespectsMax(t *testing.T) {
	next := queue.New("tx", &fakeStage{"h"}, &fakeSched{})
	next.Max = 10
	next.Put(mkPacket("12345678")) // 8 bytes queued

	ok, _, _ := queue.WillAccept(next, mkPacket("abc"), false) // +3 = 11 > 10
	if ok {
		t.Fatal("expected willAccept to reject a packet that would exceed max")
	}
}

func TestSuspendResumeSchedulesOnResume(t *testing.T) {
	sched := &fakeSched{}
	q := queue.New("tx", &fakeStage{"h"}, sched)
	queue.Suspend(q)

	queue.Schedule(q) // must be a no-op while suspended
	if len(sched.scheduled) != 0 {
		t.Fatal("expected no scheduling while suspended")
	}

	queue.Resume(q)
	if len(sched.scheduled) != 1 {
		t.Fatalf("expected exactly one schedule on resume, got %d", len(sched.scheduled))
	}
}

func TestResumePropagatesToPrevQueueBelowLow(t *testing.T) {
	sched := &fakeSched{}
	prev := queue.New("prev", &fakeStage{"h"}, sched)
	next := queue.New("next", &fakeStage{"h"}, sched)
	next.PrevQ = prev
	next.Low = 5

	queue.Suspend(prev)
	next.Put(mkPacket("123456789")) // count 9 >= Low
	next.Get()                      // count becomes 0 < Low(5) -> resumes prev

	if len(sched.scheduled) != 1 {
		t.Fatalf("expected prev queue to be scheduled on resume, got %d schedules", len(sched.scheduled))
	}
}

func TestRunServiceReservicesOnReentry(t *testing.T) {
	sched := &fakeSched{}
	q := queue.New("tx", &fakeStage{"h"}, sched)
	calls := 0
	q.Service = func(qq *queue.Queue) {
		calls++
		if calls == 1 {
			// Simulate the service routine re-scheduling itself mid-run:
			// Schedule must notice RunService is active and loop in place
			// rather than re-entering the ring.
			queue.Schedule(qq)
		}
	}
	queue.RunService(q)
	if calls != 2 {
		t.Fatalf("expected reservice to run the service twice, got %d", calls)
	}
	if len(sched.scheduled) != 0 {
		t.Fatalf("reservice must not re-enter the ring, got %d ring schedules", len(sched.scheduled))
	}
}
