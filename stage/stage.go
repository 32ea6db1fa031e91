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

// Package stage implements the core's polymorphic pipeline processor: a
// capability set of optional callbacks, instantiated once per process and
// shared by every queue that references it, per spec.md §3 (Stage) and §9
// ("model as a vtable or trait object... capability set").
package stage

import (
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
)

// Flags classify a stage's role, per spec.md §3.
type Flags uint8

const (
	FlagHandler Flags = 1 << iota
	FlagFilter
	FlagConnector
	FlagInternal
)

// MatchResult is returned by Match when a pipeline is being built.
type MatchResult uint8

const (
	MatchOK MatchResult = iota
	MatchReject
	MatchReroute
	MatchOmitFilter
)

// Direction distinguishes the RX and TX sides a filter/handler may bind to.
type Direction uint8

const (
	DirRX Direction = iota
	DirTX
)

// Context is the minimal per-stream surface a Stage callback needs: the
// owning queue pair. Higher layers
// (pipeline, stream) implement it; stage itself stays free of any
// dependency on stream/pipeline to keep the leaves-first dependency order.
type Context interface {
	RXQueue() *queue.Queue
	TXQueue() *queue.Queue
}

// Stage is a capability set: every field is an optional callback. A stage
// that only needs to filter outgoing packets sets Outgoing and leaves
// everything else nil; dispatch code must nil-check before calling.
type Stage struct {
	StageName string
	StageFlag Flags

	// Match is asked, with direction, whether this stage should be inserted
	// into the pipeline being built (spec.md §4.3 Filter selection).
	Match func(ctx Context, dir Direction) MatchResult

	// Open/Close are invoked once per side, idempotently, balanced with
	// each other on pipeline teardown (spec.md §4.3, §5).
	Open  func(ctx Context) error
	Close func(ctx Context)

	// Start fires when headers are ready and the handler may emit
	// (spec.md §4.3).
	Start func(ctx Context)

	// Ready fires when all input is available, or the stream is writable
	// client-side (spec.md §4.3).
	Ready func(ctx Context)

	// Writable is an optional hint callback invoked when the stage's
	// outgoing queue transitions from suspended to writable.
	Writable func(ctx Context)

	// Incoming/Outgoing process one packet travelling through this stage in
	// the given direction; IncomingService/OutgoingService are the queue
	// Service callbacks bound to the RX/TX queues this stage owns.
	Incoming        func(ctx Context, q *queue.Queue, p *packet.Packet)
	Outgoing        func(ctx Context, q *queue.Queue, p *packet.Packet)
	IncomingService queue.ServiceFunc
	OutgoingService queue.ServiceFunc
}

func (s *Stage) Name() string    { return s.StageName }
func (s *Stage) Flags() Flags    { return s.StageFlag }
func (s *Stage) Is(f Flags) bool { return s.StageFlag&f != 0 }

// New constructs a named Stage with the given role flags. Callbacks are set
// on the returned value directly (idiomatic for a capability-set struct).
func New(name string, flags Flags) *Stage {
	return &Stage{StageName: name, StageFlag: flags}
}
