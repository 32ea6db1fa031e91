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

// Package pipeline builds the per-stream RX/TX queue chains from an ordered
// set of candidate stages, per spec.md §4.3.
package pipeline

import (
	"errors"

	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// ErrReroute is returned by MatchDirection when a stage's Match callback
// requested REROUTE; the caller restarts pipeline construction with the new
// URI/route (spec.md §4.3).
var ErrReroute = errors.New("pipeline: reroute requested")

// Chain is one direction's (RX or TX) assembled queue list, head to tail in
// traversal order.
type Chain struct {
	Head  *queue.Queue // sentinel: rxHead (RX) or txHead (TX)
	Queues []*queue.Queue
}

// Endpoint returns the application-facing queue: for RX this is the
// tail-most queue (closest to the handler reading input); for TX it is the
// head-most non-sentinel queue (closest to the handler writing output).
func (c *Chain) Endpoint(rx bool) *queue.Queue {
	if len(c.Queues) == 0 {
		return c.Head
	}
	if rx {
		return c.Queues[len(c.Queues)-1]
	}
	return c.Queues[0]
}

// ProtocolEndpoint returns the protocol-facing queue: for RX the head-most
// non-sentinel queue (where the protocol filter writes), for TX the
// tail-most (where bytes leave toward the socket/connector).
func (c *Chain) ProtocolEndpoint(rx bool) *queue.Queue {
	if len(c.Queues) == 0 {
		return c.Head
	}
	if rx {
		return c.Queues[0]
	}
	return c.Queues[len(c.Queues)-1]
}

// Candidate is one stage eligible for insertion into a chain, along with
// the direction it is being evaluated for.
type Candidate struct {
	Stage *stage.Stage
	Dir   stage.Direction
}

// Build links a list of already-matched stages into a Chain, in order. It
// does not pair same-name stages across the RX and TX chains; Pair does
// that once both chains exist. sched is the network's scheduler; ctx is the
// owning stream, stamped onto every created queue's Owner field so a
// Service callback that needs more than generic queue mechanics (a cache
// filter reading tx state, say) can recover it.
func Build(name string, sched queue.Scheduler, ctx stage.Context, matched []*stage.Stage) *Chain {
	head := queue.New(name+".head", stage.New(name+".sentinel", stage.FlagInternal), sched)
	head.Owner = ctx
	c := &Chain{Head: head}

	prev := head
	for _, st := range matched {
		q := queue.New(name+"."+st.Name(), st, sched)
		q.Owner = ctx
		q.PrevQ = prev
		prev.NextQ = q
		if st.IncomingService != nil {
			q.Service = st.IncomingService
		} else if st.OutgoingService != nil {
			q.Service = st.OutgoingService
		}
		if st.Writable != nil {
			stg := st
			q.OnResume = func(*queue.Queue) { stg.Writable(ctx) }
		}
		c.Queues = append(c.Queues, q)
		prev = q
	}
	return c
}

// Extend appends matched stages onto the tail of an already-built chain,
// grounded on spec.md §4.3's "constructed after routing": the protocol
// filter (http1/http2/ws) must already be receiving bytes before a route is
// known, so the chain is built once with just that filter, then extended
// with the route-selected filters/handler/connector once routing completes.
// Bytes already buffered on the chain's tail queue are preserved — Extend
// only links new queues after it, it never rebuilds what is already there.
func Extend(c *Chain, name string, sched queue.Scheduler, ctx stage.Context, matched []*stage.Stage) {
	prev := c.Head
	if len(c.Queues) > 0 {
		prev = c.Queues[len(c.Queues)-1]
	}
	for _, st := range matched {
		q := queue.New(name+"."+st.Name(), st, sched)
		q.Owner = ctx
		q.PrevQ = prev
		prev.NextQ = q
		if st.IncomingService != nil {
			q.Service = st.IncomingService
		} else if st.OutgoingService != nil {
			q.Service = st.OutgoingService
		}
		if st.Writable != nil {
			stg := st
			q.OnResume = func(*queue.Queue) { stg.Writable(ctx) }
		}
		c.Queues = append(c.Queues, q)
		prev = q
	}
}

// Start invokes every stage's Start capability in the chain, in order,
// grounded on spec.md §4.3/§9's stage capability set: "fires when headers
// are ready and the handler may emit".
func Start(c *Chain, ctx stage.Context) {
	for _, q := range c.Queues {
		if st, ok := q.Stage.(*stage.Stage); ok && st.Start != nil {
			st.Start(ctx)
		}
	}
}

// CallReady invokes every stage's Ready capability in the chain, in order
// ("fires when all input is available, or the stream is writable
// client-side"). Named CallReady, not Ready, to avoid colliding with
// reqstate.Ready at call sites that import both packages.
func CallReady(c *Chain, ctx stage.Context) {
	for _, q := range c.Queues {
		if st, ok := q.Stage.(*stage.Stage); ok && st.Ready != nil {
			st.Ready(ctx)
		}
	}
}

// Pair links same-named stage queues across an RX and a TX chain so a
// stage can see its counterpart direction (spec.md §4.3).
func Pair(rx, tx *Chain) {
	for _, rq := range rx.Queues {
		for _, tq := range tx.Queues {
			if rq.Stage.Name() == tq.Stage.Name() {
				rq.Pair = tq
				tq.Pair = rq
			}
		}
	}
}

// MatchDirection runs Match for every candidate stage against ctx, in
// order, keeping MatchOK candidates (and skipping MatchOmitFilter /
// MatchReject), until one returns MatchReroute, which aborts the build
// (spec.md §4.3 "first filter or handler whose match returns OK is chosen"
// generalized to: every matching filter is inserted, the first matching
// handler wins).
func MatchDirection(ctx stage.Context, dir stage.Direction, candidates []*stage.Stage) ([]*stage.Stage, error) {
	var out []*stage.Stage
	handlerChosen := false
	for _, st := range candidates {
		if st.Match == nil {
			out = append(out, st)
			continue
		}
		switch st.Match(ctx, dir) {
		case stage.MatchOK:
			if st.Is(stage.FlagHandler) {
				if handlerChosen {
					continue
				}
				handlerChosen = true
			}
			out = append(out, st)
		case stage.MatchReroute:
			return nil, ErrReroute
		case stage.MatchReject, stage.MatchOmitFilter:
			continue
		}
	}
	return out, nil
}

// Open invokes Open on every stage in the chain, once, idempotently
// (spec.md §4.3, §5 — balanced with Close on teardown).
func Open(c *Chain, ctx stage.Context) error {
	for _, q := range c.Queues {
		if st, ok := q.Stage.(*stage.Stage); ok && st.Open != nil {
			if err := st.Open(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close invokes Close on every stage in the chain, in reverse order
// (mirroring construction order for a clean teardown).
func Close(c *Chain, ctx stage.Context) {
	for i := len(c.Queues) - 1; i >= 0; i-- {
		if st, ok := c.Queues[i].Stage.(*stage.Stage); ok && st.Close != nil {
			st.Close(ctx)
		}
	}
}
