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

package http1

import (
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/proto/chunk"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/reqstate"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

// Filter is the HTTP/1.0/1.1 framing filter: request/status line and header
// parsing on the way in, status/request line and header construction on the
// way out. Grounded on httpOpenHttp1Filter's incomingHttp1/outgoingHttp1/
// outgoingHttp1Service trio (http1Filter.c).
type Filter struct {
	Server bool
}

// NewFilter builds the Stage wiring for an HTTP/1 filter. server selects
// request-line parsing (true) or status-line parsing (false, client mode).
func NewFilter(server bool) *stage.Stage {
	f := &Filter{Server: server}
	name := "http1-client"
	if server {
		name = "http1-server"
	}
	s := stage.New(name, stage.FlagFilter)
	s.Incoming = f.incoming
	s.Outgoing = f.outgoing
	s.OutgoingService = f.outgoingService
	return s
}

// joinForService mirrors httpJoinPacketForService: merge the new packet into
// whatever is already buffered on q (there is typically at most one), so
// parsing always sees the fully concatenated bytes received so far.
func joinForService(q *queue.Queue, p *packet.Packet) {
	if head := q.Get(); head != nil {
		_ = packet.Join(head, p)
		q.Put(head)
		return
	}
	q.Put(p)
}

func (f *Filter) incoming(ctx stage.Context, q *queue.Queue, p *packet.Packet) {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil || st.Error != nil {
		return
	}
	joinForService(q, p)

	for {
		pk := q.Get()
		if pk == nil {
			break
		}
		if st.State.Current() < reqstate.Parsed {
			complete, tooLarge := headersComplete(pk.Content.Bytes(), st.Limits.HeaderSize)
			if tooLarge {
				st.Fail(errcode.New(errcode.LimitHeaderTooLarge, "http1: header block exceeds limit"))
				return
			}
			if !complete {
				joinForService(q, pk)
				break
			}
			if err := f.applyHeaders(st, pk); err != nil {
				st.Fail(err)
				return
			}
		}
		if pk.Content.Len() == 0 {
			continue
		}
		if err := deliverBody(st, pk); err != nil {
			st.Fail(err)
			return
		}
	}
	st.Process()
}

// applyHeaders runs parseHeaders over pk and folds the result into the
// stream: body framing mode (chunked/content-length/to-EOF), the
// Expect:100-continue synthesized response, and the FIRST/PARSED state
// transitions (spec.md §4.4 steps 3-8).
func (f *Filter) applyHeaders(st *stream.Stream, pk *packet.Packet) errcode.Error {
	res, perr := parseHeaders(st.Limits, st.Rx, st.Tx, f.Server, pk.Content.Bytes())
	if perr != nil {
		return perr
	}
	pk.Content.Next(res.consumed)
	st.State.SetState(reqstate.First)

	switch {
	case res.chunked:
		st.Rx.ChunkState = int(chunk.Start)
		st.Rx.RemainingContent = -1
		st.ChunkDecoder = chunk.NewDecoder()
	case st.Rx.Headers.Get("Content-Length") != "":
		n, convErr := strconv.ParseInt(st.Rx.Headers.Get("Content-Length"), 10, 64)
		if convErr != nil || n < 0 {
			return errcode.New(errcode.ProtocolMalformed, "http1: bad Content-Length")
		}
		st.Rx.Length = n
		st.Rx.RemainingContent = n
		if n == 0 {
			st.Rx.EOF = true
		}
	default:
		st.Rx.RemainingContent = 0
		st.Rx.EOF = true
	}

	if strings.EqualFold(st.Rx.Headers.Get("Expect"), "100-continue") {
		st.Tx.Headers.Set("X-Continue-Sent", "1")
	}

	st.State.SetState(reqstate.Parsed)
	return nil
}

// deliverBody routes buffered body bytes either through the chunk decoder or
// straight through as fixed-length/to-EOF content, appending decoded bytes
// to st.Rx.Body and setting st.Rx.EOF once the declared content ends.
func deliverBody(st *stream.Stream, pk *packet.Packet) errcode.Error {
	raw := pk.Content.Bytes()
	if len(raw) == 0 {
		return nil
	}

	if st.ChunkDecoder != nil {
		body, consumed, eof, err := st.ChunkDecoder.Decode(raw)
		pk.Content.Next(consumed)
		if err != nil {
			if ce, ok := err.(errcode.Error); ok {
				return ce
			}
			return errcode.Wrap(errcode.ProtocolBadChunk, err, "http1: chunk decode failed")
		}
		if len(body) > 0 {
			st.Rx.Body = append(st.Rx.Body, body...)
		}
		if eof {
			st.Rx.EOF = true
		}
		return nil
	}

	n := int64(len(raw))
	if st.Rx.RemainingContent >= 0 && n > st.Rx.RemainingContent {
		n = st.Rx.RemainingContent
	}
	if n > 0 {
		st.Rx.Body = append(st.Rx.Body, raw[:n]...)
		pk.Content.Next(int(n))
	}
	if st.Rx.RemainingContent >= 0 {
		st.Rx.RemainingContent -= n
		if st.Rx.RemainingContent <= 0 {
			st.Rx.EOF = true
		}
	}
	return nil
}

// outgoing buffers a packet for the outgoing service, per outgoingHttp1's
// httpPutForService(q, packet, 1).
func (f *Filter) outgoing(ctx stage.Context, q *queue.Queue, p *packet.Packet) {
	q.Put(p)
}

// outgoingHttp1Service drains q, enforcing the downstream (connector)
// queue's acceptance before handing packets on, per outgoingHttp1Service.
func (f *Filter) outgoingService(q *queue.Queue) {
	next := q.NextQ
	for {
		p := q.Peek()
		if p == nil {
			return
		}
		var tail *packet.Packet
		if next != nil {
			ok, head, t := queue.WillAccept(next, p, true)
			if !ok {
				return
			}
			p, tail = head, t
		}
		q.Get()
		if tail != nil {
			q.PutBack(tail)
		}
		if next != nil {
			next.Put(p)
			queue.Schedule(next)
		}
	}
}
