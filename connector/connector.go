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

// Package connector implements the terminal TX stage: it owns no downstream
// queue and instead writes its queue's packets straight to the stream's
// transport socket, materializing at most one file-backed entity region per
// service call. Grounded on httpSendOpen/sendClose/httpSendOutgoingService/
// buildSendVec (original_source/src/sendConnector.c) and spec.md §4.11.
package connector

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/proto/chunk"
	"github.com/nabbar/httpcore/proto/http1"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

// Connector writes a stream's TX output to its socket. Server selects
// whether the outgoing line is a status line (server response) or a
// request line (client/proxy forwarding), mirroring proto/http1.Filter's
// own Server field.
type Connector struct {
	Server bool
}

// NewConnector builds the Stage wiring for a connector.
func NewConnector(server bool) *stage.Stage {
	c := &Connector{Server: server}
	s := stage.New("connector", stage.FlagConnector)
	s.Match = c.match
	s.Open = c.open
	s.Close = c.close
	s.Outgoing = c.outgoing
	s.OutgoingService = c.outgoingService
	return s
}

// match keeps the connector out of any RX chain it might accidentally be
// offered to; it is TX-only by construction.
func (c *Connector) match(_ stage.Context, dir stage.Direction) stage.MatchResult {
	if dir != stage.DirTX {
		return stage.MatchReject
	}
	return stage.MatchOK
}

// open grounds httpSendOpen: a filename response opens its backing file for
// reading, unless the exchange has none.
func (c *Connector) open(ctx stage.Context) error {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil || st.Tx.Filename == "" {
		return nil
	}
	f, err := os.Open(st.Tx.Filename)
	if err != nil {
		return fmt.Errorf("connector: opening %s: %w", st.Tx.Filename, err)
	}
	st.ConnectorFile = f
	return nil
}

// close grounds sendClose: release the backing file, if one was opened.
func (c *Connector) close(ctx stage.Context) {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil || st.ConnectorFile == nil {
		return
	}
	_ = st.ConnectorFile.Close()
	st.ConnectorFile = nil
}

// outgoing buffers one packet for the outgoing service, the same
// q.Put(p) convention every other TX stage's Outgoing uses.
func (c *Connector) outgoing(_ stage.Context, q *queue.Queue, p *packet.Packet) {
	q.Put(p)
}

// outgoingService grounds httpSendOutgoingService/buildSendVec: drain q,
// batching consecutive in-memory packets into one vectored net.Buffers
// write, stopping at the first file-backed entity packet so at most one
// such region is read and written per call. Reaching the end packet
// finalizes the connector and, with it, the stream.
func (c *Connector) outgoingService(q *queue.Queue) {
	st, ok := q.Owner.(*stream.Stream)
	if !ok || st == nil || st.Socket == nil {
		return
	}

	var bufs net.Buffers
	if !st.Tx.HeadersWritten {
		bufs = append(bufs, c.headerLine(st), http1.BuildHeaders(st.Tx.Headers, st.Tx.ChunkSize))
		st.Tx.HeadersWritten = true
	}

	var consumed []*packet.Packet
	var fill *packet.Packet

	for {
		p := q.Peek()
		if p == nil {
			break
		}
		if p.Fill {
			if len(consumed) == 0 {
				fill = q.Get()
			}
			break
		}
		q.Get()
		consumed = append(consumed, p)
		if data := c.frame(st, p); len(data) > 0 {
			bufs = append(bufs, data)
		}
		if p.Type == packet.TypeEnd {
			break
		}
	}

	if len(bufs) > 0 {
		if _, err := bufs.WriteTo(st.Socket); err != nil {
			st.Fail(fmt.Errorf("connector: writing response: %w", err))
			return
		}
	}

	if fill != nil {
		if err := c.writeEntity(st, fill); err != nil {
			st.Fail(fmt.Errorf("connector: writing entity region: %w", err))
			return
		}
	}

	if endReached(consumed) || (fill != nil && (fill.Type == packet.TypeEnd || fill.Last)) {
		st.Tx.FinalizedConnector = true
		st.Process()
		return
	}
	if q.Peek() != nil {
		queue.Schedule(q)
	}
}

// headerLine composes the outgoing status or request line, per
// BuildStatusLine/BuildRequestLine (proto/http1).
func (c *Connector) headerLine(st *stream.Stream) []byte {
	if c.Server {
		return []byte(http1.BuildStatusLine(st.Tx, st.Rx.HTTP11))
	}
	return []byte(http1.BuildRequestLine(st.Rx.Method, st.Rx.URI, "", st.Rx.HTTP11))
}

// frame returns the wire bytes for one in-memory packet: its prefix, then
// either its content as-is or chunk-encoded when Tx.ChunkSize declares
// chunked transfer (spec.md §4.5/§4.11).
func (c *Connector) frame(st *stream.Stream, p *packet.Packet) []byte {
	var out []byte
	if p.Prefix != nil && p.Prefix.Len() > 0 {
		out = append(out, p.Prefix.Bytes()...)
	}

	if st.Tx.ChunkSize <= 0 {
		if p.Content != nil && p.Content.Len() > 0 {
			out = append(out, p.Content.Bytes()...)
		}
		return out
	}

	switch {
	case p.Type == packet.TypeEnd:
		out = append(out, chunk.EncodePrefix(0)...)
	case p.Content != nil && p.Content.Len() > 0:
		out = append(out, chunk.EncodePrefix(p.Content.Len())...)
		out = append(out, p.Content.Bytes()...)
	}
	return out
}

// writeEntity streams p's file region [Epos:Epos+Esize) from the open
// backing file to the socket. io.Copy already prefers dst's ReadFrom when
// present (true of *net.TCPConn), which is this module's idiomatic Go
// stand-in for the sendfile(2)/mprSendFileToSocket region transfer — no
// raw fd or syscall access is needed at this layer.
func (c *Connector) writeEntity(st *stream.Stream, p *packet.Packet) error {
	if st.ConnectorFile == nil || p.Esize <= 0 {
		return nil
	}
	if st.Tx.ChunkSize > 0 {
		if _, err := st.Socket.Write(chunk.EncodePrefix(int(p.Esize))); err != nil {
			return err
		}
	}
	section := io.NewSectionReader(st.ConnectorFile, p.Epos, p.Esize)
	_, err := io.Copy(st.Socket, section)
	return err
}

func endReached(consumed []*packet.Packet) bool {
	for _, p := range consumed {
		if p.Type == packet.TypeEnd || p.Last {
			return true
		}
	}
	return false
}
