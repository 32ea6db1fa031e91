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

package ws

import (
	"crypto/rand"

	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// DefaultFrameSize bounds how large an outgoing frame Send will build
// before starting a new one, per webSocketsFrameSize in httpSendBlock.
const DefaultFrameSize = 16 << 10

// Host is the narrow surface the WebSocket Filter needs from whatever
// drives it (normally *stream.Stream). It intentionally avoids importing
// package stream, which itself holds a *State field: stream depends on ws,
// so ws must not depend back on stream (spec.md §2 leaves-first order).
type Host interface {
	stage.Context
	WSState() *State
	DeliverMessage(op Opcode, payload []byte)
	Abort(err errcode.Error)
}

// Filter is the WebSocket framing filter: incoming frame parsing, message
// reassembly, close/ping/pong handling, and outgoing frame encoding.
// Grounded on incomingWebSockData/processFrame/outgoingWebSockService in
// webSock.c/webSockFilter.c.
type Filter struct {
	Server    bool
	FrameSize int64
}

// NewFilter builds the Stage wiring for a WebSocket filter. server selects
// whether outgoing frames go unmasked (true, accepting side) or masked with
// a random per-frame key (false, client side), per outgoingWebSockService's
// "Server-side does not mask outgoing data".
func NewFilter(server bool) *stage.Stage {
	f := &Filter{Server: server, FrameSize: DefaultFrameSize}
	name := "ws-client"
	if server {
		name = "ws-server"
	}
	s := stage.New(name, stage.FlagFilter)
	s.Incoming = f.incoming
	s.Outgoing = f.outgoing
	s.OutgoingService = f.outgoingService
	return s
}

func joinForService(q *queue.Queue, p *packet.Packet) {
	if head := q.Get(); head != nil {
		_ = packet.Join(head, p)
		q.Put(head)
		return
	}
	q.Put(p)
}

// incoming drains q, parsing as many complete frames as the buffered bytes
// allow and putting back whatever remains incomplete, per WS_BEGIN's
// "need more data" early return in incomingWebSockData.
func (f *Filter) incoming(ctx stage.Context, q *queue.Queue, p *packet.Packet) {
	host, ok := ctx.(Host)
	if !ok || host == nil {
		return
	}
	st := host.WSState()
	if st == nil {
		return
	}
	joinForService(q, p)

	for {
		pk := q.Get()
		if pk == nil {
			return
		}
		for {
			buf := pk.Content.Bytes()
			hdr, hok, perr := ParseHeader(buf)
			if perr != nil {
				host.Abort(perr)
				return
			}
			if !hok {
				joinForService(q, pk)
				return
			}
			total := hdr.Size + int(hdr.Length)
			if len(buf) < total {
				joinForService(q, pk)
				return
			}

			payload := append([]byte(nil), buf[hdr.Size:total]...)
			pk.Content.Next(total)
			if hdr.Masked {
				ApplyMask(payload, hdr.Mask, 0)
			}

			if err := f.processFrame(host, hdr, payload); err != nil {
				host.Abort(err)
				return
			}
			if st.Closing && pk.Content.Len() == 0 {
				return
			}
			if pk.Content.Len() == 0 {
				break
			}
		}
	}
}

// processFrame dispatches one fully-buffered frame, grounded on
// processFrame's switch over packet->type in webSock.c.
func (f *Filter) processFrame(host Host, hdr Header, payload []byte) errcode.Error {
	st := host.WSState()

	switch {
	case hdr.Opcode == OpPing:
		return f.reply(host, OpPong, payload)

	case hdr.Opcode == OpPong:
		return nil

	case hdr.Opcode == OpClose:
		return f.handleClose(host, payload)

	case hdr.Opcode == OpContinuation:
		if st.CurrentMessageType == 0 {
			return errcode.New(errcode.ProtocolBadWebSocket, "ws: continuation frame but no prior message")
		}
		return f.accumulate(host, st.CurrentMessageType, hdr.Fin, payload)

	case hdr.Opcode == OpText || hdr.Opcode == OpBinary:
		if st.CurrentMessageType != 0 {
			return errcode.New(errcode.ProtocolBadWebSocket, "ws: data frame received but expected a continuation frame")
		}
		st.CurrentMessageType = hdr.Opcode
		return f.accumulate(host, hdr.Opcode, hdr.Fin, payload)

	default:
		return errcode.New(errcode.ProtocolBadWebSocket, "ws: unknown frame opcode %d", hdr.Opcode)
	}
}

// accumulate appends payload to the in-progress message, validating UTF-8
// incrementally for text messages, and delivers the completed message to
// the host once a FIN frame arrives, per the WS_MSG_TEXT/BINARY/CONT case
// of processFrame.
func (f *Filter) accumulate(host Host, typ Opcode, fin bool, payload []byte) errcode.Error {
	st := host.WSState()

	st.MessageLength += int64(len(payload))
	if typ == OpText {
		state := ValidateUTF8(st.PartialUTF, payload)
		if state == UTF8Reject {
			return errcode.New(errcode.ProtocolBadWebSocket, "ws: text frame has invalid UTF-8")
		}
		st.PartialUTF = state
	}
	st.CurrentMessage = append(st.CurrentMessage, payload...)

	if !fin {
		return nil
	}
	if typ == OpText && st.PartialUTF != UTF8Accept {
		return errcode.New(errcode.ProtocolBadWebSocket, "ws: text message ends mid-codepoint")
	}

	msg := st.CurrentMessage
	st.Reset()
	st.PartialUTF = UTF8Accept
	host.DeliverMessage(typ, msg)
	return nil
}

// handleClose validates the close status/reason and, unless this side is
// already closing, marks the state closing and echoes a 1000/"OK" close,
// per processFrame's WS_MSG_CLOSE case. It does not finalize the stream;
// the host is not told about the close.
func (f *Filter) handleClose(host Host, payload []byte) errcode.Error {
	st := host.WSState()

	switch {
	case len(payload) == 0:
		st.CloseStatus = StatusOK
	case len(payload) < 2:
		return errcode.New(errcode.ProtocolBadWebSocket, "ws: close frame missing status")
	default:
		status := int(payload[0])<<8 | int(payload[1])
		if !ValidateCloseStatus(status) {
			return errcode.New(errcode.ProtocolBadWebSocket, "ws: bad close status %d", status)
		}
		st.CloseStatus = status
		if len(payload) > 2 {
			reason := payload[2:]
			if ValidateUTF8(UTF8Accept, reason) != UTF8Accept {
				return errcode.New(errcode.ProtocolBadWebSocket, "ws: close reason has invalid UTF-8")
			}
			st.CloseReason = string(reason)
		}
	}

	if st.Closing {
		return nil
	}
	st.Closing = true
	return f.reply(host, OpClose, encodeCloseBody(StatusOK, "OK"))
}

func encodeCloseBody(status int, reason string) []byte {
	out := make([]byte, 2+len(reason))
	out[0] = byte(status >> 8)
	out[1] = byte(status)
	copy(out[2:], reason)
	return out
}

// reply builds and enqueues one unfragmented control-frame response
// directly on the host's TX queue, bypassing outgoing's application-facing
// framing (the response here is protocol-internal, not handler-authored
// data), per httpSendBlock(conn, WS_MSG_PONG/CLOSE, ..., HTTP_BUFFER).
func (f *Filter) reply(host Host, op Opcode, payload []byte) errcode.Error {
	frame, err := f.encodeFrame(true, op, payload)
	if err != nil {
		return err
	}
	q := host.TXQueue()
	if q == nil {
		return nil
	}
	out := packet.New(len(frame))
	out.Type = packet.TypeControl
	out.Content.Write(frame)
	q.Put(out)
	queue.Schedule(q)
	return nil
}

func (f *Filter) encodeFrame(fin bool, op Opcode, payload []byte) ([]byte, errcode.Error) {
	var key [4]byte
	masked := !f.Server
	if masked {
		if _, err := rand.Read(key[:]); err != nil {
			return nil, errcode.Wrap(errcode.ProtocolBadWebSocket, err, "ws: failed generating mask key")
		}
		maskedPayload := make([]byte, len(payload))
		copy(maskedPayload, payload)
		ApplyMask(maskedPayload, key, 0)
		payload = maskedPayload
	}
	hdr := EncodeHeader(fin, op, int64(len(payload)), masked, key)
	return append(hdr, payload...), nil
}

// Send implements the send(stream, type, buf, len, flags) API of spec.md
// §4.5, splitting buf into frames of at most FrameSize bytes, per
// httpSendBlock.
func (f *Filter) Send(host Host, op Opcode, buf []byte) errcode.Error {
	if op.IsControl() && len(buf) > MaxControlPayload {
		return errcode.New(errcode.ProtocolBadWebSocket, "ws: control frame payload too large")
	}
	if len(buf) == 0 {
		frame, err := f.encodeFrame(true, op, nil)
		if err != nil {
			return err
		}
		return f.enqueue(host, frame)
	}
	for offset := 0; offset < len(buf); {
		n := int64(len(buf) - offset)
		if f.FrameSize > 0 && n > f.FrameSize {
			n = f.FrameSize
		}
		chunkOp := op
		if offset > 0 {
			chunkOp = OpContinuation
		}
		end := offset + int(n)
		fin := end >= len(buf)
		frame, err := f.encodeFrame(fin, chunkOp, buf[offset:end])
		if err != nil {
			return err
		}
		if err := f.enqueue(host, frame); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

// SendClose implements sendClose(stream, status, reason) of spec.md §4.5.
func (f *Filter) SendClose(host Host, status int, reason string) errcode.Error {
	st := host.WSState()
	if st.Closing {
		return nil
	}
	st.Closing = true
	if len(reason) > 123 {
		reason = "WebSockets reason message was too big"
	}
	return f.Send(host, OpClose, encodeCloseBody(status, reason))
}

func (f *Filter) enqueue(host Host, frame []byte) errcode.Error {
	q := host.TXQueue()
	if q == nil {
		return errcode.New(errcode.ProtocolBadWebSocket, "ws: no outgoing queue bound")
	}
	p := packet.New(len(frame))
	p.Content.Write(frame)
	p.Last = true
	q.Put(p)
	queue.Schedule(q)
	return nil
}

// outgoing is unused: Send/SendClose enqueue already-framed bytes directly,
// so the application never puts raw packets through this stage's Outgoing
// hook. It exists to satisfy the Stage capability set symmetrically with
// the other protocol filters.
func (f *Filter) outgoing(ctx stage.Context, q *queue.Queue, p *packet.Packet) {
	q.Put(p)
}

// outgoingService drains already-framed packets to the next queue,
// honoring backpressure, per outgoingWebSockService's forwarding loop.
func (f *Filter) outgoingService(q *queue.Queue) {
	next := q.NextQ
	for {
		p := q.Peek()
		if p == nil {
			return
		}
		if next != nil {
			ok, head, _ := queue.WillAccept(next, p, false)
			if !ok {
				return
			}
			p = head
		}
		q.Get()
		if next != nil {
			next.Put(p)
			queue.Schedule(next)
		}
	}
}
