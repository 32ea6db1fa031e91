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

package ws_test

import (
	"testing"

	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/proto/ws"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
)

// fakeHost is a minimal ws.Host used to exercise the Filter without pulling
// in package stream (which itself depends on ws, so a stream-based test
// here would cycle).
type fakeHost struct {
	rx, tx    *queue.Queue
	state     *ws.State
	delivered [][]byte
	ops       []ws.Opcode
	err       errcode.Error
}

func newFakeHost(server bool) *fakeHost {
	return &fakeHost{
		rx:    queue.New("rx", nil, nil),
		tx:    queue.New("tx", nil, nil),
		state: ws.NewState(server),
	}
}

var _ stage.Context = (*fakeHost)(nil)
var _ ws.Host = (*fakeHost)(nil)

func (h *fakeHost) RXQueue() *queue.Queue { return h.rx }
func (h *fakeHost) TXQueue() *queue.Queue { return h.tx }
func (h *fakeHost) WSState() *ws.State    { return h.state }
func (h *fakeHost) Abort(err errcode.Error) {
	if h.err == nil {
		h.err = err
	}
}
func (h *fakeHost) DeliverMessage(op ws.Opcode, payload []byte) {
	h.ops = append(h.ops, op)
	h.delivered = append(h.delivered, append([]byte(nil), payload...))
}

func frame(fin bool, op ws.Opcode, masked bool, key [4]byte, payload []byte) []byte {
	out := ws.EncodeHeader(fin, op, int64(len(payload)), masked, key)
	body := append([]byte(nil), payload...)
	if masked {
		ws.ApplyMask(body, key, 0)
	}
	return append(out, body...)
}

func newPacket(b []byte) *packet.Packet {
	p := packet.New(len(b))
	p.Content.Write(b)
	return p
}

func TestValidateCloseStatusRanges(t *testing.T) {
	valid := []int{1000, 1001, 1002, 1003, 1007, 1008, 1009, 1011, 3000, 4999}
	for _, v := range valid {
		if !ws.ValidateCloseStatus(v) {
			t.Fatalf("expected %d to be a valid close status", v)
		}
	}
	invalid := []int{999, 1004, 1005, 1006, 1012, 1016, 1100, 2999, 5000, 10000}
	for _, v := range invalid {
		if ws.ValidateCloseStatus(v) {
			t.Fatalf("expected %d to be an invalid close status", v)
		}
	}
}

func TestValidateUTF8AcceptsValidAndRejectsInvalid(t *testing.T) {
	if st := ws.ValidateUTF8(ws.UTF8Accept, []byte("Hello, \xe4\xb8\x96\xe7\x95\x8c")); st != ws.UTF8Accept {
		t.Fatalf("expected valid UTF-8 to accept, got state %d", st)
	}
	if st := ws.ValidateUTF8(ws.UTF8Accept, []byte{0xff, 0xfe}); st != ws.UTF8Reject {
		t.Fatalf("expected invalid UTF-8 to reject, got state %d", st)
	}
}

func TestValidateUTF8AcceptsSplitCodepointAcrossCalls(t *testing.T) {
	full := []byte("\xe4\xb8\x96") // one 3-byte CJK codepoint
	mid := ws.ValidateUTF8(ws.UTF8Accept, full[:1])
	if mid == ws.UTF8Accept || mid == ws.UTF8Reject {
		t.Fatalf("expected an intermediate state after 1 of 3 bytes, got %d", mid)
	}
	final := ws.ValidateUTF8(mid, full[1:])
	if final != ws.UTF8Accept {
		t.Fatalf("expected codepoint to complete across calls, got state %d", final)
	}
}

func TestParseHeaderWaitsForMoreBytes(t *testing.T) {
	_, ok, err := ws.ParseHeader([]byte{0x81})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ParseHeader to report incomplete with only 1 byte")
	}
}

func TestParseHeaderRejectsFragmentedControlFrame(t *testing.T) {
	// Close opcode (8) with FIN=0 is illegal.
	_, _, err := ws.ParseHeader([]byte{0x08, 0x00})
	if err == nil {
		t.Fatal("expected an error for a fragmented control frame")
	}
}

// TestFilterReassemblesFragmentedTextMessage is the S5 scenario: a masked
// client sends "Hel" (FIN=0) then "lo" (FIN=1); the application should see
// one logical "Hello" message.
func TestFilterReassemblesFragmentedTextMessage(t *testing.T) {
	host := newFakeHost(true)
	key := [4]byte{0x11, 0x22, 0x33, 0x44}

	s := ws.NewFilter(true)
	wire := append(
		frame(false, ws.OpText, true, key, []byte("Hel")),
		frame(true, ws.OpContinuation, true, key, []byte("lo"))...,
	)

	s.Incoming(host, host.RXQueue(), newPacket(wire))

	if host.err != nil {
		t.Fatalf("unexpected abort: %v", host.err)
	}
	if len(host.delivered) != 1 {
		t.Fatalf("expected exactly one delivered message, got %d", len(host.delivered))
	}
	if string(host.delivered[0]) != "Hello" {
		t.Fatalf("expected reassembled message %q, got %q", "Hello", host.delivered[0])
	}
	if host.ops[0] != ws.OpText {
		t.Fatalf("expected delivered opcode text, got %v", host.ops[0])
	}
}

func TestFilterRespondsToPingWithPong(t *testing.T) {
	host := newFakeHost(true)
	s := ws.NewFilter(true)

	wire := frame(true, ws.OpPing, false, [4]byte{}, []byte("hi"))
	s.Incoming(host, host.RXQueue(), newPacket(wire))

	if host.err != nil {
		t.Fatalf("unexpected abort: %v", host.err)
	}
	out := host.tx.Get()
	if out == nil {
		t.Fatal("expected a queued pong response")
	}
	hdr, ok, err := ws.ParseHeader(out.Content.Bytes())
	if err != nil || !ok {
		t.Fatalf("expected a well-formed pong header, ok=%v err=%v", ok, err)
	}
	if hdr.Opcode != ws.OpPong {
		t.Fatalf("expected pong opcode, got %v", hdr.Opcode)
	}
}

func TestAcceptKeyKnownVector(t *testing.T) {
	// RFC 6455 §1.3 worked example.
	got := ws.AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("expected accept key %q, got %q", want, got)
	}
}

func TestSendSplitsIntoFramesAndMasksOnClient(t *testing.T) {
	host := newFakeHost(false)
	f := ws.Filter{Server: false, FrameSize: 4}

	if err := f.Send(host, ws.OpText, []byte("Hello!")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := host.tx.Get()
	if first == nil {
		t.Fatal("expected at least one outgoing frame")
	}
	hdr, ok, err := ws.ParseHeader(first.Content.Bytes())
	if err != nil || !ok {
		t.Fatalf("expected a well-formed frame header, ok=%v err=%v", ok, err)
	}
	if !hdr.Masked {
		t.Fatal("expected client-originated frame to be masked")
	}
	if hdr.Fin {
		t.Fatal("expected the first of two frames to not be final")
	}
}
