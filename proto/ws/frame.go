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

import "github.com/nabbar/httpcore/errcode"

// Header is one parsed frame header (RFC 6455 §5.2), grounded on the
// GET_FIN/GET_RSV/GET_CODE/GET_LEN/GET_MASK bit-twiddling macros driving
// incomingWebSockData's WS_BEGIN state.
type Header struct {
	Fin    bool
	Opcode Opcode
	Masked bool
	Length int64
	Mask   [4]byte

	// Size is the total number of header bytes this frame occupied on the
	// wire (2 base bytes + extended length + mask key), i.e. how many bytes
	// ParseHeader consumed ahead of the payload.
	Size int
}

// ParseHeader reads one frame header from the front of buf. It returns
// ok=false (no error) if buf does not yet hold enough bytes, matching
// incomingWebSockData's "httpPutBackPacket(q, packet); return" behavior
// when WS_BEGIN needs more data.
func ParseHeader(buf []byte) (hdr Header, ok bool, err errcode.Error) {
	if len(buf) < 2 {
		return Header{}, false, nil
	}
	b0 := buf[0]
	if b0&0x70 != 0 {
		return Header{}, false, errcode.New(errcode.ProtocolBadWebSocket, "ws: bad reserved bits")
	}
	hdr.Fin = b0&0x80 != 0
	op := Opcode(b0 & 0x0f)
	if op > OpPong {
		return Header{}, false, errcode.New(errcode.ProtocolBadWebSocket, "ws: bad frame opcode %d", op)
	}
	hdr.Opcode = op
	if op.IsControl() && !hdr.Fin {
		return Header{}, false, errcode.New(errcode.ProtocolBadWebSocket, "ws: fragmented control frame")
	}

	b1 := buf[1]
	hdr.Masked = b1&0x80 != 0
	lenField := int(b1 & 0x7f)

	extLen := 0
	switch {
	case lenField == 127:
		extLen = 8
	case lenField == 126:
		extLen = 2
	}
	need := 2 + extLen
	if hdr.Masked {
		need += 4
	}
	if len(buf) < need {
		return Header{}, false, nil
	}

	switch {
	case lenField == 127:
		var n int64
		for i := 0; i < 8; i++ {
			n = n<<8 | int64(buf[2+i])
		}
		hdr.Length = n
	case lenField == 126:
		hdr.Length = int64(buf[2])<<8 | int64(buf[3])
	default:
		hdr.Length = int64(lenField)
	}

	if op.IsControl() && hdr.Length > MaxControlPayload {
		return Header{}, false, errcode.New(errcode.ProtocolBadWebSocket, "ws: control frame payload too large")
	}

	if hdr.Masked {
		copy(hdr.Mask[:], buf[2+extLen:2+extLen+4])
	}
	hdr.Size = need
	return hdr, true, nil
}

// ApplyMask XORs data in place against key, starting the rolling 4-byte
// cycle at offset (used when a masked message's payload has been split
// across packets, per incomingWebSockData's ws->maskOffset).
func ApplyMask(data []byte, key [4]byte, offset int) {
	for i := range data {
		data[i] ^= key[(offset+i)&0x3]
	}
}

// EncodeHeader builds the wire bytes of a frame header for an outgoing
// frame of the given length. mask is true for client-originated frames
// only; servers never mask outgoing data, per outgoingWebSockService's
// "Server-side does not mask outgoing data".
func EncodeHeader(fin bool, op Opcode, length int64, masked bool, key [4]byte) []byte {
	out := make([]byte, 0, 14)
	b0 := byte(op)
	if fin {
		b0 |= 0x80
	}
	out = append(out, b0)

	maskBit := byte(0)
	if masked {
		maskBit = 0x80
	}
	switch {
	case length <= 125:
		out = append(out, maskBit|byte(length))
	case length <= 65535:
		out = append(out, maskBit|126, byte(length>>8), byte(length))
	default:
		out = append(out, maskBit|127)
		for i := 7; i >= 0; i-- {
			out = append(out, byte(length>>(8*uint(i))))
		}
	}
	if masked {
		out = append(out, key[:]...)
	}
	return out
}
