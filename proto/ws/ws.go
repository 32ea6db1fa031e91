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

// Package ws implements the WebSocket protocol filter named in spec.md
// §4.7: frame codec (FIN/RSV/opcode/mask/length), message reassembly
// across fragmented frames, close-status validation, incremental UTF-8
// validation of text frames, and ping/pong handling. Grounded on
// webSockFilter.c/webSock.c (incomingWebSockData/processFrame/
// outgoingWebSockService).
package ws

// Opcode is the 4-bit frame type field (RFC 6455 §5.2).
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// controlOpcodeMin marks the boundary the teacher's filter calls
// WS_MSG_CONTROL: opcodes at or above this value are control frames, which
// must never be fragmented and whose payload is capped at MaxControlPayload.
const controlOpcodeMin = OpClose

// MaxControlPayload is the RFC 6455 §5.5 125-byte control-frame payload
// ceiling.
const MaxControlPayload = 125

// Magic is the RFC 6455 §1.3 handshake GUID appended to the client's
// Sec-WebSocket-Key before SHA-1/base64, both to compute Sec-WebSocket-Accept
// (server) and to verify it (client), per httpUpgradeWebSocket/
// httpVerifyWebSocketsHandshake.
const Magic = "258EAFA5-E914-47DA-95CA-C5AB0DC85D11"

// IsControl reports whether op identifies a control frame (close/ping/pong).
func (op Opcode) IsControl() bool { return op >= controlOpcodeMin }

// IsData reports whether op identifies a message-bearing frame
// (text/binary/continuation).
func (op Opcode) IsData() bool { return op < controlOpcodeMin }

func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "unknown"
	}
}
