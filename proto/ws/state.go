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

// State carries one connection's WebSocket protocol state across
// incremental reads, mirroring HttpWebSocket in webSock.c/webSockFilter.c.
// It has no dependency on the stream package so that stream.Stream can hold
// one directly (spec.md §2 leaves-first dependency order), with the Filter
// in this package reaching it through the Host interface instead of a
// concrete stream type.
type State struct {
	// Server is true for the accepting side, which never masks outgoing
	// frames (RFC 6455 §5.1). Incoming frames are not checked for a mask:
	// masked ones are unmasked and unmasked ones are accepted as they are.
	Server bool

	// CurrentMessageType is the opcode of the in-progress fragmented
	// message, or 0 if none (ws->currentMessageType).
	CurrentMessageType Opcode

	// CurrentMessage accumulates reassembled payload bytes across
	// continuation frames until a FIN frame completes the message
	// (ws->currentMessage / httpJoinPacket).
	CurrentMessage []byte

	// PartialUTF is the DFA state carried across frames of a
	// not-yet-complete text message (ws->partialUTF).
	PartialUTF uint32

	// MessageLength is the running byte count of the in-progress message.
	// No maximum message size is enforced against it.
	MessageLength int64

	// Closing is set once this side has sent or received a CLOSE frame
	// (ws->closing).
	Closing bool

	// CloseStatus/CloseReason record the status this connection closed
	// with, once known (ws->closeStatus/ws->closeReason).
	CloseStatus int
	CloseReason string

	// PreserveFrames records the httpSetWebSocketPreserveFrames setting. The
	// Filter does not read it: incoming frames are always reassembled into
	// whole messages, and Send always splits at FrameSize.
	PreserveFrames bool
}

// NewState returns a fresh State for one side of a connection.
func NewState(server bool) *State {
	return &State{Server: server}
}

// Reset clears per-message accumulation once a message has been delivered,
// readying State for the next one (the ws->currentFrame = 0 / frameState =
// WS_BEGIN reset at the end of incomingWebSockData's WS_MSG case).
func (s *State) Reset() {
	s.CurrentMessageType = 0
	s.CurrentMessage = nil
	s.MessageLength = 0
}
