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

package http2

import (
	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/queue"
)

// DefaultInitialWindow is the RFC 7540 §6.9.2 default initial flow-control
// window size for both connection- and stream-level windows.
const DefaultInitialWindow int64 = 65535

// FlowWindow tracks one direction's (stream or connection) flow-control
// credit and keeps a bound outputq's Max in sync with it, per spec.md §4.6
// "per-stream window updates modify stream outputq max".
type FlowWindow struct {
	size int64
	q    *queue.Queue
}

// NewFlowWindow binds a window of the given initial size to q (may be nil
// for the connection-level window, which has no single queue).
func NewFlowWindow(initial int64, q *queue.Queue) *FlowWindow {
	w := &FlowWindow{size: initial, q: q}
	w.apply()
	return w
}

func (w *FlowWindow) apply() {
	if w.q != nil {
		w.q.SetMax(w.size)
	}
}

// Size returns the current window size.
func (w *FlowWindow) Size() int64 { return w.size }

// Consume deducts n bytes of sent/received data from the window, failing
// with a protocol error if the window would go negative.
func (w *FlowWindow) Consume(n int64) errcode.Error {
	if n > w.size {
		return errcode.New(errcode.ProtocolBadHTTP2, "http2: flow-control window exceeded by %d bytes", n-w.size)
	}
	w.size -= n
	w.apply()
	return nil
}

// Increment applies a WINDOW_UPDATE increment. Per RFC 7540 §6.9.1, the
// window size value MUST NOT overflow a signed 31-bit integer once
// incremented.
func (w *FlowWindow) Increment(delta int32) errcode.Error {
	next := w.size + int64(delta)
	if next > (1<<31)-1 {
		return errcode.New(errcode.ProtocolBadHTTP2, "http2: window update overflows 31-bit limit")
	}
	w.size = next
	w.apply()
	return nil
}

// IsClientInitiated reports whether a stream ID belongs to the odd,
// client-initiated space (spec.md §4.6: "Stream IDs are assigned
// monotonically; client-initiated are odd, server-initiated even").
func IsClientInitiated(streamID uint32) bool {
	return streamID%2 == 1
}
