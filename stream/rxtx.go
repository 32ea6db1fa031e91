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

package stream

import "net/textproto"

// Headers is a case-insensitive, order-preserving-for-duplicates header
// map, matching spec.md §3 Rx/Tx. net/textproto.MIMEHeader already
// canonicalizes keys and stores duplicate values in order, which is exactly
// the shape the spec calls for; no third-party header-map library improves
// on it for this use (the corpus carries none — even gin-gonic does its own
// header access over net/http.Header, the same primitive).
type Headers = textproto.MIMEHeader

// Rx is the request envelope (spec.md §3).
type Rx struct {
	Method    string
	URI       string
	PathInfo  string
	ScriptName string

	Headers Headers

	Length           int64 // declared body length, -1 if unknown
	RemainingContent int64
	ChunkState       int
	EOF              bool

	HostHeader string
	Accept     string
	Cookie     string

	// Status and StatusMessage hold the parsed response status line in
	// client mode (Rx is the response being read back); both are zero in
	// server mode, where Rx instead carries the request line.
	Status        int
	StatusMessage string

	IfMatch      string
	IfModified   string
	Since        string
	ETags        []string

	Upgrade   string
	WebSocket bool

	// HTTP11 records whether the request/response line named HTTP/1.1
	// (false for HTTP/1.0), consulted when the connector composes the
	// outgoing status/request line (spec.md §4.4 Outgoing header
	// construction).
	HTTP11 bool

	Params map[string]string
	SVars  map[string]string

	Form      bool
	JSON      bool
	Upload    bool
	Streaming bool

	// Body accumulates decoded request-body bytes as the http1/chunk/http2
	// filters deliver them; a streaming handler may instead drain it
	// incrementally rather than waiting for EOF.
	Body []byte
}

// NewRx returns a zeroed Rx with Length defaulted to -1 (unknown), per
// spec.md §3.
func NewRx() *Rx {
	return &Rx{
		Length:  -1,
		HTTP11:  true,
		Headers: make(Headers),
		Params:  make(map[string]string),
		SVars:   make(map[string]string),
	}
}

// Tx is the response envelope (spec.md §3).
type Tx struct {
	Status  int
	Headers Headers
	Cookies []string // may hold duplicate Set-Cookie values

	Length        int64
	EntityLength  int64
	ChunkSize     int64

	Filename string
	Ext      string
	MimeType string
	ETag     string

	Finalized          bool
	FinalizedOutput    bool
	FinalizedInput     bool
	FinalizedConnector bool

	// HeadersWritten is set once the connector has emitted the
	// status/request line and header block for this exchange (spec.md
	// §4.11 buildSendVec "write headers once").
	HeadersWritten bool

	CacheRuleName string
	CacheBuffer   []byte // capture buffer while the cache filter records the body
	CachedContent []byte // buffer serving a cache hit
}

// NewTx returns a zeroed Tx defaulted to 200, per the common case of a
// handler that never explicitly sets a status.
func NewTx() *Tx {
	return &Tx{Status: 200, Headers: make(Headers), Length: -1}
}
