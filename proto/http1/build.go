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
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/nabbar/httpcore/stream"
)

// BuildStatusLine composes "HTTP/1.x CODE Message\r\n" for a server
// response, per the Outgoing header construction rules of spec.md §4.4.
func BuildStatusLine(tx *stream.Tx, http11 bool) string {
	proto := "HTTP/1.0"
	if http11 {
		proto = "HTTP/1.1"
	}
	msg := http.StatusText(tx.Status)
	if msg == "" {
		msg = "Unknown"
	}
	return fmt.Sprintf("%s %d %s\r\n", proto, tx.Status, msg)
}

// BuildRequestLine composes "METHOD URI HTTP/1.x\r\n" for a client request.
// proxyPrefix, when non-empty, is prepended to uri (proxy host/port
// prefixing per spec.md §4.4 Outgoing header construction).
func BuildRequestLine(method, uri, proxyPrefix string, http11 bool) string {
	proto := "HTTP/1.0"
	if http11 {
		proto = "HTTP/1.1"
	}
	if proxyPrefix != "" {
		uri = proxyPrefix + uri
	}
	return fmt.Sprintf("%s %s %s\r\n", method, uri, proto)
}

// BuildHeaders emits "NAME: VALUE\r\n" for every header (duplicates, e.g.
// Set-Cookie, each on their own line), in a stable sorted order so wire
// output is deterministic for tests even though spec.md notes exact header
// order is implementation-defined. When chunkSize > 0 the trailing blank
// line is omitted so the first chunk-prefix "\r\n<HEX>\r\n" serves double
// duty as both header terminator and chunk introducer (spec.md §4.4
// Outgoing header construction, the one explicit wire optimization named in
// the spec).
func BuildHeaders(h stream.Headers, chunkSize int64) []byte {
	var buf bytes.Buffer

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range h[k] {
			buf.WriteString(k)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.WriteString("\r\n")
		}
	}
	if chunkSize <= 0 {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
