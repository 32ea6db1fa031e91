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

// Package http1 implements the HTTP/1.0 and HTTP/1.1 framing filter: request
// and status line tokenizing, header field parsing, and outgoing header
// construction, per spec.md §4.4 and original_source/src/http1Filter.c.
package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/stream"
)

// headersComplete reports whether content holds a full header block
// (terminated by "\r\n\r\n" or "\n\n" after any leading blank lines), and
// whether the header section so far already exceeds headerSize — mirroring
// gotHeaders/eatBlankLines in http1Filter.c.
func headersComplete(content []byte, headerSize int64) (complete bool, tooLarge bool) {
	start := 0
	for start < len(content) && (content[start] == '\r' || content[start] == '\n') {
		start++
	}
	rest := content[start:]

	idx := bytes.Index(rest, []byte("\r\n\r\n"))
	if idx < 0 {
		idx = bytes.Index(rest, []byte("\n\n"))
	}

	length := len(rest)
	if idx >= 0 {
		length = idx
	}
	if headerSize > 0 && int64(length) >= headerSize {
		return false, true
	}
	return idx >= 0, false
}

// parseResult carries the outcome of parsing one buffered header block.
type parseResult struct {
	consumed int  // bytes consumed from the input (request/status line + headers, stops before body)
	chunked  bool // Transfer-Encoding: chunked was present
}

// parseHeaders tokenizes a complete header block at the front of content
// into rx/tx, per parseFields/parseRequestLine/parseResponseLine. server
// selects request-line vs status-line parsing (httpServerStream).
func parseHeaders(limits stream.Limits, rx *stream.Rx, tx *stream.Tx, server bool, content []byte) (parseResult, errcode.Error) {
	pos := 0

	for pos < len(content) && (content[pos] == '\r' || content[pos] == '\n') {
		pos++
	}

	var err errcode.Error
	if server {
		pos, err = parseRequestLine(limits, rx, content, pos)
	} else {
		pos, err = parseResponseLine(limits, rx, tx, content, pos)
	}
	if err != nil {
		return parseResult{}, err
	}

	pos, chunked, err := parseFields(limits, rx, content, pos)
	if err != nil {
		return parseResult{}, err
	}
	return parseResult{consumed: pos, chunked: chunked}, nil
}

func parseRequestLine(limits stream.Limits, rx *stream.Rx, content []byte, pos int) (int, errcode.Error) {
	method, pos, ok := getToken(content, pos, nil, kindWord)
	if !ok || len(method) == 0 {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad request, empty method")
	}
	rx.Method = strings.ToUpper(string(method))

	uri, pos, ok := getToken(content, pos, nil, kindURI)
	if !ok || len(uri) == 0 {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad request, empty URI")
	}
	if limits.URISize > 0 && int64(len(uri)) >= limits.URISize {
		return pos, errcode.New(errcode.LimitURITooLong, "http1: URI too long: %d vs limit %d", len(uri), limits.URISize)
	}
	rx.URI = string(uri)

	protocol, pos, ok := getToken(content, pos, []byte("\r\n"), kindWord)
	if !ok || len(protocol) == 0 {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad request, empty protocol")
	}
	proto := strings.ToUpper(string(protocol))
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: unsupported protocol %q", proto)
	}
	rx.HTTP11 = proto == "HTTP/1.1"
	return pos, nil
}

func parseResponseLine(limits stream.Limits, rx *stream.Rx, tx *stream.Tx, content []byte, pos int) (int, errcode.Error) {
	protocol, pos, ok := getToken(content, pos, nil, kindWord)
	if !ok || len(protocol) == 0 {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad response, empty protocol")
	}
	proto := strings.ToUpper(string(protocol))
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: unsupported protocol %q", proto)
	}
	rx.HTTP11 = proto == "HTTP/1.1"

	status, pos, ok := getToken(content, pos, nil, kindNumber)
	if !ok || len(status) == 0 {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad response, missing status code")
	}
	code, convErr := strconv.Atoi(string(status))
	if convErr != nil {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad status code %q", status)
	}
	rx.Length = -1
	_ = tx // status line target lives on the client-side rx in this package's model

	message, pos, ok := getToken(content, pos, []byte("\r\n"), kindLine)
	if !ok || len(message) == 0 {
		return pos, errcode.New(errcode.ProtocolMalformed, "http1: bad response, missing status message")
	}
	if limits.URISize > 0 && int64(len(message)) >= limits.URISize {
		return pos, errcode.New(errcode.LimitURITooLong, "http1: status message too long")
	}
	rx.Status = code
	rx.StatusMessage = string(message)
	return pos, nil
}

// parseFields parses "NAME: VALUE\r\n" lines until it reaches the blank-line
// terminator, per parseFields in http1Filter.c. Set-Cookie is retained as a
// duplicate; pos is left just past the terminating "\r\n\r\n"/"\n\n" unless
// chunked is true, in which case the leading "\r\n" of that terminator is
// left in place for the chunk filter's own framing (spec.md §4.4 step 7-8,
// the chunk-prefix delimiter optimization).
func parseFields(limits stream.Limits, rx *stream.Rx, content []byte, pos int) (int, bool, errcode.Error) {
	count := 0
	for pos < len(content) && content[pos] != '\r' && content[pos] != '\n' {
		if limits.HeaderMax > 0 && count >= limits.HeaderMax {
			return pos, false, errcode.New(errcode.LimitHeaderTooLarge, "http1: too many headers")
		}
		key, next, ok := getToken(content, pos, []byte(":"), kindHeaderKey)
		if !ok || len(key) == 0 {
			return pos, false, errcode.New(errcode.ProtocolMalformed, "http1: bad header format")
		}
		value, next, ok := getToken(content, next, []byte("\r\n"), kindHeaderValue)
		if !ok {
			return pos, false, errcode.New(errcode.ProtocolMalformed, "http1: bad header value")
		}
		pos = next
		count++

		k := string(key)
		v := string(trimOWS(value))
		if strings.EqualFold(k, "set-cookie") {
			rx.Headers.Add(k, v)
		} else {
			rx.Headers.Set(k, v)
		}
	}

	if len(content)-pos < 2 {
		return pos, false, errcode.New(errcode.ProtocolMalformed, "http1: bad header terminator")
	}

	chunked := strings.EqualFold(rx.Headers.Get("Transfer-Encoding"), "chunked")
	if !chunked {
		if content[pos] == '\r' && pos+1 < len(content) && content[pos+1] == '\n' {
			pos += 2
		} else if content[pos] == '\n' {
			pos++
		}
	}
	return pos, chunked, nil
}
