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

// Package errcode defines the error taxonomy of the core: a small numeric
// code space (HTTP-status-shaped, like the status of a protocol error) plus
// the wrapped-parent/trace discipline spec.md §7 requires of every layer.
package errcode

import (
	"math"
	"strconv"
)

// Code is a numeric error classifier, deliberately HTTP-status-shaped so a
// protocol error can carry the status it would also produce on the wire.
type Code uint16

const (
	Unknown Code = 0

	// Protocol errors (spec.md §7)
	ProtocolMalformed    Code = 4000
	ProtocolBadChunk     Code = 4001
	ProtocolBadWebSocket Code = 4002
	ProtocolBadHTTP2     Code = 4003

	// Limit errors
	LimitHeaderTooLarge Code = 4130
	LimitURITooLong     Code = 4140
	LimitBodyTooLarge   Code = 4131
	LimitTooManyStreams Code = 5030
	LimitMessageTooLarge Code = 4132

	// I/O errors
	IOReadFailed  Code = 5900
	IOWriteFailed Code = 5901
	IOPeerReset   Code = 5902

	// Application errors
	AppHandlerFailed  Code = 5000
	AppNotFound       Code = 4040
	AppMethodNotAllowed Code = 4050

	// Timeouts
	TimeoutParse      Code = 4080
	TimeoutInactivity Code = 4081
	TimeoutDuration   Code = 4082

	// Memory / fatal
	MemoryExhausted Code = 5980

	// Configuration errors (coreconfig)
	ConfigParseFailed    Code = 4900
	ConfigRouteSetMissing Code = 4901
	ConfigValidation     Code = 4902
)

// ParseCode clamps an arbitrary integer into the Code range, matching the
// teacher's defensive ParseCodeError behavior.
func ParseCode(i int64) Code {
	if i < 0 {
		return Unknown
	} else if i >= int64(math.MaxUint16) {
		return Code(math.MaxUint16)
	}
	return Code(i)
}

func (c Code) Uint16() uint16 { return uint16(c) }
func (c Code) String() string { return strconv.Itoa(int(c)) }

// HTTPStatus maps a core error code onto the wire status a handler should
// emit when it cannot continue, per spec.md §7's taxonomy table.
func (c Code) HTTPStatus() int {
	switch {
	case c == AppNotFound:
		return 404
	case c == AppMethodNotAllowed:
		return 405
	case c == LimitHeaderTooLarge:
		return 431
	case c == LimitURITooLong:
		return 414
	case c == LimitBodyTooLarge:
		return 413
	case c == LimitTooManyStreams:
		return 503
	case c == LimitMessageTooLarge:
		return 413
	case c == TimeoutParse, c == TimeoutInactivity, c == TimeoutDuration:
		return 408
	case c >= 4000 && c < 5000:
		return 400
	case c >= 5000:
		return 500
	default:
		return 0
	}
}
