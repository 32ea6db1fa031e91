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

import "bytes"

// kind selects which character-class validation getToken applies, mirroring
// the TOKEN_* flags of original_source/src/http1Filter.c.
type kind uint8

const (
	kindHeaderKey kind = iota
	kindHeaderValue
	kindURI
	kindNumber
	kindWord
	kindLine
)

// headerKeyReject is the exact separator set validateToken rejects from a
// header field name.
const headerKeyReject = "\"\\/ \t\r\n(),:;<=>?@[]{}"

// getToken scans buf starting at pos for the next whitespace- or
// delim-delimited token, validates it per kind, and returns the token bytes
// and the position just past the consumed delimiter. ok is false if no
// complete token/delimiter was found, or the token failed validation.
func getToken(buf []byte, pos int, delim []byte, k kind) (token []byte, next int, ok bool) {
	for pos < len(buf) && (buf[pos] == ' ' || buf[pos] == '\t') {
		pos++
	}
	start := pos

	var end int
	if delim != nil {
		idx := bytes.Index(buf[pos:], delim)
		if idx < 0 {
			return nil, pos, false
		}
		end = pos + idx
		next = end + len(delim)
	} else {
		end = -1
		for i := pos; i < len(buf); i++ {
			if buf[i] == ' ' || buf[i] == '\t' {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, pos, false
		}
		next = end
		for next < len(buf) && (buf[next] == ' ' || buf[next] == '\t') {
			next++
		}
	}

	token = buf[start:end]
	if !validateToken(token, k) {
		return nil, next, false
	}
	return token, next, true
}

func validateToken(token []byte, k kind) bool {
	switch k {
	case kindHeaderKey:
		if len(token) == 0 {
			return false
		}
		if bytes.ContainsAny(token, headerKeyReject) {
			return false
		}
		for _, c := range token {
			if !isPrint(c) {
				return false
			}
		}
		return true

	case kindHeaderValue:
		for _, c := range token {
			if !isPrint(c) && c != ' ' && c != '\t' {
				return false
			}
		}
		return true

	case kindURI:
		return validURIChars(token)

	case kindNumber:
		if len(token) == 0 {
			return false
		}
		for _, c := range token {
			if c < '0' || c > '9' {
				return false
			}
		}
		return true

	case kindWord:
		return bytes.IndexAny(token, " \t\r\n") < 0

	default: // kindLine
		return bytes.IndexAny(token, "\r\n") < 0
	}
}

func isPrint(c byte) bool {
	return c >= 0x20 && c < 0x7f
}

// validURIChars accepts every byte from 0x21 upward except DEL (0x7f), which
// covers the RFC 3986 character set, the bytes real clients send unescaped,
// and any non-ASCII byte; it rejects control characters, DEL and raw
// whitespace, matching httpValidUriChars' intent.
func validURIChars(uri []byte) bool {
	if len(uri) == 0 {
		return false
	}
	for _, c := range uri {
		if c < 0x21 || c == 0x7f {
			return false
		}
	}
	return true
}

// trimOWS trims leading/trailing optional whitespace (SP / HTAB) from a
// header value, per RFC 7230 "OWS VALUE OWS".
func trimOWS(v []byte) []byte {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\t') {
		v = v[1:]
	}
	for len(v) > 0 && (v[len(v)-1] == ' ' || v[len(v)-1] == '\t') {
		v = v[:len(v)-1]
	}
	return v
}
