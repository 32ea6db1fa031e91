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

package cache

import (
	"net/textproto"
	"strconv"
	"strings"
)

// EncodeEntry serializes a cache entry as "X-Status: N\n<Header>: <value>\n
// ...\n\n<body>", the exact wire format spec.md §3's Cache entry mandates
// (saveCachedResponse's header-then-blank-line-then-body buffer).
func EncodeEntry(status int, headers textproto.MIMEHeader, body []byte) []byte {
	var b strings.Builder
	b.WriteString("X-Status: ")
	b.WriteString(strconv.Itoa(status))
	b.WriteByte('\n')
	for k, vs := range headers {
		for _, v := range vs {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')
	out := make([]byte, 0, b.Len()+len(body))
	out = append(out, b.String()...)
	out = append(out, body...)
	return out
}

// DecodeEntry splits a stored entry at its first blank line, returning the
// X-Status value, the remaining headers (X-Status itself excluded, matching
// setHeadersFromCache's special-case), and the body bytes. ok is false if
// content carries no blank-line separator (malformed or header-less entry,
// in which case all of content is treated as body, per setHeadersFromCache's
// "if (data = strstr(content, "\n\n")) == 0) data = content").
func DecodeEntry(content []byte) (status int, headers textproto.MIMEHeader, body []byte, ok bool) {
	headers = make(textproto.MIMEHeader)
	idx := indexBlankLine(content)
	if idx < 0 {
		return 0, headers, content, false
	}
	headerBlock := string(content[:idx])
	body = content[idx+2:]

	for _, line := range strings.Split(headerBlock, "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		if strings.EqualFold(key, "X-Status") {
			status, _ = strconv.Atoi(value)
			continue
		}
		headers.Add(key, value)
	}
	return status, headers, body, true
}

func indexBlankLine(content []byte) int {
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\n' && content[i+1] == '\n' {
			return i
		}
	}
	return -1
}
