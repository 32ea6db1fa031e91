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

// Package http2 implements the network-level pieces of HTTP/2 multiplexing
// named in spec.md §4.6: the shared rx/tx HPACK header tables and per-stream
// flow-control window bookkeeping. Framing (SETTINGS/HEADERS/DATA/
// WINDOW_UPDATE parsing off the wire) is left to the embedding connector,
// consistent with spec.md treating HTTP/2 as optional and network-scoped
// rather than re-specifying RFC 7540 framing in full.
package http2

import (
	"bytes"

	"golang.org/x/net/http2/hpack"

	"github.com/nabbar/httpcore/stream"
)

// defaultHeaderTableSize matches the RFC 7540 §6.5.2 default SETTINGS value
// used by net/http2 and by _examples/baranov1ch-http2's own decoder.
const defaultHeaderTableSize = 4096

// Tables holds one network's shared HPACK encode/decode state. spec.md §4.6:
// "Header tables... are shared per network and managed as two separate
// tables (rx/tx)".
type Tables struct {
	encBuf bytes.Buffer
	enc    *hpack.Encoder
	dec    *hpack.Decoder
	fields []hpack.HeaderField
}

// NewTables constructs the rx/tx table pair for one network.
func NewTables() *Tables {
	t := &Tables{}
	t.enc = hpack.NewEncoder(&t.encBuf)
	t.dec = hpack.NewDecoder(defaultHeaderTableSize, t.onField)
	return t
}

func (t *Tables) onField(f hpack.HeaderField) {
	t.fields = append(t.fields, f)
}

// DecodeHeaderBlock feeds an accumulated HEADERS(+CONTINUATION) fragment
// block to the rx table and returns the decoded pseudo-header/normal-header
// fields in wire order. The tables's state (the dynamic table) persists
// across calls for the life of the network, per spec.md §4.6.
func (t *Tables) DecodeHeaderBlock(block []byte) ([]hpack.HeaderField, error) {
	t.fields = t.fields[:0]
	if _, err := t.dec.Write(block); err != nil {
		return nil, err
	}
	return t.fields, nil
}

// EncodeHeaders writes pseudo (the pseudo-headers, first) and then the
// regular headers in h to the tx table and returns the HPACK-encoded block ready to frame into
// HEADERS/CONTINUATION.
func (t *Tables) EncodeHeaders(pseudo []hpack.HeaderField, h stream.Headers) ([]byte, error) {
	t.encBuf.Reset()
	for _, f := range pseudo {
		if err := t.enc.WriteField(f); err != nil {
			return nil, err
		}
	}
	for k, vs := range h {
		for _, v := range vs {
			if err := t.enc.WriteField(hpack.HeaderField{Name: lower(k), Value: v}); err != nil {
				return nil, err
			}
		}
	}
	out := append([]byte(nil), t.encBuf.Bytes()...)
	return out, nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
