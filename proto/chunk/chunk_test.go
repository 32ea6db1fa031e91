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

package chunk_test

import (
	"testing"

	"github.com/nabbar/httpcore/proto/chunk"
)

func TestDecodeWikipediaExample(t *testing.T) {
	d := chunk.NewDecoder()
	input := []byte("\r\n4\r\nwiki\r\n5\r\npedia\r\n0\r\n\r\n")

	body, consumed, eof, err := d.Decode(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != len(input) {
		t.Fatalf("expected to consume all %d bytes, consumed %d", len(input), consumed)
	}
	if !eof {
		t.Fatal("expected eof after final chunk")
	}
	if string(body) != "wikipedia" {
		t.Fatalf("expected body %q, got %q", "wikipedia", body)
	}
}

func TestDecodeIncompleteChunkSpecWaitsForMoreBytes(t *testing.T) {
	d := chunk.NewDecoder()
	body, consumed, eof, err := d.Decode([]byte("\r\n4\r\nwi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eof {
		t.Fatal("did not expect eof")
	}
	if consumed != 7 {
		t.Fatalf("expected to consume the 7 spec+partial-data bytes, got %d", consumed)
	}
	if string(body) != "wi" {
		t.Fatalf("expected partial body %q, got %q", "wi", body)
	}
}

func TestDecodeRejectsMalformedSpec(t *testing.T) {
	d := chunk.NewDecoder()
	_, _, _, err := d.Decode([]byte("XYZQ\r\ndata\r\n"))
	if err == nil {
		t.Fatal("expected error for non-hex chunk size")
	}
}

func TestDecodeRejectsMissingLeadingCRLF(t *testing.T) {
	d := chunk.NewDecoder()
	d.State = chunk.Start
	_, _, _, err := d.Decode([]byte("4data"))
	if err == nil {
		t.Fatal("expected error for missing leading CRLF before chunk spec")
	}
}

func TestEncodePrefixDataAndFinal(t *testing.T) {
	if got := string(chunk.EncodePrefix(5)); got != "\r\n5\r\n" {
		t.Fatalf("expected %q, got %q", "\r\n5\r\n", got)
	}
	if got := string(chunk.EncodePrefix(0)); got != "\r\n0\r\n\r\n" {
		t.Fatalf("expected %q, got %q", "\r\n0\r\n\r\n", got)
	}
}

func TestRoundTripEncodeDecode(t *testing.T) {
	d := chunk.NewDecoder()
	var wire []byte
	wire = append(wire, chunk.EncodePrefix(5)...)
	wire = append(wire, "Hello"...)
	wire = append(wire, chunk.EncodePrefix(0)...)

	body, consumed, eof, err := d.Decode(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eof {
		t.Fatal("expected eof")
	}
	if consumed != len(wire) {
		t.Fatalf("expected to consume all bytes, got %d of %d", consumed, len(wire))
	}
	if string(body) != "Hello" {
		t.Fatalf("expected %q, got %q", "Hello", body)
	}
}
