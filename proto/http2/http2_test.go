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

package http2_test

import (
	"testing"

	"golang.org/x/net/http2/hpack"

	"github.com/nabbar/httpcore/proto/http2"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stream"
)

func TestEncodeThenDecodeHeaderBlockRoundTrips(t *testing.T) {
	tx := http2.NewTables()
	rx := http2.NewTables()

	h := stream.Headers{"Content-Type": []string{"text/plain"}}
	pseudo := []hpack.HeaderField{{Name: ":status", Value: "200"}}

	block, err := tx.EncodeHeaders(pseudo, h)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	fields, err := rx.DecodeHeaderBlock(block)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	var sawStatus, sawContentType bool
	for _, f := range fields {
		if f.Name == ":status" && f.Value == "200" {
			sawStatus = true
		}
		if f.Name == "content-type" && f.Value == "text/plain" {
			sawContentType = true
		}
	}
	if !sawStatus {
		t.Fatal("expected decoded fields to include :status 200")
	}
	if !sawContentType {
		t.Fatal("expected decoded fields to include content-type text/plain")
	}
}

func TestFlowWindowConsumeAndIncrement(t *testing.T) {
	q := queue.New("out", nil, nil)
	w := http2.NewFlowWindow(100, q)

	if q.Max != 100 {
		t.Fatalf("expected queue Max to track initial window, got %d", q.Max)
	}

	if err := w.Consume(40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Size() != 60 || q.Max != 60 {
		t.Fatalf("expected window and queue Max at 60, got window=%d q.Max=%d", w.Size(), q.Max)
	}

	if err := w.Consume(1000); err == nil {
		t.Fatal("expected overrun to fail")
	}

	if err := w.Increment(40); err != nil {
		t.Fatalf("unexpected increment error: %v", err)
	}
	if w.Size() != 100 {
		t.Fatalf("expected window restored to 100, got %d", w.Size())
	}
}

func TestIsClientInitiated(t *testing.T) {
	if !http2.IsClientInitiated(1) {
		t.Fatal("expected stream 1 to be client-initiated")
	}
	if http2.IsClientInitiated(2) {
		t.Fatal("expected stream 2 to be server-initiated")
	}
}
