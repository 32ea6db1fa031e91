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

package packet_test

import (
	"bytes"
	"testing"

	"github.com/nabbar/httpcore/packet"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		offset int64
	}{
		{"even-split", []byte("wikipedia"), 4},
		{"zero-offset", []byte("hello"), 0},
		{"full-offset", []byte("hello"), 5},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := packet.New(0)
			p.Content.Write(c.data)
			p.Last = true

			tail := packet.Split(p, c.offset)
			if err := packet.Join(p, tail); err != nil {
				t.Fatalf("join failed: %v", err)
			}
			if !bytes.Equal(p.Content.Bytes(), c.data) {
				t.Fatalf("round trip mismatch: got %q want %q", p.Content.Bytes(), c.data)
			}
			if !p.Last {
				t.Fatalf("expected Last to propagate back through join")
			}
		})
	}
}

func TestSplitEntityPacket(t *testing.T) {
	p := packet.NewEntity(100, 50)
	tail := packet.Split(p, 20)

	if p.Esize != 20 || p.Epos != 100 {
		t.Fatalf("head entity region wrong: epos=%d esize=%d", p.Epos, p.Esize)
	}
	if tail.Epos != 120 || tail.Esize != 30 {
		t.Fatalf("tail entity region wrong: epos=%d esize=%d", tail.Epos, tail.Esize)
	}
	if p.Len() != 20 || tail.Len() != 30 {
		t.Fatalf("lengths wrong: head=%d tail=%d", p.Len(), tail.Len())
	}
}

func TestResizePushesBackTail(t *testing.T) {
	p := packet.New(0)
	p.Content.Write([]byte("0123456789"))

	tail := packet.Resize(p, 4)
	if tail == nil {
		t.Fatal("expected a tail to be pushed back")
	}
	if p.Len() > 4 {
		t.Fatalf("head should be <= 4 bytes, got %d", p.Len())
	}
	if tail.Len() == 0 {
		t.Fatal("pushed-back tail should be non-empty")
	}
}

func TestResizeNoopWhenSmallEnough(t *testing.T) {
	p := packet.New(0)
	p.Content.Write([]byte("abc"))

	if tail := packet.Resize(p, 10); tail != nil {
		t.Fatalf("expected no resize, got a tail of len %d", tail.Len())
	}
}

func TestJoinRejectsEntityPackets(t *testing.T) {
	dst := packet.New(0)
	src := packet.NewEntity(0, 10)
	if err := packet.Join(dst, src); err == nil {
		t.Fatal("expected join of entity packet to fail")
	}
}
