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

package netconn_test

import (
	"errors"
	"net"
	"testing"

	"github.com/nabbar/httpcore/netconn"
)

func TestAddStreamAssignsEvenServerStreamIDsOnHTTP2(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	n := netconn.New(c1, netconn.ProtoHTTP2, nil)
	s1 := n.AddStream(true)
	s2 := n.AddStream(true)

	if s1.StreamID%2 != 0 || s2.StreamID%2 != 0 {
		t.Fatalf("expected even server-initiated stream IDs, got %d, %d", s1.StreamID, s2.StreamID)
	}
	if s1.StreamID == s2.StreamID {
		t.Fatal("expected distinct stream IDs")
	}
	if n.ActiveStreams() != 2 {
		t.Fatalf("expected 2 active streams, got %d", n.ActiveStreams())
	}
}

func TestFailPropagatesToAllStreams(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	n := netconn.New(c1, netconn.ProtoHTTP2, nil)
	s1 := n.AddStream(true)
	s2 := n.AddStream(true)

	n.Fail(errors.New("connection reset"))

	if s1.Error == nil || s2.Error == nil {
		t.Fatal("expected network failure to propagate to every stream")
	}
	if !s1.State.IsFinalized() || !s2.State.IsFinalized() {
		t.Fatal("expected both streams to be finalized after network failure")
	}
}

func TestRemoveStreamDropsFromActiveSet(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	n := netconn.New(c1, netconn.ProtoHTTP11, nil)
	s := n.AddStream(true)
	n.RemoveStream(s)

	if n.ActiveStreams() != 0 {
		t.Fatalf("expected 0 active streams after removal, got %d", n.ActiveStreams())
	}
}
