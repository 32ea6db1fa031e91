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

package connector_test

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/nabbar/httpcore/connector"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

func newQueue(st *stream.Stream, fs *stage.Stage) *queue.Queue {
	q := queue.New("tx", fs, nil)
	q.Owner = st
	return q
}

func dataPacket(body string) *packet.Packet {
	p := packet.New(len(body))
	p.Type = packet.TypeData
	p.Content.WriteString(body)
	return p
}

func endPacket() *packet.Packet {
	p := packet.New(0)
	p.Type = packet.TypeEnd
	p.Last = true
	return p
}

func TestOutgoingServiceWritesSimpleResponse(t *testing.T) {
	st := stream.New(nil)
	st.Tx.Status = 200
	st.Rx.HTTP11 = true

	var sock bytes.Buffer
	st.Socket = &sock

	fs := connector.NewConnector(true)
	q := newQueue(st, fs)
	q.Put(dataPacket("hello"))
	q.Put(endPacket())

	fs.OutgoingService(q)

	out := sock.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("expected status line prefix, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("expected body in output, got %q", out)
	}
	if !st.Tx.HeadersWritten {
		t.Fatal("expected HeadersWritten to be set")
	}
	if !st.Tx.FinalizedConnector {
		t.Fatal("expected FinalizedConnector once the end packet is reached")
	}
}

func TestOutgoingServiceChunksData(t *testing.T) {
	st := stream.New(nil)
	st.Tx.Status = 200
	st.Tx.ChunkSize = 16
	st.Rx.HTTP11 = true

	var sock bytes.Buffer
	st.Socket = &sock

	fs := connector.NewConnector(true)
	q := newQueue(st, fs)
	q.Put(dataPacket("hello"))
	q.Put(endPacket())

	fs.OutgoingService(q)

	out := sock.String()
	if !strings.Contains(out, "\r\n5\r\nhello") {
		t.Fatalf("expected chunk-framed body, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\n0\r\n\r\n") {
		t.Fatalf("expected terminating chunk, got %q", out)
	}
}

func TestOutgoingServiceWritesEntityRegionAcrossTwoCalls(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "connector-entity")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	if _, err = f.WriteString("0123456789"); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	_ = f.Close()

	st := stream.New(nil)
	st.Tx.Status = 200
	st.Rx.HTTP11 = true
	st.Tx.Filename = f.Name()

	var sock bytes.Buffer
	st.Socket = &sock

	fs := connector.NewConnector(true)
	if err = fs.Open(st); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer fs.Close(st)

	q := newQueue(st, fs)
	q.Put(packet.NewEntity(2, 5)) // "23456"
	q.Put(endPacket())

	fs.OutgoingService(q) // first call: writes headers + the entity region
	if st.Tx.FinalizedConnector {
		t.Fatal("did not expect finalize before the end packet is reached")
	}
	if !strings.Contains(sock.String(), "23456") {
		t.Fatalf("expected entity region in output, got %q", sock.String())
	}

	fs.OutgoingService(q) // second call: drains the end packet
	if !st.Tx.FinalizedConnector {
		t.Fatal("expected FinalizedConnector after the end packet is reached")
	}
}

type errWriter struct{}

func (errWriter) Write(_ []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestOutgoingServiceFailsStreamOnWriteError(t *testing.T) {
	st := stream.New(nil)
	st.Tx.Status = 200
	st.Socket = errWriter{}

	fs := connector.NewConnector(true)
	q := newQueue(st, fs)
	q.Put(dataPacket("hello"))
	q.Put(endPacket())

	fs.OutgoingService(q)

	if st.Error == nil {
		t.Fatal("expected the stream to record the write error")
	}
	if st.KeepAliveCount != 0 {
		t.Fatal("expected Fail to force connection close")
	}
}
