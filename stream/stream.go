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

// Package stream implements one logical HTTP request/response exchange: the
// rx/tx envelopes, the bound RX/TX pipeline, and the state-machine drive
// loop. See spec.md §3 (Stream) and §4.2.
package stream

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/nabbar/httpcore/corelog"
	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/proto/chunk"
	"github.com/nabbar/httpcore/proto/ws"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/reqstate"
	"github.com/nabbar/httpcore/stage"
)

// Limits bounds a stream's parsing and runtime behavior (spec.md §4.4,
// §5 timeouts).
type Limits struct {
	HeaderSize  int64
	URISize     int64
	HeaderMax   int
	BodySize    int64

	// CacheItemSize bounds how large a response body the cache filter will
	// buffer before abandoning capture for this stream (spec.md §4.8
	// "cacheItemSize exceeded" cancels buffering).
	CacheItemSize int64

	RequestParseTimeout time.Duration
	InactivityTimeout   time.Duration
	RequestTimeout      time.Duration
}

// DefaultLimits matches common conservative production defaults.
func DefaultLimits() Limits {
	return Limits{
		HeaderSize:          8 << 10,
		URISize:             4 << 10,
		HeaderMax:           128,
		BodySize:            256 << 20,
		CacheItemSize:       4 << 20,
		RequestParseTimeout: 30 * time.Second,
		InactivityTimeout:   120 * time.Second,
		RequestTimeout:      10 * time.Minute,
	}
}

// Stream is one HTTP exchange, per spec.md §3.
type Stream struct {
	ID string

	Rx *Rx
	Tx *Tx

	RXChain *pipeline.Chain
	TXChain *pipeline.Chain

	State *reqstate.Machine

	Error        error
	KeepAliveCount int
	Limits       Limits

	StreamID uint32 // HTTP/2 stream identifier; 0 on HTTP/1

	// Socket is the transport this stream's connector stage writes final
	// bytes to, installed by the owning Network when the stream is created.
	// A narrow io.Writer rather than net.Conn: all the connector needs is a
	// destination net.Buffers.WriteTo can vector-write into.
	Socket io.Writer

	// ConnectorFile is the open backing file for a Tx.Filename response
	// body, owned by the connector stage across its Open/Close callbacks.
	ConnectorFile *os.File

	// ChunkDecoder is non-nil once the http1 filter sees
	// Transfer-Encoding: chunked on this stream's request; it carries the
	// incoming chunk decode state across incremental reads (spec.md §4.5).
	ChunkDecoder *chunk.Decoder

	// WS is non-nil once this stream has been upgraded to a WebSocket
	// connection; it carries frame/message reassembly state across
	// incremental reads (spec.md §4.7).
	WS *ws.State

	Started      time.Time
	LastActivity time.Time

	Log corelog.Logger
}

// New creates a Stream with a fresh state machine. log may be nil
// (corelog.Discard is used).
func New(log corelog.Logger) *Stream {
	if log == nil {
		log = corelog.Discard
	}
	id, _ := uuid.GenerateUUID()
	s := &Stream{
		ID:             id,
		Rx:             NewRx(),
		Tx:             NewTx(),
		KeepAliveCount: 1,
		Limits:         DefaultLimits(),
		Started:        time.Now(),
		LastActivity:   time.Now(),
		Log:            log.WithFields(corelog.Fields{"stream": id}),
	}
	s.State = reqstate.New(s.onState)
	return s
}

func (s *Stream) onState(st reqstate.State) {
	s.Log.Log(corelog.DebugLevel, "stream state -> %s", st)
}

// RXQueue / TXQueue implement stage.Context so every Stage callback can
// reach this stream's endpoints without the stage package depending on
// stream (keeps the leaves-first dependency order of spec.md §2).
func (s *Stream) RXQueue() *queue.Queue {
	if s.RXChain == nil {
		return nil
	}
	return s.RXChain.Endpoint(true)
}

func (s *Stream) TXQueue() *queue.Queue {
	if s.TXChain == nil {
		return nil
	}
	return s.TXChain.Endpoint(false)
}

var _ stage.Context = (*Stream)(nil)
var _ ws.Host = (*Stream)(nil)

// WSState implements ws.Host, letting the ws package's Filter reach this
// stream's WebSocket state through a narrow interface instead of an import
// of package stream (which would cycle back through this very field).
func (s *Stream) WSState() *ws.State { return s.WS }

// SetWSState installs ws as this stream's WebSocket state, called once by
// the upgrade handshake handler when a request negotiates the Upgrade.
func (s *Stream) SetWSState(st *ws.State) { s.WS = st }

// Abort implements ws.Host: a WebSocket protocol error fails the stream the
// same way any other protocol-layer error does (spec.md §7).
func (s *Stream) Abort(err errcode.Error) { s.Fail(err) }

// DeliverMessage implements ws.Host: a fully reassembled WebSocket message
// is appended to the request body for the application to consume, the same
// channel an HTTP/1 request body arrives on, and the state machine is
// nudged forward to let a handler bound to this stream react immediately.
func (s *Stream) DeliverMessage(op ws.Opcode, payload []byte) {
	s.Rx.Body = append(s.Rx.Body, payload...)
	s.Rx.WebSocket = true
	s.Process()
}

// Fail records the stream's error (first one wins), zeroes keep-alive to
// force connection close, and drives the state machine toward FINALIZED —
// spec.md §7 propagation policy: "once set, further protocol operations
// become no-ops; the state machine runs to FINALIZED".
func (s *Stream) Fail(err error) {
	if s.Error != nil {
		return
	}
	s.Error = err
	s.KeepAliveCount = 0
	s.Log.LogError(corelog.ErrorLevel, err, "stream error, forcing finalize")
	s.State.MarkFinalizedInput()
	s.State.MarkFinalizedOutput()
	s.State.MarkFinalizedConnector()
}

// Process drives the state machine forward as far as the current pipeline
// state allows, looping until no further progress is possible in this
// invocation (spec.md §4.2 "driven by process(q)... stopping when no
// further progress is possible").
func (s *Stream) Process() {
	for {
		before := s.State.Current()
		s.step()
		after := s.State.Current()
		if after == before {
			return
		}
	}
}

func (s *Stream) step() {
	switch s.State.Current() {
	case reqstate.Begin:
		s.State.SetState(reqstate.Connected)
	case reqstate.Connected:
		if s.Rx.Method != "" || s.Tx.Status != 0 {
			s.State.SetState(reqstate.First)
		}
	case reqstate.First:
		if len(s.Rx.Headers) > 0 || s.Rx.EOF {
			s.State.SetState(reqstate.Parsed)
			if s.TXChain != nil {
				pipeline.Start(s.TXChain, s)
			}
		}
	case reqstate.Parsed:
		s.State.SetState(reqstate.Content)
	case reqstate.Content:
		if s.Rx.EOF {
			s.State.SetState(reqstate.Ready)
			if s.TXChain != nil {
				pipeline.CallReady(s.TXChain, s)
			}
		}
	case reqstate.Ready:
		s.State.SetState(reqstate.Running)
	case reqstate.Running:
		if s.Tx.FinalizedInput {
			s.State.MarkFinalizedInput()
		}
		if s.Tx.FinalizedOutput {
			s.State.MarkFinalizedOutput()
		}
		if s.Tx.FinalizedConnector {
			s.State.MarkFinalizedConnector()
		}
	case reqstate.Finalized:
		s.State.Complete()
	}
}
