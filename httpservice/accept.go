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

package httpservice

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nabbar/httpcore/monitor"
	"github.com/nabbar/httpcore/netconn"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/proto/http1"
	"github.com/nabbar/httpcore/reqstate"
	"github.com/nabbar/httpcore/stage"
)

// readBufferSize is the chunk size the accept loop reads the socket in,
// matching the teacher's connection buffer sizing.
const readBufferSize = 16 << 10

// errStreamClose signals handleStream's caller that the connection must
// close rather than serve another request on it (protocol error, client
// EOF mid-stream, or a response that declined keep-alive).
var errStreamClose = errors.New("httpservice: close connection")

// Serve accepts connections from ln until ctx is cancelled or Accept fails,
// handling each on its own goroutine — mirroring the teacher's
// httpserver.Server.Listen accept loop (nabbar-golib/httpserver/server.go).
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn owns one accepted connection end to end: the ban/delay check,
// the Network that frames it, and every stream served sequentially over it.
// HTTP/1 keep-alive reuses one connection for many requests but never
// concurrently, so one stream at a time is all handleConn ever drives (the
// HTTP/2 multiplexed case is Network's to arbitrate, not this loop's).
func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	now := time.Now()
	if addr, ok := s.hub.Tracker.Get(ip); ok {
		if addr.Banned(now) {
			s.hub.RecordEvent(ip, monitor.CounterLimitErrors, 1)
			return
		}
		if d := addr.CurrentDelay(now); d > 0 {
			time.Sleep(d)
		}
	}

	nc := netconn.New(conn, netconn.ProtoHTTP11, s.log)
	s.hub.RecordEvent(ip, monitor.CounterActiveConnections, 1)
	defer s.hub.RecordEvent(ip, monitor.CounterActiveConnections, -1)

	for {
		if err := s.handleStream(nc, conn, ip); err != nil {
			return
		}
	}
}

// handleStream runs exactly one request/response exchange over nc's
// connection, returning a non-nil error when the connection must close.
//
// Bytes read off the wire are handed directly to the active stage's
// Incoming method rather than queued and scheduled: pipeline.Build/Extend
// only wire a stage's IncomingService onto the queue's scheduled Service
// slot, never its Incoming field, and the http1/ws filters' own tests
// confirm Incoming is meant to be called directly by whatever owns the
// raw bytes. The scheduler ring (netconn.Network.Schedule/Drain) is reserved
// for the TX/outgoing side, driven once a route or direct response Puts
// packets and calls queue.Schedule.
func (s *Service) handleStream(nc *netconn.Network, conn net.Conn, ip string) error {
	st := nc.AddStream(false)
	defer nc.RemoveStream(st)
	st.Limits = s.limits

	s.hub.RecordEvent(ip, monitor.CounterActiveRequests, 1)
	defer s.hub.RecordEvent(ip, monitor.CounterActiveRequests, -1)

	protoStage := http1.NewFilter(true)
	st.RXChain = pipeline.Build("rx", nc, st, []*stage.Stage{protoStage})

	active := protoStage
	routed := false

	if s.headerTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.headerTimeout))
	}

	buf := make([]byte, readBufferSize)
	for {
		n, rerr := conn.Read(buf)
		if n > 0 {
			p := packet.New(n)
			p.Type = packet.TypeData
			p.Content.Write(buf[:n])

			if active != nil && active.Incoming != nil {
				active.Incoming(st, st.RXChain.ProtocolEndpoint(true), p)
			}
			st.LastActivity = time.Now()

			if !routed && st.State.Current() >= reqstate.Parsed && st.TXChain == nil {
				routed = true
				newActive, err := s.route(st, nc, protoStage)
				if err != nil {
					st.Fail(err)
					s.hub.RecordEvent(ip, monitor.CounterTotalErrors, 1)
				}
				if newActive != nil {
					active = newActive
				}
				nc.Drain()
			}
		}

		if rerr != nil {
			st.Rx.EOF = true
			st.Process()
			nc.Drain()
			// A read error (EOF or otherwise) means the peer will send no
			// more bytes on this connection, so there is no request left to
			// keep it open for, regardless of what KeepAliveCount says.
			return errStreamClose
		}
		if st.State.Current() >= reqstate.Finalized {
			nc.Drain()
			break
		}
	}

	if st.Error != nil || st.KeepAliveCount <= 0 {
		return errStreamClose
	}
	return nil
}
