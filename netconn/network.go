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

// Package netconn implements one transport connection: socket ownership,
// protocol selection, the multiplexed stream set, and the scheduler ring
// driving every queue's service callback. See spec.md §3 (Network) and
// §4.1 (Service loop).
package netconn

import (
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/nabbar/httpcore/corelog"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stream"
)

// Protocol identifies the wire protocol negotiated for this connection.
type Protocol int

const (
	ProtoHTTP10 Protocol = iota
	ProtoHTTP11
	ProtoHTTP2
)

// Network is one transport connection, per spec.md §3.
type Network struct {
	ID string

	mu sync.RWMutex

	Sock net.Conn
	IP   string
	Port int

	Protocol Protocol

	streams    map[uint32]*stream.Stream
	ownStreams int
	nextStreamID uint32

	ring *ring

	Banned     bool
	BanUntil   time.Time
	DelayUntil time.Time
	Delay      time.Duration

	Error error

	Log corelog.Logger
}

var _ queue.Scheduler = (*Network)(nil)

// New creates a Network bound to an accepted/dialed socket.
func New(sock net.Conn, proto Protocol, log corelog.Logger) *Network {
	if log == nil {
		log = corelog.Discard
	}
	id, _ := uuid.GenerateUUID()
	ip, port := splitHostPort(sock)
	n := &Network{
		ID:       id,
		Sock:     sock,
		IP:       ip,
		Port:     port,
		Protocol: proto,
		streams:  make(map[uint32]*stream.Stream),
		ring:     newRing(),
		Log:      log.WithFields(corelog.Fields{"network": id}),
	}
	if proto == ProtoHTTP2 {
		n.nextStreamID = 2 // server-initiated streams are even
	}
	return n
}

func splitHostPort(sock net.Conn) (string, int) {
	if sock == nil || sock.RemoteAddr() == nil {
		return "", 0
	}
	if a, ok := sock.RemoteAddr().(*net.TCPAddr); ok {
		return a.IP.String(), a.Port
	}
	return sock.RemoteAddr().String(), 0
}

// Schedule implements queue.Scheduler: every queue built into this
// network's pipelines is constructed with this Network as its Sched, so
// any queue.Schedule(q) call lands here and joins the ring.
func (n *Network) Schedule(q *queue.Queue) {
	n.ring.Schedule(q)
}

// Drain runs the dispatcher's service loop until the ring is empty, per
// spec.md §4.1 Service loop. Called by the event-loop binding after new
// bytes arrive or a stage reschedules a queue.
func (n *Network) Drain() {
	n.ring.Drain()
}

// AddStream registers a locally or remotely initiated stream. On HTTP/2,
// many streams are concurrently active; on HTTP/1.x exactly one (or zero
// between requests), per spec.md §3 Network invariant.
func (n *Network) AddStream(local bool) *stream.Stream {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := stream.New(n.Log)
	s.Socket = n.Sock
	var id uint32
	if n.Protocol == ProtoHTTP2 {
		id = n.nextStreamID
		n.nextStreamID += 2
	}
	s.StreamID = id
	n.streams[id] = s
	if local {
		n.ownStreams++
	}
	return s
}

// RemoveStream drops a completed stream from the active set.
func (n *Network) RemoveStream(s *stream.Stream) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.streams, s.StreamID)
}

// ActiveStreams returns the count of streams still tracked.
func (n *Network) ActiveStreams() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.streams)
}

// Fail marks the network's error and propagates it to every active stream,
// per spec.md §7: "I/O errors... mark net.error, propagate to all streams
// on that network, transition to COMPLETE via FINALIZED".
func (n *Network) Fail(err error) {
	n.mu.Lock()
	if n.Error == nil {
		n.Error = err
	}
	streams := make([]*stream.Stream, 0, len(n.streams))
	for _, s := range n.streams {
		streams = append(streams, s)
	}
	n.mu.Unlock()

	for _, s := range streams {
		s.Fail(err)
	}
}

// IsBanned reports whether this address is currently under a monitor ban
// (spec.md §4.9 — consulted by the accept path before a Network is even
// constructed, exposed here for symmetry with DelayFor).
func (n *Network) IsBanned(now time.Time) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.Banned && now.Before(n.BanUntil)
}

// DelayFor returns how long the accept path should sleep before continuing,
// per a monitor "delay" defense (spec.md §4.9).
func (n *Network) DelayFor(now time.Time) time.Duration {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if now.After(n.DelayUntil) {
		return 0
	}
	return n.Delay
}
