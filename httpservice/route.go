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
	"net/url"
	"strconv"
	"strings"

	"github.com/nabbar/httpcore/cache"
	"github.com/nabbar/httpcore/connector"
	"github.com/nabbar/httpcore/errcode"
	"github.com/nabbar/httpcore/monitor"
	"github.com/nabbar/httpcore/netconn"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/pipeline"
	"github.com/nabbar/httpcore/proto/ws"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/reqstate"
	"github.com/nabbar/httpcore/router"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

// maxReroutes bounds the REROUTE retry loop (spec.md §4.3): a stage whose
// Match keeps returning MatchReroute forever would otherwise spin the
// request construction indefinitely.
const maxReroutes = 5

// deriveRequestTarget fills in the routing-relevant fields of rx that the
// http1/ws filters never compute themselves (they only tokenize the wire
// form into Method/URI/Headers) — splitting the path from the query string
// and folding the Host header, grounded on the same split the original's
// httpMapMethod/parseUri do ahead of host/route matching
// (original_source/src/uri.c).
func deriveRequestTarget(rx *stream.Rx) {
	rx.HostHeader = router.SplitHostPort(rx.Headers.Get("Host"))

	u, err := url.ParseRequestURI(rx.URI)
	if err != nil {
		rx.PathInfo = rx.URI
		return
	}
	rx.PathInfo = u.Path
	rx.Params = make(map[string]string, len(u.Query()))
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			rx.Params[k] = vs[0]
		}
	}
}

// buildMatchInput projects a stream's request envelope into the narrow view
// router.Match evaluates against, folding the multi-value header map into
// the single-value lookups MatchInput expects.
func buildMatchInput(st *stream.Stream) *router.MatchInput {
	headers := make(map[string]string, len(st.Rx.Headers))
	for k, v := range st.Rx.Headers {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return &router.MatchInput{
		Method:   st.Rx.Method,
		URI:      st.Rx.URI,
		PathInfo: st.Rx.PathInfo,
		Params:   st.Rx.Params,
		Headers:  headers,
	}
}

// isWebSocketUpgrade reports whether the request asks to upgrade to
// WebSocket, per RFC 6455 §4.2.1's required header trio.
func isWebSocketUpgrade(rx *stream.Rx) bool {
	if !strings.EqualFold(rx.Headers.Get("Upgrade"), "websocket") {
		return false
	}
	if !strings.Contains(strings.ToLower(rx.Headers.Get("Connection")), "upgrade") {
		return false
	}
	if rx.Headers.Get("Sec-WebSocket-Key") == "" {
		return false
	}
	v, err := strconv.Atoi(rx.Headers.Get("Sec-WebSocket-Version"))
	return err == nil && v >= 13
}

// route is the composition root's one pipeline-assembly entry point: it
// resolves the host/route for the now-parsed request and extends the
// stream's pipeline accordingly, per spec.md §4.3's "constructed after
// routing" and §4.10. Called once per stream, the moment its state reaches
// PARSED. Returns the stage whose Incoming the connection's read loop
// should now feed — ordinarily unchanged (the same HTTP/1 filter), but
// swapped to the WebSocket filter once a request upgrades.
func (s *Service) route(st *stream.Stream, net *netconn.Network, protoStage *stage.Stage) (*stage.Stage, error) {
	deriveRequestTarget(st.Rx)

	upgrade := isWebSocketUpgrade(st.Rx)

	for attempt := 0; ; attempt++ {
		host := s.router.MatchHost(st.Rx.HostHeader)
		rt, err := router.Match(host, buildMatchInput(st))
		if err != nil {
			s.hub.RecordEvent(net.IP, monitor.CounterNotFoundErrors, 1)
			code := errcode.AppNotFound
			if err == router.ErrNoRoute {
				code = errcode.AppMethodNotAllowed
			}
			s.respondError(st, net, protoStage, code, err.Error())
			return protoStage, nil
		}

		if upgrade {
			return s.upgradeWebSocket(st, net, rt)
		}

		candidates := s.routeCandidates(rt, protoStage, st.Rx.PathInfo)

		rxMatched, mErr := pipeline.MatchDirection(st, stage.DirRX, candidates)
		if mErr == pipeline.ErrReroute {
			if attempt >= maxReroutes {
				s.respondError(st, net, protoStage, errcode.AppHandlerFailed, "too many reroutes")
				return protoStage, nil
			}
			st.Rx.URI = rt.Target
			deriveRequestTarget(st.Rx)
			continue
		} else if mErr != nil {
			return protoStage, mErr
		}

		txMatched, mErr := pipeline.MatchDirection(st, stage.DirTX, candidates)
		if mErr == pipeline.ErrReroute {
			if attempt >= maxReroutes {
				s.respondError(st, net, protoStage, errcode.AppHandlerFailed, "too many reroutes")
				return protoStage, nil
			}
			st.Rx.URI = rt.Target
			deriveRequestTarget(st.Rx)
			continue
		} else if mErr != nil {
			return protoStage, mErr
		}

		rxExtend := rxMatched[:0:0]
		for _, cst := range rxMatched {
			if cst == protoStage {
				continue
			}
			rxExtend = append(rxExtend, cst)
		}
		pipeline.Extend(st.RXChain, "rx", net, st, rxExtend)

		st.TXChain = pipeline.Build("tx", net, st, txMatched)
		pipeline.Pair(st.RXChain, st.TXChain)

		if err := pipeline.Open(st.RXChain, st); err != nil {
			st.Fail(err)
			return protoStage, nil
		}
		if err := pipeline.Open(st.TXChain, st); err != nil {
			st.Fail(err)
			return protoStage, nil
		}

		// The protocol filter already drove the state straight from FIRST to
		// PARSED inside one applyHeaders call, so stream.step()'s own
		// PARSED-entry hook never observes the intermediate state and never
		// fires pipeline.Start (see DESIGN.md). Headers genuinely are ready
		// at this exact point, so route fires it itself.
		pipeline.Start(st.TXChain, st)
		if st.State.Current() >= reqstate.Ready {
			pipeline.CallReady(st.TXChain, st)
		}

		s.hub.RecordEvent(net.IP, monitor.CounterRequests, 1)
		return protoStage, nil
	}
}

// routeCandidates assembles one route's stage candidate list in the order
// spec.md §4.3's diagrams lay the RX/TX chains out in: a cache hit short-
// circuits before the real handler runs, an extension dispatch stage (e.g.
// a script handler bound to ".php") takes priority over the route's general
// handler, the route's own filters wrap the handler, the cache filter
// captures what the handler emits, and the response header rewrite runs
// just before the bytes reach the wire.
func (s *Service) routeCandidates(rt *router.Route, protoStage *stage.Stage, pathInfo string) []*stage.Stage {
	var candidates []*stage.Stage

	if len(rt.Caching) > 0 {
		candidates = append(candidates, cache.NewHandler(s.store, rt.Caching...))
	}
	if es := rt.ExtensionStage(pathInfo); es != nil {
		candidates = append(candidates, es)
	}
	if rt.Handler != nil {
		candidates = append(candidates, rt.Handler)
	}
	candidates = append(candidates, rt.Filters...)
	if len(rt.Caching) > 0 {
		candidates = append(candidates, cache.NewFilter(s.store, rt.Caching...))
	}
	if len(rt.ResponseHeaders) > 0 {
		candidates = append(candidates, newHeaderRewriteStage(rt.ResponseHeaders))
	}
	candidates = append(candidates, protoStage, connector.NewConnector(true))
	return candidates
}

// upgradeWebSocket switches a stream from HTTP/1 framing to WebSocket
// framing, per spec.md §4.7: verify the handshake, answer 101, and replace
// the stream's pipeline outright — unlike a normal route, there is no
// buffered RX content worth preserving across the switch (a handshake
// request carries no body), so a fresh chain is simpler and just as
// correct as extending the old one.
func (s *Service) upgradeWebSocket(st *stream.Stream, net *netconn.Network, rt *router.Route) (*stage.Stage, error) {
	key := st.Rx.Headers.Get("Sec-WebSocket-Key")
	accept := ws.AcceptKey(key)

	wsStage := ws.NewFilter(true)
	conn := connector.NewConnector(true)

	st.RXChain = pipeline.Build("rx-ws", net, st, []*stage.Stage{wsStage})
	st.TXChain = pipeline.Build("tx-ws", net, st, []*stage.Stage{wsStage, conn})
	pipeline.Pair(st.RXChain, st.TXChain)

	if err := pipeline.Open(st.TXChain, st); err != nil {
		st.Fail(err)
		return wsStage, nil
	}

	st.Tx.Status = 101
	st.Tx.Headers.Set("Upgrade", "websocket")
	st.Tx.Headers.Set("Connection", "Upgrade")
	st.Tx.Headers.Set("Sec-WebSocket-Accept", accept)
	st.SetWSState(ws.NewState(true))

	_ = rt // route's own filters/CORS settings are a future extension point for upgraded connections

	pipeline.Start(st.TXChain, st)
	writeEnd(st)
	net.Drain()

	s.hub.RecordEvent(net.IP, monitor.CounterRequests, 1)
	return wsStage, nil
}

// respondError answers a request that never reached a route (no matching
// host/route, or a REROUTE loop that never converged) with a minimal TX-only
// chain — just the protocol filter and the connector, framing the status
// line and a short plain-text body, mirroring the cache handler's own
// writeBody/writeEnd pair (spec.md §4.8's "use the cache handler" response
// path, generalized to any direct, handler-less reply).
func (s *Service) respondError(st *stream.Stream, net *netconn.Network, protoStage *stage.Stage, code errcode.Code, msg string) {
	status := code.HTTPStatus()
	if status == 0 {
		status = 500
	}
	st.Tx.Status = status
	st.Tx.Headers.Set("Content-Type", "text/plain; charset=utf-8")

	candidates := []*stage.Stage{protoStage, connector.NewConnector(true)}
	txMatched, _ := pipeline.MatchDirection(st, stage.DirTX, candidates)
	st.TXChain = pipeline.Build("tx", net, st, txMatched)

	if err := pipeline.Open(st.TXChain, st); err != nil {
		st.Fail(err)
		return
	}
	pipeline.Start(st.TXChain, st)

	writeBody(st, []byte(msg))
	net.Drain()

	st.Tx.FinalizedInput = true
	st.Tx.FinalizedOutput = true
	st.Tx.FinalizedConnector = true
	st.Process()
}

// writeBody/writeEnd mirror cache.Handler's identically-named helpers: push
// one data packet (if any) and a terminating END packet onto the stream's
// application-facing TX queue, scheduling it so the connector eventually
// drains it to the socket.
func writeBody(st *stream.Stream, body []byte) {
	q := st.TXQueue()
	if q == nil {
		return
	}
	if len(body) > 0 {
		p := packet.New(len(body))
		p.Type = packet.TypeData
		p.Content.Write(body)
		q.Put(p)
	}
	writeEnd(st)
}

func writeEnd(st *stream.Stream) {
	q := st.TXQueue()
	if q == nil {
		return
	}
	end := packet.New(0)
	end.Type = packet.TypeEnd
	end.Last = true
	q.Put(end)
	queue.Schedule(q)
}
