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

package router

import (
	"errors"
	"strings"
)

// ErrNoHost is returned by Match when no Host's name matcher accepts the
// request's Host header.
var ErrNoHost = errors.New("router: no host matches")

// ErrNoRoute is returned by Match when a Host exists but none of its routes
// (nor its default route) accept the request.
var ErrNoRoute = errors.New("router: no route matches")

// Router owns the per-process ordered host list, per spec.md §4.10 ("Per
// host, routes are an ordered list").
type Router struct {
	Hosts []*Host
}

// New builds an empty Router.
func New() *Router {
	return &Router{}
}

// AddHost registers a virtual host. The first host added becomes the
// fallback used by MatchHost when no name matches, mirroring
// httpCreateHost's process-wide defaultHost.
func (rt *Router) AddHost(h *Host) {
	rt.Hosts = append(rt.Hosts, h)
}

// MatchHost resolves the Host for a request's Host header (port already
// stripped by the caller), falling back to the first registered host if
// none of the name matchers accept it — mirroring the original's
// always-present defaultHost.
func (rt *Router) MatchHost(requestHost string) *Host {
	for _, h := range rt.Hosts {
		if h.Matches(requestHost) {
			return h
		}
	}
	if len(rt.Hosts) > 0 {
		return rt.Hosts[0]
	}
	return nil
}

// Match finds the first route on host whose matches(in) succeeds, using the
// nextGroup skip-pointer optimization of spec.md §4.10: when a route's
// startSegment doesn't match in's leading path segment, the scan jumps
// straight to that route's nextGroup instead of testing every member of the
// non-matching run individually. Falls back to host.Default if nothing in
// the ordered list matches. REROUTE (a stage's Match callback choosing a
// new URI mid-pipeline-build) is not this package's concern — the caller
// just invokes Match again with the new URI.
func Match(host *Host, in *MatchInput) (*Route, error) {
	if host == nil {
		return nil, ErrNoHost
	}
	seg := firstSegment(in.PathInfo)

	i := 0
	for i < len(host.Routes) {
		r := host.Routes[i]
		if r.startSegment != "" && r.startSegment != seg {
			if r.nextGroup >= 0 {
				i = r.nextGroup
				continue
			}
			i++
			continue
		}
		if r.matches(in) {
			return r, nil
		}
		i++
	}
	if host.Default != nil && host.Default.matches(in) {
		return host.Default, nil
	}
	return nil, ErrNoRoute
}

// SplitHostPort strips an optional ":port" suffix from a Host header value,
// the normalization Router.MatchHost expects its caller to have already
// applied.
func SplitHostPort(hostHeader string) string {
	h, _, ok := strings.Cut(hostHeader, ":")
	if !ok {
		return hostHeader
	}
	return h
}
