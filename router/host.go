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
	"regexp"
	"strings"
)

// nameMatchKind mirrors host.c's HTTP_HOST_WILD_* flags for HttpSetHostName.
type nameMatchKind uint8

const (
	nameExact nameMatchKind = iota
	nameWildStarts         // "example.*" - prefix match
	nameWildContains       // "*.example.com" - suffix match (leading '*' trimmed)
	nameWildRegexp         // "/regex/" - host.c compiles with pcre; here with regexp
)

// Host is a virtual host: a name matcher plus its ordered route list,
// grounded on host.c's HttpHost (httpCreateHost/httpSetHostName/
// httpAddRoute).
type Host struct {
	Name     string
	Routes   []*Route
	Default  *Route

	kind     nameMatchKind
	hostname string // trimmed comparison name (no scheme, no port)
	compiled *regexp.Regexp
}

// NewHost builds a Host and classifies its name matcher, mirroring
// httpSetHostName's flag derivation ("*" suffix => WILD_STARTS, leading "*"
// => WILD_CONTAINS, leading "/" => WILD_REGEXP, else exact).
func NewHost(name string) (*Host, error) {
	h := &Host{Name: name}
	trimmed := strings.Trim(name, "/*")
	if host, _, ok := strings.Cut(trimmed, ":"); ok {
		trimmed = host
	}
	h.hostname = trimmed

	switch {
	case strings.HasSuffix(name, "*"):
		h.kind = nameWildStarts
	case strings.HasPrefix(name, "*"):
		h.kind = nameWildContains
	case strings.HasPrefix(name, "/"):
		h.kind = nameWildRegexp
		compiled, err := regexp.Compile(h.hostname)
		if err != nil {
			return nil, err
		}
		h.compiled = compiled
	default:
		h.kind = nameExact
	}
	return h, nil
}

// Matches reports whether this Host should handle requestHost (the Host
// header's hostname, port already stripped by the caller).
func (h *Host) Matches(requestHost string) bool {
	switch h.kind {
	case nameWildStarts:
		return strings.HasPrefix(requestHost, h.hostname)
	case nameWildContains:
		return strings.HasSuffix(requestHost, h.hostname)
	case nameWildRegexp:
		return h.compiled.MatchString(requestHost)
	default:
		return strings.EqualFold(requestHost, h.hostname)
	}
}

// AddRoute appends route to the host's list and (re)computes the
// "nextGroup" skip pointers for any run of routes whose startSegment
// differs from what precedes it, grounded exactly on httpAddRoute's group
// optimization: when a newly appended route's startSegment differs from
// the route before it, the preceding route (and any earlier run of routes
// sharing that same startSegment) gets its nextGroup set to the new
// route's index, so Match can skip the whole non-matching run in one step
// instead of testing each member individually. A route with an empty
// pattern (the host's default/catch-all) is kept as last in the list, per
// httpAddRoute's "insert non-default route before last default route".
func (h *Host) AddRoute(route *Route) {
	if route.PatternStr == "" && route.Prefix == "" {
		h.Routes = append(h.Routes, route)
		h.fixupGroups()
		return
	}
	if n := len(h.Routes); n > 0 && h.Routes[n-1].PatternStr == "" && h.Routes[n-1].Prefix == "" {
		h.Routes = append(h.Routes[:n-1], append([]*Route{route}, h.Routes[n-1])...)
	} else {
		h.Routes = append(h.Routes, route)
	}
	h.fixupGroups()
}

// fixupGroups recomputes every route's nextGroup from scratch. Simpler and
// no less correct than maintaining the incremental backfill loop
// httpAddRoute performs on each insert, since Host route lists are built
// once at startup (spec.md §5 "Route tables are effectively read-only after
// startup") and never touched again.
func (h *Host) fixupGroups() {
	n := len(h.Routes)
	for i := range h.Routes {
		h.Routes[i].nextGroup = -1
	}
	for i := 0; i < n; i++ {
		j := i + 1
		for j < n && h.Routes[j].startSegment == h.Routes[i].startSegment {
			j++
		}
		if j < n {
			for k := i; k < j; k++ {
				h.Routes[k].nextGroup = j
			}
		}
		i = j - 1
	}
}

// LookupRoute finds a previously added route by its pattern string,
// mirroring httpLookupRoute's "default"/"/" normalization.
func (h *Host) LookupRoute(pattern string) *Route {
	if pattern == "default" || pattern == "/" || pattern == "^/" || pattern == "^/$" {
		pattern = ""
	}
	for _, r := range h.Routes {
		if r.PatternStr == pattern {
			return r
		}
	}
	return nil
}

// SetDefaultRoute designates the fallback route used when no other route
// in this host matches.
func (h *Host) SetDefaultRoute(r *Route) {
	h.Default = r
}
