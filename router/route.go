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

// Package router implements host and route matching: per spec.md §4.10, a
// per-host ordered route list with a route-group "nextGroup" skip-pointer
// optimization, compiled regexp patterns, named conditions, extension
// dispatch, and response header rewrite operations. Grounded on
// original_source/src/host.c (httpAddRoute/httpLookupRoute/httpSetHostName).
package router

import (
	"net/textproto"
	"regexp"
	"strings"

	"github.com/nabbar/httpcore/cache"
	"github.com/nabbar/httpcore/stage"
)

// MatchInput is the request-side view a Route's pattern/conditions/
// extension dispatch evaluate against. Built by the caller (the
// stream/pipeline construction layer) from the parsed request line and
// headers, so this package never needs to import stream (keeps the
// leaves-first order of spec.md §2: router depends on cache and stage, not
// the other way around).
type MatchInput struct {
	Method   string
	URI      string
	PathInfo string
	Params   map[string]string
	Headers  map[string]string // single-value, case-insensitive lookups the caller already folded
}

// Header returns a case-insensitive header value, mirroring
// textproto.CanonicalMIMEHeaderKey lookups without requiring the caller's
// map to be pre-canonicalized.
func (m *MatchInput) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	if v, ok := m.Headers[name]; ok {
		return v
	}
	return m.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// Condition is a named predicate evaluated during route matching, per
// spec.md §3 Route's "conditions (chain of named predicates)". Conditions
// are built from a registered factory plus an argument string, mirroring
// the indirection monitor.RegisterRemedy uses for its remedy functions.
type Condition func(in *MatchInput) bool

// ConditionFactory builds a Condition from its route-configuration
// argument (e.g. a header name, a regexp, a file path).
type ConditionFactory func(arg string) (Condition, error)

var conditionFactories = map[string]ConditionFactory{}

// RegisterCondition adds a named condition factory usable by NewCondition.
// Call during package init from wherever built-in conditions are defined;
// application code may register its own.
func RegisterCondition(name string, factory ConditionFactory) {
	conditionFactories[name] = factory
}

// NewCondition resolves a registered condition factory by name and builds
// one Condition instance from arg, optionally negated.
func NewCondition(name, arg string, negate bool) (Condition, error) {
	factory, ok := conditionFactories[name]
	if !ok {
		return nil, &UnknownConditionError{Name: name}
	}
	cond, err := factory(arg)
	if err != nil {
		return nil, err
	}
	if negate {
		return func(in *MatchInput) bool { return !cond(in) }, nil
	}
	return cond, nil
}

// UnknownConditionError reports a route referencing an unregistered
// condition name.
type UnknownConditionError struct{ Name string }

func (e *UnknownConditionError) Error() string {
	return "router: unknown condition " + e.Name
}

func init() {
	RegisterCondition("header", func(arg string) (Condition, error) {
		name, want, _ := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		want = strings.TrimSpace(want)
		return func(in *MatchInput) bool { return in.Header(name) == want }, nil
	})
	RegisterCondition("param", func(arg string) (Condition, error) {
		name, want, _ := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		want = strings.TrimSpace(want)
		return func(in *MatchInput) bool { return in.Params[name] == want }, nil
	})
}

// HeaderOpKind is one response header rewrite verb, per spec.md §3 Route's
// "responseHeaders (add/append/set/remove operations applied at response
// time)".
type HeaderOpKind uint8

const (
	HeaderAdd HeaderOpKind = iota
	HeaderAppend
	HeaderSet
	HeaderRemove
)

// HeaderOp is one response-time header rewrite instruction.
type HeaderOp struct {
	Op    HeaderOpKind
	Name  string
	Value string
}

// ApplyHeaderOps runs a route's response header rewrite list against h.
// h only needs textproto.MIMEHeader's shape (stream.Headers is a type
// alias for it), so this function never has to import package stream.
func ApplyHeaderOps(h textproto.MIMEHeader, ops []HeaderOp) {
	for _, op := range ops {
		switch op.Op {
		case HeaderAdd, HeaderAppend:
			h.Add(op.Name, op.Value)
		case HeaderSet:
			h.Set(op.Name, op.Value)
		case HeaderRemove:
			h.Del(op.Name)
		}
	}
}

// Route is one matcher + config bundle, per spec.md §3 Route.
type Route struct {
	Name       string
	PatternStr string
	Pattern    *regexp.Regexp // compiled from PatternStr; nil matches everything
	Prefix     string
	Methods    map[string]bool // nil means "all methods"
	Indexes    []string        // default document names for directory requests

	Conditions []Condition

	Handler         *stage.Stage
	Filters         []*stage.Stage
	ExtensionStages map[string]*stage.Stage // file extension -> dedicated stage (e.g. a CGI/script handler)

	Target string // rewrite/proxy target, opaque to this package

	Caching []*cache.Rule
	Limits  RouteLimits

	CORSOrigin      string
	CORSMethods     []string
	CORSHeaders     []string
	CORSCredentials bool
	CORSMaxAge      int

	ResponseHeaders []HeaderOp

	Documents string // document root for static content
	Languages []string

	// startSegment is the first path segment of PatternStr (or Prefix),
	// used by Host.AddRoute to build the nextGroup skip-pointer groups of
	// httpAddRoute. Computed once at construction.
	startSegment string
	// nextGroup is the index (within the owning Host's Routes slice) to
	// resume matching at when startSegment doesn't match the request URI,
	// letting Match skip an entire run of routes sharing a startSegment
	// that's already known not to apply (host.c's group optimization).
	// -1 means "no group to skip" (either this route isn't followed by a
	// differently-prefixed one, or it's the last route).
	nextGroup int
}

// RouteLimits narrows stream.Limits to the subset a route can override;
// zero fields mean "inherit the host/server default".
type RouteLimits struct {
	HeaderSize int64
	BodySize   int64
	URISize    int64
}

// NewRoute compiles pattern (empty string matches any path) and builds the
// Route with its startSegment precomputed.
func NewRoute(name, pattern, prefix string) (*Route, error) {
	r := &Route{Name: name, PatternStr: pattern, Prefix: prefix, nextGroup: -1}
	if pattern != "" {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		r.Pattern = compiled
	}
	seg := pattern
	if seg == "" {
		seg = prefix
	}
	r.startSegment = firstSegment(seg)
	return r, nil
}

// firstSegment extracts the literal leading path segment of a route
// pattern/prefix (up to the first '/' after position 0, or the first regexp
// metacharacter), mirroring host.c's startSegment precomputation used only
// to group routes, never to actually match.
func firstSegment(s string) string {
	s = strings.TrimPrefix(s, "^")
	s = strings.TrimPrefix(s, "/")
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '/', '(', '[', '.', '*', '+', '?', '$', '|', '\\':
			return s[:i]
		}
	}
	return s
}

// matches reports whether r applies to in, testing method, pattern/prefix,
// and every condition in order (spec.md §4.10 "Matching evaluates: method
// set, pattern..., conditions..., params..., extensions").
func (r *Route) matches(in *MatchInput) bool {
	if r.Methods != nil && !r.Methods[strings.ToUpper(in.Method)] {
		return false
	}
	if r.Pattern != nil {
		if !r.Pattern.MatchString(in.PathInfo) {
			return false
		}
	} else if r.Prefix != "" && !strings.HasPrefix(in.PathInfo, r.Prefix) {
		return false
	}
	for _, cond := range r.Conditions {
		if cond == nil {
			continue
		}
		if !cond(in) {
			return false
		}
	}
	return true
}

// ExtensionStage returns the extension-specific stage registered for the
// file extension of in.PathInfo, if any (spec.md §3 Route's
// "extensions→stage").
func (r *Route) ExtensionStage(pathInfo string) *stage.Stage {
	if len(r.ExtensionStages) == 0 {
		return nil
	}
	ext := pathInfo
	if i := strings.LastIndexByte(pathInfo, '.'); i >= 0 {
		ext = pathInfo[i+1:]
	} else {
		return nil
	}
	return r.ExtensionStages[ext]
}
