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

package router_test

import (
	"net/textproto"
	"testing"

	"github.com/nabbar/httpcore/router"
)

func mustRoute(t *testing.T, name, pattern, prefix string) *router.Route {
	t.Helper()
	r, err := router.NewRoute(name, pattern, prefix)
	if err != nil {
		t.Fatalf("NewRoute(%s): %v", name, err)
	}
	return r
}

func TestHostNameMatching(t *testing.T) {
	cases := []struct {
		name    string
		hostCfg string
		want    bool
	}{
		{"exact match", "example.com", true},
		{"exact mismatch", "other.com", false},
		{"suffix wildcard", "*.example.com", true},
		{"prefix wildcard", "example.*", true},
	}
	hosts := map[string]string{
		"exact match":      "example.com",
		"exact mismatch":   "example.com",
		"suffix wildcard":  "api.example.com",
		"prefix wildcard":  "example.net",
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := router.NewHost(tc.hostCfg)
			if err != nil {
				t.Fatalf("NewHost: %v", err)
			}
			got := h.Matches(hosts[tc.name])
			if got != tc.want {
				t.Fatalf("Matches(%s) against %s = %v, want %v", tc.hostCfg, hosts[tc.name], got, tc.want)
			}
		})
	}
}

func TestAddRouteGroupsAndSkipsNonMatchingSegments(t *testing.T) {
	h, err := router.NewHost("example.com")
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	h.AddRoute(mustRoute(t, "api-1", "", "/api/v1"))
	h.AddRoute(mustRoute(t, "api-2", "", "/api/v2"))
	h.AddRoute(mustRoute(t, "static", "", "/static"))
	h.AddRoute(mustRoute(t, "root", "", ""))

	in := &router.MatchInput{Method: "GET", PathInfo: "/static/app.css"}
	route, err := router.Match(h, in)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if route.Name != "static" {
		t.Fatalf("Match found %q, want static", route.Name)
	}
}

func TestMatchMethodAndCondition(t *testing.T) {
	h, err := router.NewHost("example.com")
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	r := mustRoute(t, "admin", "", "/admin")
	r.Methods = map[string]bool{"GET": true}
	cond, err := router.NewCondition("header", "X-Admin=yes", false)
	if err != nil {
		t.Fatalf("NewCondition: %v", err)
	}
	r.Conditions = []router.Condition{cond}
	h.AddRoute(r)

	cases := []struct {
		name    string
		method  string
		headers map[string]string
		want    bool
	}{
		{"method and header match", "GET", map[string]string{"X-Admin": "yes"}, true},
		{"wrong method", "POST", map[string]string{"X-Admin": "yes"}, false},
		{"missing header", "GET", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := &router.MatchInput{Method: tc.method, PathInfo: "/admin/panel", Headers: tc.headers}
			_, err := router.Match(h, in)
			got := err == nil
			if got != tc.want {
				t.Fatalf("Match() ok=%v, want %v (err=%v)", got, tc.want, err)
			}
		})
	}
}

func TestMatchFallsBackToDefaultRoute(t *testing.T) {
	h, err := router.NewHost("example.com")
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	h.AddRoute(mustRoute(t, "api", "", "/api"))
	def := mustRoute(t, "default", "", "")
	h.SetDefaultRoute(def)

	in := &router.MatchInput{Method: "GET", PathInfo: "/whatever"}
	route, err := router.Match(h, in)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if route != def {
		t.Fatalf("Match did not fall back to the default route")
	}
}

func TestRouterMatchHostFallsBackToFirstHost(t *testing.T) {
	rt := router.New()
	primary, _ := router.NewHost("example.com")
	rt.AddHost(primary)
	secondary, _ := router.NewHost("other.com")
	rt.AddHost(secondary)

	if got := rt.MatchHost("unknown.invalid"); got != primary {
		t.Fatalf("MatchHost fallback = %v, want primary host", got)
	}
	if got := rt.MatchHost("other.com"); got != secondary {
		t.Fatalf("MatchHost(other.com) = %v, want secondary host", got)
	}
}

func TestApplyHeaderOps(t *testing.T) {
	h := make(textproto.MIMEHeader)
	h.Set("X-Existing", "1")
	router.ApplyHeaderOps(h, []router.HeaderOp{
		{Op: router.HeaderSet, Name: "X-Frame-Options", Value: "DENY"},
		{Op: router.HeaderAppend, Name: "X-Existing", Value: "2"},
		{Op: router.HeaderRemove, Name: "X-Gone"},
	})
	if got := h.Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q, want DENY", got)
	}
	if got := h.Values("X-Existing"); len(got) != 2 {
		t.Fatalf("X-Existing values = %v, want 2 entries", got)
	}
}
