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

package coreconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nabbar/httpcore/coreconfig"
	"github.com/nabbar/httpcore/router"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "http.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigBlendsModeAndDispatchesBuiltins(t *testing.T) {
	path := writeConfig(t, `{
		"app": {
			"mode": "production",
			"modes": {
				"production": {
					"limits": {"header": 4096}
				}
			}
		},
		"methods": ["get", "post"],
		"indexes": ["index.html", "index.htm"],
		"headers": {
			"set": {"X-Frame-Options": "DENY"}
		},
		"limits": {
			"uri": 2048,
			"requestBody": 1048576
		},
		"cache": [
			{"client": "5m", "server": "1h", "extensions": ["html", "css"]}
		]
	}`)

	route, err := router.NewRoute("home", "", "")
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}

	reg := coreconfig.New()
	coreconfig.RegisterDefaults(reg)

	if err = reg.LoadConfig(route, path); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !route.Methods["GET"] || !route.Methods["POST"] {
		t.Fatalf("expected GET and POST methods, got %v", route.Methods)
	}
	if len(route.Indexes) != 2 || route.Indexes[0] != "index.html" {
		t.Fatalf("unexpected indexes: %v", route.Indexes)
	}
	if len(route.ResponseHeaders) != 1 || route.ResponseHeaders[0].Name != "X-Frame-Options" {
		t.Fatalf("unexpected response headers: %v", route.ResponseHeaders)
	}
	if route.Limits.URISize != 2048 {
		t.Fatalf("expected URISize 2048, got %d", route.Limits.URISize)
	}
	if len(route.Caching) != 1 {
		t.Fatalf("expected one cache rule, got %d", len(route.Caching))
	}
	if route.Caching[0].ClientLifespan != 5*time.Minute {
		t.Fatalf("expected 5m client lifespan, got %v", route.Caching[0].ClientLifespan)
	}
}

func TestAddRouteSetDispatchesRegisteredSet(t *testing.T) {
	route, err := router.NewRoute("home", "", "")
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}

	reg := coreconfig.New()
	called := false
	reg.RegisterRouteSet("rest", func(rt *router.Route, name string) error {
		called = true
		rt.Documents = "web"
		return nil
	})

	if err = reg.AddRouteSet(route, "rest"); err != nil {
		t.Fatalf("AddRouteSet: %v", err)
	}
	if !called || route.Documents != "web" {
		t.Fatal("expected the registered route set to run")
	}
}

func TestAddRouteSetUnknownNameErrors(t *testing.T) {
	route, _ := router.NewRoute("home", "", "")
	reg := coreconfig.New()

	if err := reg.AddRouteSet(route, "missing"); err == nil {
		t.Fatal("expected an error for an unregistered route set")
	}
}

func TestAddRouteSetEmptyNameIsNoop(t *testing.T) {
	route, _ := router.NewRoute("home", "", "")
	reg := coreconfig.New()

	if err := reg.AddRouteSet(route, ""); err != nil {
		t.Fatalf("expected nil error for empty name, got %v", err)
	}
}

func TestLoadConfigRejectsMalformedCacheLifespan(t *testing.T) {
	path := writeConfig(t, `{
		"cache": [
			{"client": "5 minutes"}
		]
	}`)

	route, _ := router.NewRoute("home", "", "")
	reg := coreconfig.New()
	coreconfig.RegisterDefaults(reg)

	if err := reg.LoadConfig(route, path); err == nil {
		t.Fatal("expected a validation error for a malformed duration")
	}
}

func TestRegisterParserReturnsPrior(t *testing.T) {
	reg := coreconfig.New()
	first := func(route *router.Route, key string, value interface{}) error { return nil }
	second := func(route *router.Route, key string, value interface{}) error { return nil }

	if prior := reg.RegisterParser("custom.key", first); prior != nil {
		t.Fatal("expected nil prior on first registration")
	}
	prior := reg.RegisterParser("custom.key", second)
	if prior == nil {
		t.Fatal("expected the first parser back as prior")
	}
}

func TestPostParseHookRunsAfterDispatch(t *testing.T) {
	path := writeConfig(t, `{"methods": ["get"]}`)

	route, _ := router.NewRoute("home", "", "")
	reg := coreconfig.New()
	coreconfig.RegisterDefaults(reg)

	var sawMethods bool
	reg.RegisterPostParse(func(rt *router.Route) error {
		sawMethods = rt.Methods["GET"]
		return nil
	})

	if err := reg.LoadConfig(route, path); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !sawMethods {
		t.Fatal("expected post-parse hook to observe the dispatched methods")
	}
}
