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

package coreconfig

import (
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/httpcore/cache"
	"github.com/nabbar/httpcore/router"
)

// RegisterDefaults installs the built-in parsers this package ships for the
// core's own Route fields, grounded on config.c's parseMethods/
// parseIndexes/parseHeadersAdd/parseHeadersSet/parseHeadersRemove/
// parseCache/parseLimits* family. An embedding application layers its own
// RegisterParser calls (auth, proxy targets, CGI, ...) on top; this is not
// an exhaustive port of every parseXxx in the original, only the subset
// with a direct field on router.Route.
func RegisterDefaults(r *Registry) {
	r.RegisterParser("methods", parseMethods)
	r.RegisterParser("indexes", parseIndexes)
	r.RegisterParser("headers.add", parseHeadersAdd)
	r.RegisterParser("headers.set", parseHeadersSet)
	r.RegisterParser("headers.remove", parseHeadersRemove)
	r.RegisterParser("cache", r.parseCache)
	r.RegisterParser("limits.header", parseLimitsHeader)
	r.RegisterParser("limits.uri", parseLimitsURI)
	r.RegisterParser("limits.requestbody", parseLimitsRequestBody)
}

// toStringSlice accepts the shapes viper hands back for a JSON/YAML array
// or a space-separated scalar string (config.c's getList convention for a
// "methods": "GET POST" shorthand).
func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case []string:
		return v
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}

func parseMethods(route *router.Route, _ string, value interface{}) error {
	route.Methods = make(map[string]bool)
	for _, m := range toStringSlice(value) {
		route.Methods[strings.ToUpper(m)] = true
	}
	return nil
}

func parseIndexes(route *router.Route, _ string, value interface{}) error {
	route.Indexes = toStringSlice(value)
	return nil
}

func parseHeadersAdd(route *router.Route, _ string, value interface{}) error {
	return addHeaderOps(route, router.HeaderAdd, value)
}

func parseHeadersSet(route *router.Route, _ string, value interface{}) error {
	return addHeaderOps(route, router.HeaderSet, value)
}

func addHeaderOps(route *router.Route, op router.HeaderOpKind, value interface{}) error {
	m, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("coreconfig: headers.add/set expects a map, got %T", value)
	}
	for name, v := range m {
		route.ResponseHeaders = append(route.ResponseHeaders, router.HeaderOp{
			Op:    op,
			Name:  textproto.CanonicalMIMEHeaderKey(name),
			Value: fmt.Sprint(v),
		})
	}
	return nil
}

func parseHeadersRemove(route *router.Route, _ string, value interface{}) error {
	for _, name := range toStringSlice(value) {
		route.ResponseHeaders = append(route.ResponseHeaders, router.HeaderOp{
			Op:   router.HeaderRemove,
			Name: name,
		})
	}
	return nil
}

// cacheEntry is the typed shape of one "cache" array element, decoded via
// Registry.Decode. Client/Server use validator's built-in "duration" tag
// (time.ParseDuration-parseable), so a malformed lifespan like "5 minutes"
// (instead of "5m") is rejected before it ever reaches cache.NewRule.
type cacheEntry struct {
	Client     string      `mapstructure:"client" validate:"omitempty,duration"`
	Server     string      `mapstructure:"server" validate:"omitempty,duration"`
	Methods    interface{} `mapstructure:"methods"`
	Extensions interface{} `mapstructure:"extensions"`
	URIs       interface{} `mapstructure:"uris"`
	Mime       interface{} `mapstructure:"mime"`
	Unique     bool        `mapstructure:"unique"`
	Manual     bool        `mapstructure:"manual"`
}

// parseCache mirrors parseCache/httpAddCache: one route may declare several
// cache stanzas, each becoming its own cache.Rule appended to
// route.Caching, matching spec.md §6's addCache signature.
func (r *Registry) parseCache(route *router.Route, key string, value interface{}) error {
	entries, ok := value.([]interface{})
	if !ok {
		entries = []interface{}{value}
	}

	for i, raw := range entries {
		var e cacheEntry
		if err := r.Decode(raw, &e); err != nil {
			return fmt.Errorf("%s[%d]: %w", key, i, err)
		}

		var flags cache.Flags
		var clientLifespan, serverLifespan time.Duration

		if e.Client != "" {
			flags |= cache.FlagClient
			clientLifespan, _ = time.ParseDuration(e.Client)
		}
		if e.Server != "" {
			flags |= cache.FlagServer
			serverLifespan, _ = time.ParseDuration(e.Server)
		}
		if e.Unique {
			flags |= cache.FlagUnique
		}
		if e.Manual {
			flags |= cache.FlagManual
		}

		rule := cache.NewRule(
			route.Name,
			strings.Join(toStringSlice(e.Methods), " "),
			strings.Join(toStringSlice(e.URIs), " "),
			strings.Join(toStringSlice(e.Extensions), " "),
			strings.Join(toStringSlice(e.Mime), " "),
			clientLifespan, serverLifespan, flags,
		)
		route.Caching = append(route.Caching, rule)
	}
	return nil
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("coreconfig: expected a number, got %T", value)
	}
}

func parseLimitsHeader(route *router.Route, _ string, value interface{}) error {
	n, err := toInt64(value)
	if err != nil {
		return err
	}
	route.Limits.HeaderSize = n
	return nil
}

func parseLimitsURI(route *router.Route, _ string, value interface{}) error {
	n, err := toInt64(value)
	if err != nil {
		return err
	}
	route.Limits.URISize = n
	return nil
}

func parseLimitsRequestBody(route *router.Route, _ string, value interface{}) error {
	n, err := toInt64(value)
	if err != nil {
		return err
	}
	route.Limits.BodySize = n
	return nil
}
