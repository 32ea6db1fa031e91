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

// Package cache implements the response cache handler/filter pair of
// spec.md §4.8: conditional-GET serving of previously captured responses,
// and a TX filter that captures an origin response body into the store the
// handler reads from. Grounded on original_source/src/cache.c
// (matchCacheHandler/readyCacheHandler/matchCacheFilter/
// outgoingCacheFilterService).
package cache

import (
	"strings"
	"time"
)

// Flags mirrors the HTTP_CACHE_* bitmask of cache.c's HttpCache.flags.
type Flags uint16

const (
	FlagClient Flags = 1 << iota
	FlagServer
	FlagManual
	FlagUnique
	FlagStatic
	FlagReset
	FlagHasParams
)

// Rule is one route's cache control entry (spec.md §3 "Cache entry";
// cache.c's HttpCache). A route may carry several rules; the first whose
// URI/method/extension/type selectors all match wins (matchCacheHandler's
// "first qualifying cache control entry").
type Rule struct {
	Name string // distinguishes rules within a route; stored on tx as a string so Stream need not hold a *Rule (see stream cycle note in DESIGN.md)

	URIs       map[string]bool
	Methods    map[string]bool
	Extensions map[string]bool
	Types      map[string]bool

	ClientLifespan time.Duration
	ServerLifespan time.Duration

	Flags Flags

	// Consolidate opts this rule's SERVER-mode fetch-or-build path into
	// singleflight request consolidation (spec.md §9's recommended, not
	// mandatory, fix for the thundering-herd Open Question). Default off.
	Consolidate bool
}

// staticExtensions mirrors httpAddCache's HTTP_CACHE_STATIC convenience set.
var staticExtensions = []string{
	"css", "gif", "ico", "jpg", "js", "html", "png", "pdf", "ttf", "txt", "xml", "woff",
}

// NewRule builds a Rule the way httpAddCache tokenizes its string
// arguments: space/comma separated lists, "*" meaning "all", and the
// UNIQUE and HasParams flags auto-set when any uri contains a '?' (a
// parameterized cache key; matches then compares every listed uri against
// the path plus the sorted parameter string). methods/uris/extensions/types
// may be empty to mean "no restriction on that axis".
func NewRule(name, methods, uris, extensions, types string, clientLifespan, serverLifespan time.Duration, flags Flags) *Rule {
	r := &Rule{
		Name:           name,
		ClientLifespan: clientLifespan,
		ServerLifespan: serverLifespan,
		Flags:          flags,
	}

	if extensions != "" {
		r.Extensions = tokenSet(extensions)
	} else if types != "" {
		r.Types = tokenSet(types)
	} else if flags&FlagStatic != 0 {
		r.Extensions = make(map[string]bool, len(staticExtensions))
		for _, e := range staticExtensions {
			r.Extensions[e] = true
		}
	}

	if methods != "" {
		set := make(map[string]bool)
		for _, m := range splitList(methods) {
			if m == "*" {
				set = nil
				break
			}
			set[strings.ToUpper(m)] = true
		}
		r.Methods = set
	}

	if uris != "" {
		r.URIs = make(map[string]bool)
		for _, u := range splitList(uris) {
			r.URIs[u] = true
			if strings.Contains(u, "?") {
				r.Flags |= FlagUnique | FlagHasParams
			}
		}
	}

	return r
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, item := range splitList(s) {
		if item != "" && item != "*" {
			out[item] = true
		}
	}
	return out
}

// matches reports whether this rule qualifies for the current request, per
// matchCacheHandler's uri/method/extension/type membership tests.
func (r *Rule) matches(method, pathInfo, paramString, ext, mimeType string) bool {
	if r.URIs != nil {
		key := pathInfo
		if r.Flags&FlagHasParams != 0 {
			key = pathInfo + "?" + paramString
		}
		if !r.URIs[key] {
			return false
		}
	}
	if r.Methods != nil && !r.Methods[strings.ToUpper(method)] {
		return false
	}
	if r.Extensions != nil && !r.Extensions[ext] {
		return false
	}
	if r.Types != nil && !r.Types[mimeType] {
		return false
	}
	return true
}
