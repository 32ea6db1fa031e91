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

package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// paramString builds the sorted "k=v&k2=v2" parameter string matchCacheHandler
// and makeCacheKey append to the path when a rule's uri carries a '?' or the
// UNIQUE flag is set. Sorting keeps the key stable regardless of request
// parameter order (spec.md §3 Cache entry key format).
func paramString(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

// MakeKey builds the "http::response::<prefix><pathInfo>[?<paramString>]"
// cache key of spec.md §3, appending the sorted param string only when the
// rule carries FlagUnique (makeCacheKey).
func MakeKey(r *Rule, prefix, pathInfo string, params map[string]string) string {
	key := "http::response::" + prefix + pathInfo
	if r.Flags&FlagUnique != 0 {
		key += "?" + paramString(params)
	}
	return key
}

// ETag returns the MD5-hex tag of a cache key, matching mprGetMD5(key)'s use
// as a quoted-free weak identity for If-None-Match comparisons.
func ETag(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
