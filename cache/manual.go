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
	"errors"
	"net/http"
	"time"

	"github.com/nabbar/httpcore/stream"
)

// ErrNoCacheData is returned by WriteCached when the rule matched for this
// stream has nothing usable in the store (httpWriteCached's
// MPR_ERR_CANT_FIND return).
var ErrNoCacheData = errors.New("cache: no response data in store")

// WriteCached serves previously-cached content for st's matched rule,
// grounded on httpWriteCached (cache.c): the MANUAL-flag escape hatch, used
// by an application handler that wants to explicitly opt into serving a
// cache hit instead of relying on the automatic cacheHandler fetch.
func WriteCached(st *stream.Stream, store Store, rule *Rule) (int, error) {
	if rule == nil {
		return 0, ErrNoCacheData
	}
	key := MakeKey(rule, st.Rx.ScriptName, st.Rx.PathInfo, st.Rx.Params)
	content, modified, ok := store.Read(key)
	if !ok {
		return 0, ErrNoCacheData
	}

	status, headers, body, _ := DecodeEntry(content)
	for k, vs := range headers {
		for _, v := range vs {
			st.Tx.Headers.Add(k, v)
		}
	}
	if status != 0 {
		st.Tx.Status = status
	}
	tag := ETag(key)
	st.Tx.ETag = tag
	st.Tx.Headers.Set("Etag", tag)
	st.Tx.Headers.Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
	st.Tx.CacheBuffer = nil

	writeBody(st, body)
	st.Tx.FinalizedOutput = true
	st.Process()
	return len(body), nil
}

// UpdateCache grounds httpUpdateCache (cache.c): an application directly
// seeds (or, with empty data, evicts) the store entry for an arbitrary uri,
// independent of the normal capture-on-response path. Like its C original,
// this bypasses any Rule — the key is built straight from uri.
func UpdateCache(store Store, uri string, data []byte, lifespan time.Duration) error {
	key := "http::response::" + uri
	if len(data) == 0 || lifespan <= 0 {
		return store.Remove(key)
	}
	return store.Write(key, data, time.Now().Truncate(time.Second), lifespan)
}
