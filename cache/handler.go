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
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nabbar/httpcore/corelog"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

// readResult is what the singleflight group caches per key: one store read,
// shared by every concurrent request asking for the same fingerprint.
type readResult struct {
	content  []byte
	modified time.Time
	ok       bool
}

// Handler serves cached content in place of the route's normal handler when
// an acceptable entry exists, grounded on matchCacheHandler/
// readyCacheHandler (cache.c). One Handler is bound to one route's rule
// set, constructed once by the router at route-build time (spec.md §4.8).
type Handler struct {
	Rules []*Rule
	Store Store

	group singleflight.Group
}

// NewHandler builds the Stage wiring for a route's cache handler.
func NewHandler(store Store, rules ...*Rule) *stage.Stage {
	h := &Handler{Rules: rules, Store: store}
	s := stage.New("cacheHandler", stage.FlagHandler)
	s.Match = h.match
	s.Ready = h.ready
	return s
}

func (h *Handler) match(ctx stage.Context, dir stage.Direction) stage.MatchResult {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil || dir != stage.DirTX {
		return stage.MatchReject
	}

	params := paramString(st.Rx.Params)

	for _, rule := range h.Rules {
		if !rule.matches(st.Rx.Method, st.Rx.PathInfo, params, st.Tx.Ext, st.Tx.MimeType) {
			continue
		}
		st.Tx.CacheRuleName = rule.Name

		if rule.Flags&FlagClient != 0 {
			h.cacheAtClient(st, rule)
		}
		if rule.Flags&FlagServer != 0 {
			if rule.Flags&FlagManual == 0 && h.fetchCachedResponse(st, rule) {
				return stage.MatchOK
			}
			if st.Tx.CacheBuffer == nil {
				st.Tx.CacheBuffer = []byte{}
			}
		}
	}
	return stage.MatchReject
}

// cacheAtClient grounds cacheAtClient (cache.c): on a 200 with no
// Cache-Control set yet, advertise the rule's client-side lifespan.
func (h *Handler) cacheAtClient(st *stream.Stream, rule *Rule) {
	if st.Tx.Status != http.StatusOK {
		return
	}
	if st.Tx.Headers.Get("Cache-Control") != "" {
		return
	}
	st.Tx.Headers.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(rule.ClientLifespan/time.Second)))
	st.Tx.Headers.Set("Expires", time.Now().Add(rule.ClientLifespan).UTC().Format(http.TimeFormat))
}

// fetchCachedResponse grounds fetchCachedResponse (cache.c): compute the
// key, read the store, evaluate conditional-GET headers, and stash the raw
// entry on st.Tx.CachedContent for ready() to apply. Reports whether usable
// content was found.
func (h *Handler) fetchCachedResponse(st *stream.Stream, rule *Rule) bool {
	key := MakeKey(rule, st.Rx.ScriptName, st.Rx.PathInfo, st.Rx.Params)

	if cc := st.Rx.Headers.Get("Cache-Control"); cc != "" &&
		(strings.Contains(cc, "max-age=0") || strings.Contains(cc, "no-cache")) {
		st.Log.Log(corelog.InfoLevel, "cache: client forced reload, key=%s", key)
		return false
	}

	content, modified, found := h.read(key, rule)
	if !found {
		st.Log.Log(corelog.InfoLevel, "cache: no cached content, key=%s", key)
		return false
	}

	tag := ETag(key)
	cacheOk := true
	canUseClientCache := false

	if inm := st.Rx.Headers.Get("If-None-Match"); inm != "" {
		canUseClientCache = true
		if inm != tag {
			cacheOk = false
		}
	}
	if cacheOk {
		if ims := st.Rx.Headers.Get("If-Modified-Since"); ims != "" {
			canUseClientCache = true
			if when, err := http.ParseTime(ims); err == nil && modified.After(when) {
				cacheOk = false
			}
		}
	}

	status := http.StatusOK
	if canUseClientCache && cacheOk {
		status = http.StatusNotModified
	}
	st.Log.Log(corelog.InfoLevel, "cache: using cached content, key=%s status=%d", key, status)

	st.Tx.Status = status
	st.Tx.ETag = tag
	st.Tx.Headers.Set("Etag", tag)
	st.Tx.Headers.Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
	st.Tx.Headers.Del("Content-Encoding")
	st.Tx.CachedContent = content
	return true
}

// read consolidates concurrent reads for the same key behind singleflight
// when the rule opts in (spec.md §9's thundering-herd Open Question,
// decided in DESIGN.md); otherwise it reads the store directly.
func (h *Handler) read(key string, rule *Rule) ([]byte, time.Time, bool) {
	if !rule.Consolidate {
		return h.Store.Read(key)
	}
	v, _, _ := h.group.Do(key, func() (interface{}, error) {
		content, modified, ok := h.Store.Read(key)
		return readResult{content: content, modified: modified, ok: ok}, nil
	})
	r := v.(readResult)
	return r.content, r.modified, r.ok
}

// ready grounds readyCacheHandler: a 304 carries headers only; any other
// status writes the decoded body, then the stream finalizes without ever
// reaching the route's real handler (spec.md §4.8's "use the cache handler"
// branch resolves HTTP-correctly instead of replaying cache.c's literal
// re-clobber of tx->status from the stored X-Status line — see DESIGN.md).
func (h *Handler) ready(ctx stage.Context) {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil {
		return
	}
	if st.Tx.CachedContent != nil {
		_, headers, body, _ := DecodeEntry(st.Tx.CachedContent)
		for k, vs := range headers {
			for _, v := range vs {
				st.Tx.Headers.Add(k, v)
			}
		}
		if st.Tx.Status != http.StatusNotModified {
			writeBody(st, body)
		} else {
			writeEnd(st)
		}
	} else {
		writeEnd(st)
	}
	st.Tx.FinalizedInput = true
	st.Tx.FinalizedOutput = true
	st.Tx.FinalizedConnector = true
	st.Process()
}

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
