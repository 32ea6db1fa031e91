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
	"time"

	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

// Filter is the TX-side capture stage: it records a route's response body
// into the configured Store so a later request's Handler can serve it from
// cache, grounded on matchCacheFilter/outgoingCacheFilterService (cache.c).
// One Filter (and its Store) is shared by every route that enables
// caching; per-stream capture state lives on stream.Tx (CacheBuffer),
// keeping the Filter itself stateless across streams. Rules is the same
// set the route's Handler was built with, needed here only to recover a
// rule's UNIQUE flag and ServerLifespan at save time by name.
type Filter struct {
	Rules []*Rule
	Store Store
}

// NewFilter builds the Stage wiring for the cache capture filter.
func NewFilter(store Store, rules ...*Rule) *stage.Stage {
	f := &Filter{Rules: rules, Store: store}
	s := stage.New("cacheFilter", stage.FlagFilter)
	s.Match = f.match
	s.OutgoingService = f.outgoingService
	return s
}

func (f *Filter) ruleByName(name string) *Rule {
	for _, r := range f.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// match grounds matchCacheFilter: only binds to the TX direction, and only
// when the handler match phase armed tx.cacheBuffer for this stream.
func (f *Filter) match(ctx stage.Context, dir stage.Direction) stage.MatchResult {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil || dir != stage.DirTX {
		return stage.MatchOmitFilter
	}
	if st.Tx.CacheBuffer == nil {
		return stage.MatchOmitFilter
	}
	return stage.MatchOK
}

// outgoingService grounds outgoingCacheFilterService: it drains q exactly
// like any passthrough filter, but mirrors DATA packets into tx.CacheBuffer
// and saves the accumulated entry to the store on END, abandoning capture
// if the status is non-2xx or the item grows past CacheItemSize. The
// owning stream is recovered from q.Owner (stamped by pipeline.Build),
// since queue.ServiceFunc itself carries no Context parameter.
func (f *Filter) outgoingService(q *queue.Queue) {
	st, _ := q.Owner.(*stream.Stream)
	next := q.NextQ

	for {
		p := q.Peek()
		if p == nil {
			return
		}
		var tail *packet.Packet
		if next != nil {
			ok, head, t := queue.WillAccept(next, p, true)
			if !ok {
				return
			}
			p, tail = head, t
		}
		q.Get()
		if tail != nil {
			q.PutBack(tail)
		}
		if st != nil {
			f.capture(st, p)
		}
		if next != nil {
			next.Put(p)
			queue.Schedule(next)
		}
	}
}

// capture mirrors one outgoing packet into the stream's cache buffer.
func (f *Filter) capture(st *stream.Stream, p *packet.Packet) {
	if st.Tx.CacheBuffer == nil {
		return
	}
	if st.Tx.Status < 200 || st.Tx.Status > 299 {
		st.Tx.CacheBuffer = nil
		return
	}

	switch p.Type {
	case packet.TypeData:
		if p.Content == nil {
			return
		}
		size := int64(p.Content.Len())
		limit := st.Limits.CacheItemSize
		if limit <= 0 || int64(len(st.Tx.CacheBuffer))+size < limit {
			st.Tx.CacheBuffer = append(st.Tx.CacheBuffer, p.Content.Bytes()...)
		} else {
			st.Log.Log(st.Log.GetLevel(), "cache: item too big to cache, key=%s", st.Tx.CacheRuleName)
			st.Tx.CacheBuffer = nil
		}
	case packet.TypeEnd:
		if st.Tx.CacheBuffer != nil {
			f.save(st)
		}
	}
}

// save grounds saveCachedResponse: serialize the captured headers+body and
// write it to the store, truncating modified to 1-second resolution
// (spec.md §3 invariant).
func (f *Filter) save(st *stream.Stream) {
	body := st.Tx.CacheBuffer
	st.Tx.CacheBuffer = nil

	rule := f.ruleByName(st.Tx.CacheRuleName)
	if rule == nil {
		return
	}
	key := MakeKey(rule, st.Rx.ScriptName, st.Rx.PathInfo, st.Rx.Params)
	entry := EncodeEntry(st.Tx.Status, st.Tx.Headers, body)
	modified := time.Now().Truncate(time.Second)
	_ = f.Store.Write(key, entry, modified, rule.ServerLifespan)
}
