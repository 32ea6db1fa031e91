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

package cache_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/httpcore/cache"
	"github.com/nabbar/httpcore/packet"
	"github.com/nabbar/httpcore/queue"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

func newGetStream(path string) *stream.Stream {
	st := stream.New(nil)
	st.Rx.Method = "GET"
	st.Rx.PathInfo = path
	st.Tx.Status = http.StatusOK
	return st
}

var _ = Describe("Rule", func() {
	It("tokenizes methods/uris/extensions and infers UNIQUE from a '?' uri", func() {
		r := cache.NewRule("r1", "GET, POST", "/a,/b?x=1", "", "", time.Minute, time.Minute, 0)
		Expect(r.URIs).To(HaveKey("/a"))
		Expect(r.URIs).To(HaveKey("/b?x=1"))
		Expect(r.Methods).To(HaveKey("GET"))
		Expect(r.Methods).To(HaveKey("POST"))
		Expect(r.Flags & cache.FlagUnique).NotTo(BeZero())
	})

	It("expands the STATIC flag into a built-in extension set", func() {
		r := cache.NewRule("static", "", "", "", "", time.Minute, time.Minute, cache.FlagStatic)
		Expect(r.Extensions).To(HaveKey("css"))
		Expect(r.Extensions).To(HaveKey("png"))
	})
})

var _ = Describe("MakeKey and ETag", func() {
	It("appends the sorted param string only when UNIQUE is set", func() {
		rule := cache.NewRule("u", "", "", "", "", time.Minute, time.Minute, cache.FlagUnique)
		key := cache.MakeKey(rule, "", "/show", map[string]string{"b": "2", "a": "1"})
		Expect(key).To(Equal("http::response::/show?a=1&b=2"))
	})

	It("omits the param string without UNIQUE", func() {
		rule := cache.NewRule("n", "", "", "", "", time.Minute, time.Minute, 0)
		key := cache.MakeKey(rule, "/api", "/show", map[string]string{"a": "1"})
		Expect(key).To(Equal("http::response::/api/show"))
	})

	It("derives a stable MD5 tag from the key", func() {
		Expect(cache.ETag("http::response::/x")).To(Equal(cache.ETag("http::response::/x")))
		Expect(cache.ETag("http::response::/x")).NotTo(Equal(cache.ETag("http::response::/y")))
	})
})

var _ = Describe("Entry encode/decode", func() {
	It("round-trips status, headers and body", func() {
		hdrs := make(map[string][]string)
		hdrs["Content-Type"] = []string{"text/plain"}
		raw := cache.EncodeEntry(200, hdrs, []byte("hello"))
		status, headers, body, ok := cache.DecodeEntry(raw)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(200))
		Expect(headers.Get("Content-Type")).To(Equal("text/plain"))
		Expect(string(body)).To(Equal("hello"))
	})
})

var _ = Describe("MemoryStore", func() {
	It("returns not-found for a missing key", func() {
		s := cache.NewMemoryStore()
		_, _, ok := s.Read("missing")
		Expect(ok).To(BeFalse())
	})

	It("round-trips a written entry", func() {
		s := cache.NewMemoryStore()
		now := time.Now().Truncate(time.Second)
		Expect(s.Write("k", []byte("v"), now, time.Minute)).To(Succeed())
		content, modified, ok := s.Read("k")
		Expect(ok).To(BeTrue())
		Expect(string(content)).To(Equal("v"))
		Expect(modified.Equal(now)).To(BeTrue())
	})

	It("expires an entry past its lifespan", func() {
		s := cache.NewMemoryStore()
		Expect(s.Write("k", []byte("v"), time.Now(), time.Nanosecond)).To(Succeed())
		time.Sleep(time.Millisecond)
		_, _, ok := s.Read("k")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Handler", func() {
	var store *cache.MemoryStore

	BeforeEach(func() {
		store = cache.NewMemoryStore()
	})

	It("rejects when no rule matches", func() {
		rule := cache.NewRule("only-posts", "POST", "", "", "", time.Minute, time.Minute, cache.FlagServer)
		h := cache.NewHandler(store, rule)
		st := newGetStream("/x")
		Expect(h.Match(st, stage.DirTX)).To(Equal(stage.MatchReject))
	})

	It("arms the capture buffer on a SERVER miss and rejects so the real handler still runs", func() {
		rule := cache.NewRule("miss", "", "", "", "", time.Minute, time.Minute, cache.FlagServer)
		h := cache.NewHandler(store, rule)
		st := newGetStream("/miss")

		res := h.Match(st, stage.DirTX)
		Expect(res).To(Equal(stage.MatchReject))
		Expect(st.Tx.CacheBuffer).NotTo(BeNil())
		Expect(st.Tx.CacheRuleName).To(Equal("miss"))
	})

	It("serves a SERVER hit as 200 and populates ETag/Last-Modified", func() {
		rule := cache.NewRule("hit", "", "", "", "", time.Minute, time.Minute, cache.FlagServer)
		key := cache.MakeKey(rule, "", "/hit", nil)
		entry := cache.EncodeEntry(200, map[string][]string{"Content-Type": {"text/plain"}}, []byte("cached body"))
		Expect(store.Write(key, entry, time.Now().Truncate(time.Second), time.Minute)).To(Succeed())

		h := cache.NewHandler(store, rule)
		st := newGetStream("/hit")

		Expect(h.Match(st, stage.DirTX)).To(Equal(stage.MatchOK))
		Expect(st.Tx.Status).To(Equal(http.StatusOK))
		Expect(st.Tx.Headers.Get("Etag")).NotTo(BeEmpty())
		Expect(st.Tx.Headers.Get("Last-Modified")).NotTo(BeEmpty())
	})

	It("responds 304 when If-None-Match matches the key's tag", func() {
		rule := cache.NewRule("cond", "", "", "", "", time.Minute, time.Minute, cache.FlagServer)
		key := cache.MakeKey(rule, "", "/cond", nil)
		entry := cache.EncodeEntry(200, map[string][]string{}, []byte("body"))
		Expect(store.Write(key, entry, time.Now().Truncate(time.Second), time.Minute)).To(Succeed())

		h := cache.NewHandler(store, rule)
		st := newGetStream("/cond")
		st.Rx.Headers.Set("If-None-Match", cache.ETag(key))

		Expect(h.Match(st, stage.DirTX)).To(Equal(stage.MatchOK))
		Expect(st.Tx.Status).To(Equal(http.StatusNotModified))
	})

	It("advertises Cache-Control/Expires for a CLIENT rule on a 200 response", func() {
		rule := cache.NewRule("client", "", "", "", "", time.Minute, time.Minute, cache.FlagClient)
		h := cache.NewHandler(store, rule)
		st := newGetStream("/client")

		Expect(h.Match(st, stage.DirTX)).To(Equal(stage.MatchReject))
		Expect(st.Tx.Headers.Get("Cache-Control")).To(ContainSubstring("max-age=60"))
		Expect(st.Tx.Headers.Get("Expires")).NotTo(BeEmpty())
	})

	It("consolidates concurrent reads for the same key under Consolidate", func() {
		rule := cache.NewRule("solo", "", "", "", "", time.Minute, time.Minute, cache.FlagServer)
		rule.Consolidate = true
		key := cache.MakeKey(rule, "", "/solo", nil)
		entry := cache.EncodeEntry(200, map[string][]string{}, []byte("body"))
		Expect(store.Write(key, entry, time.Now().Truncate(time.Second), time.Minute)).To(Succeed())

		h := cache.NewHandler(store, rule)
		done := make(chan stage.MatchResult, 4)
		for i := 0; i < 4; i++ {
			go func() {
				done <- h.Match(newGetStream("/solo"), stage.DirTX)
			}()
		}
		for i := 0; i < 4; i++ {
			Expect(<-done).To(Equal(stage.MatchOK))
		}
	})
})

var _ = Describe("Filter", func() {
	It("omits itself when no capture buffer is armed", func() {
		f := cache.NewFilter(cache.NewMemoryStore())
		st := newGetStream("/none")
		Expect(f.Match(st, stage.DirTX)).To(Equal(stage.MatchOmitFilter))
	})

	It("captures a response body and saves it to the store on END", func() {
		store := cache.NewMemoryStore()
		rule := cache.NewRule("save", "", "", "", "", time.Minute, time.Minute, cache.FlagServer)
		f := cache.NewFilter(store, rule)

		st := newGetStream("/save")
		st.Tx.CacheRuleName = rule.Name
		st.Tx.CacheBuffer = []byte{}

		Expect(f.Match(st, stage.DirTX)).To(Equal(stage.MatchOK))

		q := queue.New("tx.cacheFilter", nil, nil)
		q.Owner = st
		q.Service = f.OutgoingService
		sink := queue.New("tx.sink", nil, nil)
		q.NextQ = sink

		data := packet.New(5)
		data.Type = packet.TypeData
		data.Content.Write([]byte("world"))
		q.Put(data)

		end := packet.New(0)
		end.Type = packet.TypeEnd
		end.Last = true
		q.Put(end)

		queue.RunService(q)

		key := cache.MakeKey(rule, "", "/save", nil)
		content, _, ok := store.Read(key)
		Expect(ok).To(BeTrue())
		_, _, body, decOK := cache.DecodeEntry(content)
		Expect(decOK).To(BeTrue())
		Expect(string(body)).To(Equal("world"))
	})
})
