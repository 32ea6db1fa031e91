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
	"sync"
	"time"
)

// Store is the response cache's persistence backend, matching the
// read/write/remove shape of mprReadCache/mprWriteCache/mprRemoveCache.
// Modified is always truncated to 1-second resolution by the caller before
// it reaches Write (spec.md §3 invariant), not by the Store implementation.
type Store interface {
	Read(key string) (content []byte, modified time.Time, ok bool)
	Write(key string, content []byte, modified time.Time, lifespan time.Duration) error
	Remove(key string) error
}

type memoryEntry struct {
	content  []byte
	modified time.Time
	expires  time.Time
}

// MemoryStore is an in-process Store, the default backend when no
// persisted store is configured. Entries past their lifespan are treated
// as absent on Read and swept lazily.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Read(key string) ([]byte, time.Time, bool) {
	s.mu.RLock()
	e, found := s.entries[key]
	s.mu.RUnlock()
	if !found {
		return nil, time.Time{}, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, time.Time{}, false
	}
	return e.content, e.modified, true
}

func (s *MemoryStore) Write(key string, content []byte, modified time.Time, lifespan time.Duration) error {
	var expires time.Time
	if lifespan > 0 {
		expires = time.Now().Add(lifespan)
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{content: append([]byte(nil), content...), modified: modified, expires: expires}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
