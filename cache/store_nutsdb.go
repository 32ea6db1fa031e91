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
	"encoding/binary"
	"time"

	"github.com/nutsdb/nutsdb"
)

// nutsBucket is the single bucket the response cache occupies in the
// embedded store; nutsdb multiplexes many logical stores in one file via
// buckets, matching how nabbar-golib's nutsdb component keys its own data
// (config/components/nutsdb).
const nutsBucket = "httpcore_response_cache"

// NutsStore persists cache entries in an embedded nutsdb database, the
// optional SERVER-mode backend for installations that want the response
// cache to survive a restart (spec.md §9's persisted-state guidance
// generalized from the address map to the response cache). The modified
// timestamp is packed ahead of the content bytes since nutsdb's own TTL
// granularity (seconds, applied at Put time) is enough for expiry but not
// for the 1-second If-Modified-Since comparison spec.md §3 requires.
type NutsStore struct {
	db *nutsdb.DB
}

// OpenNutsStore opens (creating if absent) a nutsdb database rooted at dir.
func OpenNutsStore(dir string) (*NutsStore, error) {
	db, err := nutsdb.Open(nutsdb.DefaultOptions, nutsdb.WithDir(dir))
	if err != nil {
		return nil, err
	}
	return &NutsStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *NutsStore) Close() error {
	return s.db.Close()
}

func encodeModified(modified time.Time, content []byte) []byte {
	out := make([]byte, 8+len(content))
	binary.BigEndian.PutUint64(out[:8], uint64(modified.Unix()))
	copy(out[8:], content)
	return out
}

func decodeModified(raw []byte) (time.Time, []byte) {
	if len(raw) < 8 {
		return time.Time{}, nil
	}
	sec := int64(binary.BigEndian.Uint64(raw[:8]))
	return time.Unix(sec, 0), raw[8:]
}

func (s *NutsStore) Read(key string) (content []byte, modified time.Time, ok bool) {
	err := s.db.View(func(tx *nutsdb.Tx) error {
		e, err := tx.Get(nutsBucket, []byte(key))
		if err != nil {
			return err
		}
		modified, content = decodeModified(e.Value)
		ok = true
		return nil
	})
	if err != nil {
		return nil, time.Time{}, false
	}
	return content, modified, ok
}

func (s *NutsStore) Write(key string, content []byte, modified time.Time, lifespan time.Duration) error {
	var ttl uint32
	if lifespan > 0 {
		ttl = uint32(lifespan / time.Second)
		if ttl == 0 {
			ttl = 1
		}
	}
	raw := encodeModified(modified, content)
	return s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(nutsBucket, []byte(key), raw, ttl)
	})
}

func (s *NutsStore) Remove(key string) error {
	return s.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Delete(nutsBucket, []byte(key))
	})
}

var _ Store = (*NutsStore)(nil)
