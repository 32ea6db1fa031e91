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

package monitor

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

// addressSnapshot is the durable form of an Address, letting ban/delay
// state (and accumulated counters) survive a process restart instead of
// resetting every tracked client to a clean slate.
type addressSnapshot struct {
	IP         string           `cbor:"ip"`
	Counters   map[string]int64 `cbor:"counters"`
	Updated    time.Time        `cbor:"updated"`
	BanUntil   time.Time        `cbor:"ban_until"`
	DelayUntil time.Time        `cbor:"delay_until"`
	Delay      time.Duration    `cbor:"delay"`
}

// Snapshot encodes the tracker's current address map with cbor.
func (t *Tracker) Snapshot() ([]byte, error) {
	t.mu.RLock()
	snaps := make([]addressSnapshot, 0, len(t.addresses))
	for ip, a := range t.addresses {
		a.mu.Lock()
		snaps = append(snaps, addressSnapshot{
			IP:         ip,
			Counters:   a.Counters,
			Updated:    a.Updated,
			BanUntil:   a.BanUntil,
			DelayUntil: a.DelayUntil,
			Delay:      a.Delay,
		})
		a.mu.Unlock()
	}
	t.mu.RUnlock()

	return cbor.Marshal(snaps)
}

// Restore replaces the tracker's address map with a previously-Snapshotted
// encoding.
func (t *Tracker) Restore(data []byte) error {
	var snaps []addressSnapshot
	if err := cbor.Unmarshal(data, &snaps); err != nil {
		return err
	}

	addresses := make(map[string]*Address, len(snaps))
	for _, s := range snaps {
		addresses[s.IP] = &Address{
			Counters:   s.Counters,
			Updated:    s.Updated,
			BanUntil:   s.BanUntil,
			DelayUntil: s.DelayUntil,
			Delay:      s.Delay,
		}
	}

	t.mu.Lock()
	t.addresses = addresses
	t.mu.Unlock()
	return nil
}
