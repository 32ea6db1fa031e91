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

package packet

import "sync"

// Pool recycles Packet buffers across a stream's lifetime, avoiding the
// allocation churn the teacher's resource-lifecycle philosophy (spec.md §5)
// explicitly discourages on a hot I/O path.
type Pool struct {
	p sync.Pool
}

// NewPool returns a Pool producing packets of the given default Type.
func NewPool(t Type) *Pool {
	pl := &Pool{}
	pl.p.New = func() interface{} {
		p := New(0)
		p.Type = t
		return p
	}
	return pl
}

// Get returns a packet ready for reuse; callers must not assume zeroed
// content across gets from the same pool slot (Put resets it).
func (pl *Pool) Get() *Packet {
	return pl.p.Get().(*Packet)
}

// Put resets and returns a packet to the pool. Entity packets and packets
// still referenced elsewhere (shared via Clone) must not be put back.
func (pl *Pool) Put(p *Packet) {
	if p == nil || p.Fill {
		return
	}
	p.Content.Reset()
	p.Prefix.Reset()
	p.Last = false
	p.Next = nil
	p.Flags = 0
	pl.p.Put(p)
}
