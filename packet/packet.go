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

// Package packet implements the core's byte-carrying unit: a typed,
// splittable, joinable buffer that flows through queues and stages. See
// spec.md §3 (Packet) and §4.1.
package packet

import (
	"bytes"
	"errors"
)

// Type distinguishes the logical role of a packet's bytes.
type Type uint8

const (
	TypeHeader Type = iota
	TypeData
	TypeEnd
	TypeControl
)

// Flags mirror spec.md §3: HEADER | DATA | END | SOLO.
type Flags uint8

const (
	FlagHeader Flags = 1 << iota
	FlagData
	FlagEnd
	FlagSolo
)

// ErrOutOfMemory is returned by Join when the destination buffer refuses to
// grow (spec.md §4.1 join operation).
var ErrOutOfMemory = errors.New("packet: out of memory growing buffer")

// Packet is the unit of data flow. Entity packets (Fill set) represent a
// lazily-materialized file region: Epos/Esize describe the region, and the
// packet has no Content bytes until a handler (e.g. connector) fills them.
type Packet struct {
	Type    Type
	Flags   Flags
	Content *bytes.Buffer
	Prefix  *bytes.Buffer
	Last    bool

	Fill  bool // true: Content not yet materialized, Epos/Esize describe a file region
	Epos  int64
	Esize int64

	Next *Packet // intra-queue singly-linked list
}

// New allocates a Packet. size < 0 requests a default growable buffer;
// size >= 0 preallocates that much capacity.
func New(size int) *Packet {
	p := &Packet{
		Content: &bytes.Buffer{},
		Prefix:  &bytes.Buffer{},
	}
	if size > 0 {
		p.Content.Grow(size)
	}
	return p
}

// NewEntity allocates a packet representing a lazily-filled file region of
// esize bytes starting at epos. It carries no content bytes until a
// connector materializes them (spec.md §3 Packet invariant).
func NewEntity(epos, esize int64) *Packet {
	p := New(0)
	p.Fill = true
	p.Epos = epos
	p.Esize = esize
	return p
}

// Len returns the packet's logical byte size: prefix + content + any
// unmaterialized entity bytes (spec.md §3 invariant).
func (p *Packet) Len() int64 {
	var n int64
	if p.Prefix != nil {
		n += int64(p.Prefix.Len())
	}
	if p.Content != nil {
		n += int64(p.Content.Len())
	}
	n += p.Esize
	return n
}

// IsControl reports whether this packet carries no data of its own
// (TypeEnd or TypeControl) and should not be subject to willAccept sizing.
func (p *Packet) IsControl() bool {
	return p.Type == TypeEnd || p.Type == TypeControl
}

// Clone deep-copies content and prefix; used where a packet must be
// retained by two independent consumers (e.g. cache capture + normal TX).
func Clone(p *Packet) *Packet {
	c := &Packet{
		Type:  p.Type,
		Flags: p.Flags,
		Last:  p.Last,
		Fill:  p.Fill,
		Epos:  p.Epos,
		Esize: p.Esize,
	}
	if p.Content != nil {
		c.Content = bytes.NewBuffer(append([]byte(nil), p.Content.Bytes()...))
	} else {
		c.Content = &bytes.Buffer{}
	}
	if p.Prefix != nil {
		c.Prefix = bytes.NewBuffer(append([]byte(nil), p.Prefix.Bytes()...))
	} else {
		c.Prefix = &bytes.Buffer{}
	}
	return c
}

// Join appends src's content into dst and returns dst. dst keeps its own
// prefix; src's prefix is discarded (prefixes are per-packet framing
// overhead, not part of the logical stream). Fails with ErrOutOfMemory if
// dst refuses to grow past its cap (Content.Cap() as a stand-in for the
// teacher's allocator ceiling).
func Join(dst, src *Packet) error {
	if dst.Fill || src.Fill {
		// entity packets cannot be joined byte-wise; caller must materialize first.
		return errors.New("packet: cannot join unmaterialized entity packet")
	}
	if dst.Content == nil {
		dst.Content = &bytes.Buffer{}
	}
	if _, err := dst.Content.Write(src.Content.Bytes()); err != nil {
		return ErrOutOfMemory
	}
	if src.Last {
		dst.Last = true
	}
	return nil
}

// Split returns a new packet holding bytes [offset:] of p's content; p
// retains [:offset]. Flags, Type and Last propagate to the tail fragment
// (the tail is "the rest of the same logical message"). For entity packets,
// Split adjusts Epos/Esize without touching any materialized bytes.
func Split(p *Packet, offset int64) *Packet {
	tail := &Packet{Type: p.Type, Flags: p.Flags, Last: p.Last}

	if p.Fill {
		tail.Fill = true
		tail.Epos = p.Epos + offset
		tail.Esize = p.Esize - offset
		p.Esize = offset
		tail.Content = &bytes.Buffer{}
		p.Last = false
		return tail
	}

	b := p.Content.Bytes()
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(b)) {
		offset = int64(len(b))
	}
	head := append([]byte(nil), b[:offset]...)
	rest := append([]byte(nil), b[offset:]...)
	p.Content = bytes.NewBuffer(head)
	tail.Content = bytes.NewBuffer(rest)
	p.Last = false
	return tail
}

// Resize splits trailing bytes off p so that p.Len() <= max(n, 0), and
// returns the pushed-back sibling (nil if no split was needed). Used to fit
// a downstream queue's packetSize/max limits (spec.md §4.1).
func Resize(p *Packet, n int64) *Packet {
	if n <= 0 || p.Len() <= n {
		return nil
	}
	prefixLen := int64(0)
	if p.Prefix != nil {
		prefixLen = int64(p.Prefix.Len())
	}
	offset := n - prefixLen
	if offset < 0 {
		offset = 0
	}
	return Split(p, offset)
}
