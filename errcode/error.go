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

package errcode

import (
	"fmt"
	"runtime"
)

// Error is the core's error type: a code, an optional wrapped parent, and
// the call site that raised it. Once set on a Stream or Network, further
// protocol operations on that context become no-ops (spec.md §7 propagation
// policy) — callers check Error() != nil rather than branching on Go's
// plain error interface everywhere.
type Error interface {
	error
	Code() Code
	Parent() error
	Unwrap() error
}

type coreError struct {
	code   Code
	parent error
	msg    string
	file   string
	line   int
}

// New creates an Error with no wrapped parent.
func New(code Code, format string, args ...interface{}) Error {
	return newAt(code, nil, format, args...)
}

// Wrap creates an Error that wraps an existing error (another Error, or any
// stdlib error returned by a collaborator such as net or os).
func Wrap(code Code, parent error, format string, args ...interface{}) Error {
	return newAt(code, parent, format, args...)
}

func newAt(code Code, parent error, format string, args ...interface{}) Error {
	_, file, line, _ := runtime.Caller(2)
	return &coreError{
		code:   code,
		parent: parent,
		msg:    fmt.Sprintf(format, args...),
		file:   file,
		line:   line,
	}
}

func (e *coreError) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s (code %s, at %s:%d): %v", e.msg, e.code, e.file, e.line, e.parent)
	}
	return fmt.Sprintf("%s (code %s, at %s:%d)", e.msg, e.code, e.file, e.line)
}

func (e *coreError) Code() Code    { return e.code }
func (e *coreError) Parent() error { return e.parent }
func (e *coreError) Unwrap() error { return e.parent }
