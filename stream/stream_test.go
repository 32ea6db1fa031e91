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

package stream_test

import (
	"errors"
	"testing"

	"github.com/nabbar/httpcore/reqstate"
	"github.com/nabbar/httpcore/stream"
)

func TestProcessAdvancesUntilBlockedOnHeaders(t *testing.T) {
	s := stream.New(nil)
	s.Rx.Method = "GET"

	s.Process()

	// No headers parsed yet and rx not EOF, so progress must stop at FIRST.
	if s.State.Current() != reqstate.First {
		t.Fatalf("expected to stop at FIRST, got %v", s.State.Current())
	}
}

func TestProcessRunsToRunningOnceBodyComplete(t *testing.T) {
	s := stream.New(nil)
	s.Rx.Method = "GET"
	s.Rx.Headers.Set("Host", "example.com")
	s.Rx.EOF = true

	s.Process()

	if s.State.Current() != reqstate.Running {
		t.Fatalf("expected RUNNING once headers parsed and body EOF, got %v", s.State.Current())
	}
}

func TestFailForcesFinalizeAndZeroesKeepAlive(t *testing.T) {
	s := stream.New(nil)
	s.KeepAliveCount = 5

	s.Fail(errors.New("boom"))

	if s.KeepAliveCount != 0 {
		t.Fatalf("expected keep-alive to be zeroed on error, got %d", s.KeepAliveCount)
	}
	if !s.State.IsFinalized() {
		t.Fatal("expected all three finalize axes to be set after Fail")
	}
	if s.Error == nil {
		t.Fatal("expected Error to be recorded")
	}
}

func TestFailIsFirstErrorWins(t *testing.T) {
	s := stream.New(nil)
	first := errors.New("first")
	second := errors.New("second")

	s.Fail(first)
	s.Fail(second)

	if s.Error != first {
		t.Fatalf("expected first error to win, got %v", s.Error)
	}
}
