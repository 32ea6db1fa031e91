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

package httpservice

import (
	"github.com/nabbar/httpcore/router"
	"github.com/nabbar/httpcore/stage"
	"github.com/nabbar/httpcore/stream"
)

// headerRewrite applies a route's response header rewrite ops once headers
// are ready, closing the gap between router.ApplyHeaderOps (exported, but
// otherwise never called) and the pipeline: no package below router owns a
// stage that invokes it, so this is that stage, narrow and TX-only.
type headerRewrite struct {
	ops []router.HeaderOp
}

// newHeaderRewriteStage builds the Stage wiring for a route's response
// header rewrite list.
func newHeaderRewriteStage(ops []router.HeaderOp) *stage.Stage {
	hr := &headerRewrite{ops: ops}
	s := stage.New("headerRewrite", stage.FlagFilter)
	s.Match = hr.match
	s.Start = hr.apply
	return s
}

func (hr *headerRewrite) match(_ stage.Context, dir stage.Direction) stage.MatchResult {
	if dir != stage.DirTX {
		return stage.MatchReject
	}
	return stage.MatchOK
}

// apply runs at Start time, the moment spec.md's pipeline capability set
// calls "headers are ready and the handler may emit" — the last point
// before any filter downstream (cache capture, the connector) can see the
// response headers.
func (hr *headerRewrite) apply(ctx stage.Context) {
	st, ok := ctx.(*stream.Stream)
	if !ok || st == nil {
		return
	}
	router.ApplyHeaderOps(st.Tx.Headers, hr.ops)
}
