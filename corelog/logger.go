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

package corelog

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields carries correlation identifiers (stream id, network id, address)
// attached to a log line.
type Fields map[string]interface{}

// Logger is the interface every core package logs through. Never the bare
// logrus.Logger, so the core can be embedded without forcing a logging
// backend on the host application (the host supplies a Logger at
// construction, matching the teacher's dependency-injected FuncLog shape).
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	WithFields(f Fields) Logger
	Log(lvl Level, format string, args ...interface{})
	LogError(lvl Level, err error, format string, args ...interface{})
}

type logger struct {
	mu  sync.RWMutex
	lvl Level
	ent *logrus.Entry
}

// New builds a Logger writing to w (os.Stderr if nil) at the given minimal
// level.
func New(w io.Writer, lvl Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(lvl.logrus())
	return &logger{lvl: lvl, ent: logrus.NewEntry(base)}
}

func (l *logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lvl = lvl
	l.ent.Logger.SetLevel(lvl.logrus())
}

func (l *logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lvl
}

func (l *logger) WithFields(f Fields) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &logger{lvl: l.lvl, ent: l.ent.WithFields(logrus.Fields(f))}
}

func (l *logger) Log(lvl Level, format string, args ...interface{}) {
	l.ent.Logf(lvl.logrus(), format, args...)
}

func (l *logger) LogError(lvl Level, err error, format string, args ...interface{}) {
	l.ent.WithError(err).Logf(lvl.logrus(), format, args...)
}

// Discard is a Logger that drops everything; used as the zero-value default
// so core components never need a nil check.
var Discard Logger = &logger{ent: logrus.NewEntry(func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}())}
