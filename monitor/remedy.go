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
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message carries the fields checkCounter builds on trigger: COUNTER, DATE,
// IP, LIMIT, MSG, PERIOD, VALUE.
type Message map[string]string

// NewMessage builds the trigger message for one counter crossing its limit,
// grounded on checkCounter's "mprCreateHash(...); mprAddKey(msg, \"COUNTER\"...".
func NewMessage(counter, ip string, value, limit int64, period time.Duration, expr string) Message {
	m := Message{
		"COUNTER": counter,
		"DATE":    time.Now().Format(time.RFC1123),
		"LIMIT":   strconv.FormatInt(limit, 10),
		"PERIOD":  period.String(),
		"VALUE":   strconv.FormatInt(value, 10),
		"MSG": fmt.Sprintf("%s %s %s (value=%d, limit=%d, period=%s)",
			counter, ip, expr, value, limit, period),
	}
	if ip != "" {
		m["IP"] = ip
	}
	return m
}

// RemedyFunc performs one defense action. args is the defense's own
// configured argument map, already template-expanded against msg (stemplate
// in the original). tracker/address give ban/delay remedies somewhere to
// record their effect; address is nil for global (non-per-IP) triggers.
type RemedyFunc func(ctx context.Context, tracker *Tracker, address *Address, args map[string]string, msg Message) error

var remedyFactories = map[string]RemedyFunc{}

// RegisterRemedy installs a named remedy, grounded on httpAddRemedy's
// name-to-function registry (maRegisterUrlHandler-style indirection so
// defenses reference remedies by name in configuration).
func RegisterRemedy(name string, fn RemedyFunc) {
	remedyFactories[name] = fn
}

// Remedy looks up a previously registered remedy by name.
func Remedy(name string) (RemedyFunc, bool) {
	fn, ok := remedyFactories[name]
	return fn, ok
}

// Defense binds a name to a remedy and its static argument template,
// grounded on httpAddDefense's HttpDefense (name, remedy, args hash).
type Defense struct {
	Name   string
	Remedy string
	Args   map[string]string
}

// NewDefense parses "key=value,key=value" argument lists the way
// httpAddDefense's caller tokenizes its config directive.
func NewDefense(name, remedy, argList string) *Defense {
	args := make(map[string]string)
	for _, kv := range strings.Split(argList, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		args[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return &Defense{Name: name, Remedy: remedy, Args: args}
}

// expand performs the original's stemplate "${VAR}" substitution of a
// defense's configured argument values against the trigger message, e.g. a
// defense configured with uri=http://sink/${IP} gets IP filled in from msg.
func expand(args map[string]string, msg Message) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = expandString(v, msg)
	}
	return out
}

func expandString(v string, msg Message) string {
	for key, val := range msg {
		v = strings.ReplaceAll(v, "${"+key+"}", val)
	}
	return v
}

// Invoke template-expands d's arguments against msg and runs its remedy,
// grounded on invokeDefenses.
func (d *Defense) Invoke(ctx context.Context, tracker *Tracker, address *Address, msg Message) error {
	fn, ok := Remedy(d.Remedy)
	if !ok {
		return fmt.Errorf("monitor: unknown remedy %q", d.Remedy)
	}
	return fn(ctx, tracker, address, expand(d.Args, msg), msg)
}
