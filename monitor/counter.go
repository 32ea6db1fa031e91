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

// Built-in counter names, grounded on monitor.c's fixed counter indices
// (MONITOR_ACTIVE_CLIENTS..MONITOR_SSL_ERRORS).
const (
	CounterActiveClients     = "ActiveClients"
	CounterActiveConnections = "ActiveConnections"
	CounterActiveRequests    = "ActiveRequests"
	CounterActiveProcesses   = "ActiveProcesses"
	CounterBadRequestErrors  = "BadRequestErrors"
	CounterLimitErrors       = "LimitErrors"
	CounterMemory            = "Memory"
	CounterNotFoundErrors    = "NotFoundErrors"
	CounterNetworkIO        = "NetworkIO"
	CounterRequests          = "Requests"
	CounterSSLErrors         = "SSLErrors"
	CounterTotalErrors       = "TotalErrors"
)

// globalCounters lists the counters that are process-wide rather than
// per-address, grounded on checkMonitor's special-cased
// "mp == 0 ... counter->index == MONITOR_MEMORY/ACTIVE_PROCESSES/
// ACTIVE_CLIENTS" branch: these are evaluated once with no associated IP
// instead of once per tracked address.
var globalCounters = map[string]bool{
	CounterMemory:          true,
	CounterActiveProcesses: true,
	CounterActiveClients:   true,
}

// IsGlobalCounter reports whether name is evaluated once for the whole
// process rather than once per tracked address.
func IsGlobalCounter(name string) bool {
	return globalCounters[name]
}
