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

package ws

// Close status codes used by this package; the remaining RFC 6455 §7.4.1
// codes pass through ValidateCloseStatus unchanged.
const (
	StatusOK               = 1000
	StatusGoingAway        = 1001
	StatusProtocolError    = 1002
	StatusUnsupportedData  = 1003
	StatusNoStatus         = 1005
	StatusAbnormalClose    = 1006
	StatusInvalidUTF8      = 1007
	StatusPolicyViolation  = 1008
	StatusMessageTooLarge  = 1009
	StatusInternalError    = 1011
	StatusMax              = 4999
)

// ValidateCloseStatus reports whether status is a legal value to appear on
// the wire in a CLOSE frame. Ported verbatim from processFrame's close-frame
// handling in webSockFilter.c: "as if UTF validation wasn't bad enough, we
// must invalidate these codes: 1004, 1005, 1006, 1012-1016, 2000-2999" (the
// comment undercounts; the actual guard also rejects the whole 1100-2999
// span and anything outside [1000,5000)).
func ValidateCloseStatus(status int) bool {
	if status < 1000 || status >= 5000 {
		return false
	}
	if status >= 1004 && status <= 1006 {
		return false
	}
	if status >= 1012 && status <= 1016 {
		return false
	}
	if status >= 1100 && status <= 2999 {
		return false
	}
	return true
}
