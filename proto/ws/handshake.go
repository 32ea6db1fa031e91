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

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
)

// AcceptKey computes the Sec-WebSocket-Accept value a server returns for a
// client's Sec-WebSocket-Key, per httpUpgradeWebSocket/
// httpVerifyWebSocketsHandshake: base64(sha1(key + Magic)).
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(Magic))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NewClientKey generates a fresh random Sec-WebSocket-Key for a client-side
// upgrade request, per httpUpgradeWebSocket's mprGetRandomBytes(num, 16, 0).
func NewClientKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// VerifyAcceptKey reports whether serverAccept is the value the server
// ought to have returned for clientKey, per
// httpVerifyWebSocketsHandshake's comparison against mprGetSHABase64.
func VerifyAcceptKey(clientKey, serverAccept string) bool {
	return AcceptKey(clientKey) == serverAccept
}
