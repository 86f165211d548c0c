/*
 * MIT License
 *
 * Copyright (c) 2025 Twinkle Labs
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
 */

package peer

import (
	"net"
	"sync"

	"github.com/twinkle-labs/twk/internal/wire"
)

// readChunk is the buffer size used for each raw socket read that feeds
// the wire decoder.
const readChunk = 4096

// Stream wraps a net.Conn with the post-handshake stream cipher and
// wire.Decoder framing: messages are delimited by expression balance,
// so the decoder stops at each balanced top-level term.
//
// ReadMessage and WriteMessage are each safe to call concurrently with
// the other (net.Conn permits independent concurrent Read/Write). That
// is what keeps both sides from deadlocking with full socket buffers:
// a dedicated reader goroutine (see Session) drains inbound messages
// independently of whatever the writer side is doing.
type Stream struct {
	conn net.Conn
	sc   SessionCipher
	dec  wire.Decoder

	writeMu sync.Mutex
}

// NewStream constructs a Stream over a connection already past the
// handshake; from here on every byte on the stream is ciphered.
func NewStream(conn net.Conn, sc SessionCipher) *Stream {
	return &Stream{conn: conn, sc: sc}
}

// ReadMessage blocks until one complete wire.Value has been decoded
// from the ciphered stream, or the connection errors/closes.
func (s *Stream) ReadMessage() (wire.Value, error) {
	for {
		v, ok, err := s.dec.Next()
		if err != nil {
			return wire.Value{}, err
		}
		if ok {
			return v, nil
		}

		raw := make([]byte, readChunk)
		n, err := s.conn.Read(raw)
		if n > 0 {
			plain := make([]byte, n)
			s.sc.Decrypt.XORKeyStream(plain, raw[:n])
			s.dec.Feed(plain)
		}
		if err != nil {
			return wire.Value{}, err
		}
	}
}

// WriteMessage ciphers and writes one wire message. Concurrent writers
// are serialized so a single message is never interleaved with another.
func (s *Stream) WriteMessage(v wire.Value) error {
	plain := wire.Encode(v)
	cipherBytes := make([]byte, len(plain))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.sc.Encrypt.XORKeyStream(cipherBytes, plain)
	_, err := s.conn.Write(cipherBytes)
	return err
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}
