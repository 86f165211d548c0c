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
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/twinkle-labs/twk/internal/twkerr"
)

// BlobSize is the fixed size of each side's handshake blob.
const BlobSize = 256

// pubKeyOffset/pubKeySize is where the 65-byte uncompressed ephemeral
// public key lives inside the blob.
const (
	pubKeyOffset = 0
	pubKeySize   = 65
	// saltOffset is the fixed position of the 16-byte salt field.
	saltOffset = 128
	saltSize   = 16
)

// buildHandshakeBlob lays out a 256-byte blob with the ephemeral public
// key and salt at their fixed offsets, and cryptographically random
// bytes everywhere else. The padding is otherwise free-form; random
// fill keeps the blob indistinguishable from the key material around
// it.
func buildHandshakeBlob(pub []byte, salt [16]byte) ([]byte, error) {
	if len(pub) != pubKeySize {
		return nil, fmt.Errorf("peer: ephemeral public key must be %d bytes, got %d", pubKeySize, len(pub))
	}
	blob := make([]byte, BlobSize)
	if _, err := rand.Read(blob); err != nil {
		return nil, err
	}
	copy(blob[pubKeyOffset:], pub)
	copy(blob[saltOffset:], salt[:])
	return blob, nil
}

func parseHandshakeBlob(blob []byte) (pub []byte, salt [16]byte, err error) {
	if len(blob) != BlobSize {
		return nil, salt, fmt.Errorf("peer: handshake blob must be %d bytes, got %d", BlobSize, len(blob))
	}
	pub = append([]byte(nil), blob[pubKeyOffset:pubKeyOffset+pubKeySize]...)
	copy(salt[:], blob[saltOffset:saltOffset+saltSize])
	return pub, salt, nil
}

// HandshakeResult carries the session cipher derived from stage 1; the
// ephemeral keys are not kept.
type HandshakeResult struct {
	Cipher SessionCipher
}

// DoHandshake runs the first stage over conn: generate an ephemeral
// keypair, exchange 256-byte blobs, compute the ECDH shared secret, and
// derive the session key/IV. Both sides run the identical exchange —
// there is no client/server asymmetry at this stage.
func DoHandshake(conn net.Conn, timeout time.Duration) (HandshakeResult, error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "generate ephemeral key", err)
	}

	var ourSalt [16]byte
	if _, err := rand.Read(ourSalt[:]); err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "generate salt", err)
	}

	blob, err := buildHandshakeBlob(ephemeral.Public.Bytes(), ourSalt)
	if err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "build blob", err)
	}

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(blob); err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "write blob", err)
	}

	peerBlob := make([]byte, BlobSize)
	if _, err := readFull(conn, peerBlob); err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "read peer blob", err)
	}

	peerPubBytes, theirSalt, err := parseHandshakeBlob(peerBlob)
	if err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "parse peer blob", err)
	}

	peerPub, err := Curve.NewPublicKey(peerPubBytes)
	if err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "invalid peer ephemeral key", err)
	}

	shared, err := ephemeral.Private.ECDH(peerPub)
	if err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "ecdh", err)
	}

	key := deriveSessionKey(shared)
	iv := deriveSessionIV(theirSalt, ourSalt)

	sc, err := NewSessionCipher(key, iv)
	if err != nil {
		return HandshakeResult{}, twkerr.New(twkerr.HandshakeFailed, "derive session cipher", err)
	}
	return HandshakeResult{Cipher: sc}, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
