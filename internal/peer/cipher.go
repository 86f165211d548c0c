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
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
)

// deriveSessionKey hashes the ECDH shared secret into the session
// symmetric key.
func deriveSessionKey(shared []byte) [32]byte {
	return sha256.Sum256(shared)
}

// deriveSessionIV hashes the XOR of the two handshake salts into the
// session IV.
func deriveSessionIV(theirSalt, ourSalt [16]byte) [32]byte {
	var x [16]byte
	for i := range x {
		x[i] = theirSalt[i] ^ ourSalt[i]
	}
	return sha256.Sum256(x[:])
}

// cfb8Stream implements cipher.Stream with an 8-bit (one byte at a
// time) feedback segment, i.e. OpenSSL-style "aes-256-cfb8". The
// standard library's cipher.NewCFBEncrypter/Decrypter use a full-block
// feedback segment and cannot produce this variant, so it is
// hand-written against crypto/cipher.Block directly.
type cfb8Stream struct {
	block   cipher.Block
	iv      []byte // shift register, len == block.BlockSize()
	decrypt bool
	scratch []byte
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) cipher.Stream {
	bs := block.BlockSize()
	reg := make([]byte, bs)
	copy(reg, iv)
	return &cfb8Stream{block: block, iv: reg, decrypt: decrypt, scratch: make([]byte, bs)}
}

// XORKeyStream encrypts/decrypts one byte at a time: feed the shift
// register through the block cipher, XOR its first output byte with the
// input byte to produce the output byte, then shift that ciphertext
// byte (not the plaintext byte) into the register — the defining trait
// of CFB with an 8-bit segment.
func (s *cfb8Stream) XORKeyStream(dst, src []byte) {
	for i := 0; i < len(src); i++ {
		s.block.Encrypt(s.scratch, s.iv)
		var cipherByte, plainByte byte
		if s.decrypt {
			cipherByte = src[i]
			plainByte = cipherByte ^ s.scratch[0]
			dst[i] = plainByte
		} else {
			plainByte = src[i]
			cipherByte = plainByte ^ s.scratch[0]
			dst[i] = cipherByte
		}
		copy(s.iv, s.iv[1:])
		s.iv[len(s.iv)-1] = cipherByte
	}
}

// NewStreamCipher builds one directional stream for the named algorithm,
// for installing a cipher on an arbitrary socket port mid-session. Only
// "aes-256-cfb8" is recognized.
func NewStreamCipher(algo string, key, iv []byte, decrypt bool) (cipher.Stream, error) {
	if algo != "aes-256-cfb8" {
		return nil, fmt.Errorf("peer: unsupported stream cipher %q", algo)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("peer: %s needs a 32-byte key, got %d", algo, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) < aes.BlockSize {
		return nil, fmt.Errorf("peer: %s needs a %d-byte iv, got %d", algo, aes.BlockSize, len(iv))
	}
	return newCFB8(block, iv[:aes.BlockSize], decrypt), nil
}

// SessionCipher pairs the independent inbound/outbound CFB-8 streams a
// peer session rekeys to after the handshake.
type SessionCipher struct {
	Encrypt cipher.Stream
	Decrypt cipher.Stream
}

// NewSessionCipher builds the two directional streams from the derived
// key/IV. The SHA-256-derived material is used directly: all 32 key
// bytes (AES-256), and the first 16 IV bytes (one AES block).
func NewSessionCipher(key [32]byte, iv [32]byte) (SessionCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return SessionCipher{}, err
	}
	return SessionCipher{
		Encrypt: newCFB8(block, iv[:aes.BlockSize], false),
		Decrypt: newCFB8(block, iv[:aes.BlockSize], true),
	}, nil
}
