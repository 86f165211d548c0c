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
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Curve is the curve used for both the ephemeral (handshake) and
// long-term (identity) keys. The handshake blob carries a 65-byte
// uncompressed public key, which is exactly P-256's uncompressed point
// encoding (1 tag byte + 32 + 32).
var Curve = ecdh.P256()

// KeyPair is a long-term or ephemeral identity keypair.
type KeyPair struct {
	Private *ecdh.PrivateKey
	Public  *ecdh.PublicKey
}

// GenerateKeyPair creates a fresh keypair on Curve.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := Curve.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}

// Identity is the system's notion of "who": the hash of a long-term
// public key, rendered as a check-encoded string — hex of
// SHA-256(pubkey) followed by a 4-byte SHA-256 checksum of that hex,
// also hex-encoded. The checksum lets a mistyped identity be rejected
// locally before any connection is attempted.
type Identity string

// DeriveIdentity computes the Identity asserted by a long-term public key.
func DeriveIdentity(pub *ecdh.PublicKey) Identity {
	sum := sha256.Sum256(pub.Bytes())
	body := hex.EncodeToString(sum[:])
	check := sha256.Sum256([]byte(body))
	return Identity(body + hex.EncodeToString(check[:4]))
}

// Verify reports whether id is consistent with its own checksum suffix
// (cheap local sanity check, independent of whether it matches any
// particular public key).
func (id Identity) Verify() bool {
	s := string(id)
	if len(s) != 64+8 {
		return false
	}
	body, suffix := s[:64], s[64:]
	check := sha256.Sum256([]byte(body))
	return suffix == hex.EncodeToString(check[:4])
}

// MatchesKey reports whether id is the Identity of pub; negotiation
// rejects a client whose asserted identity fails this check.
func (id Identity) MatchesKey(pub *ecdh.PublicKey) bool {
	return id == DeriveIdentity(pub)
}

// SaveKeyPair persists kp to path as the textual pair
// "(private-key . public-key)", each side hex-encoded. This is a dotted
// pair, not a proper list, so it is written/read with a small dedicated
// format rather than internal/wire's list-only grammar (wire encodes
// messages that cross process boundaries; this is an at-rest file
// format).
func SaveKeyPair(path string, kp KeyPair) error {
	line := fmt.Sprintf("(%s . %s)\n", hex.EncodeToString(kp.Private.Bytes()), hex.EncodeToString(kp.Public.Bytes()))
	return os.WriteFile(path, []byte(line), 0o600)
}

// LoadKeyPair reads a keypair file written by SaveKeyPair.
func LoadKeyPair(path string) (KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, err
	}
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.SplitN(s, " . ", 2)
	if len(parts) != 2 {
		return KeyPair{}, fmt.Errorf("peer: malformed keypair file %s", path)
	}
	privBytes, err := hex.DecodeString(strings.TrimSpace(parts[0]))
	if err != nil {
		return KeyPair{}, fmt.Errorf("peer: malformed private key in %s: %w", path, err)
	}
	priv, err := Curve.NewPrivateKey(privBytes)
	if err != nil {
		return KeyPair{}, fmt.Errorf("peer: invalid private key in %s: %w", path, err)
	}
	return KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}
