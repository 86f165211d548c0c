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
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/twinkle-labs/twk/internal/twkerr"
	"github.com/twinkle-labs/twk/internal/wire"
)

// NegotiationSkew bounds how far a `use` timestamp may deviate from
// local time; anything further is treated as a replay.
const NegotiationSkew = 60 * time.Second

// proofOf computes the possession proof: a hash of the ECDH between
// the client's long-term private key and the server's long-term public
// key. ECDH is symmetric, so either side computes the identical value
// from its own private key and the other's public key.
func proofOf(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) (string, error) {
	shared, err := priv.ECDH(pub)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(shared)
	return hex.EncodeToString(sum[:]), nil
}

// NegotiateClient is the client side of protocol negotiation: send
// `(use protocol identity client-pubkey proof timestamp)` and wait for
// the server's `(use protocol server-timestamp)` ack (or a `(bye
// reason)` rejection).
//
// serverLongTermPub is the server's long-term public key, assumed
// already known to the caller out of band (the `rexec` CLI resolves a
// server uuid to this key before the transport layer is ever invoked).
func NegotiateClient(s *Stream, local KeyPair, serverLongTermPub *ecdh.PublicKey, protocol string, timeout time.Duration) error {
	proof, err := proofOf(local.Private, serverLongTermPub)
	if err != nil {
		return twkerr.New(twkerr.NegotiationFailed, "compute proof", err)
	}

	identity := DeriveIdentity(local.Public)
	msg := wire.Lst(
		wire.Sym("use"),
		wire.Sym(protocol),
		wire.Str(string(identity)),
		wire.Str(hex.EncodeToString(local.Public.Bytes())),
		wire.Str(proof),
		wire.Int(time.Now().Unix()),
	)
	if err := s.WriteMessage(msg); err != nil {
		return twkerr.New(twkerr.NegotiationFailed, "write use", err)
	}

	reply, err := readWithTimeout(s, timeout)
	if err != nil {
		return twkerr.New(twkerr.NegotiationFailed, "read reply", err)
	}

	sym, ok := reply.Head()
	if !ok {
		return twkerr.New(twkerr.NegotiationFailed, "malformed reply", nil)
	}
	switch sym {
	case "use":
		if len(reply.Elems) < 2 || reply.Elems[1].Kind != wire.Symbol || reply.Elems[1].Sym != protocol {
			return twkerr.New(twkerr.NegotiationFailed, "protocol mismatch in reply", nil)
		}
		return nil
	case "bye":
		reason := ""
		if len(reply.Elems) > 1 && reply.Elems[1].Kind == wire.String {
			reason = reply.Elems[1].Str
		}
		return twkerr.New(twkerr.NegotiationFailed, "server rejected: "+reason, nil)
	default:
		return twkerr.New(twkerr.NegotiationFailed, "unexpected reply: "+sym, nil)
	}
}

// NegotiatedClient is what the server learns about an accepted client.
type NegotiatedClient struct {
	Protocol string
	Identity Identity
	PubKey   *ecdh.PublicKey
}

// NegotiateServer is the server side of protocol negotiation. supports
// reports whether a named protocol has a handler. Every rejection here
// other than "unsupported protocol" (which gets an explicit bye) returns
// an error without having written anything — negotiation failures close
// silently, leaving it to the caller to close the connection.
func NegotiateServer(s *Stream, local KeyPair, supports func(protocol string) bool, timeout time.Duration) (NegotiatedClient, error) {
	msg, err := readWithTimeout(s, timeout)
	if err != nil {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "read use", err)
	}

	sym, ok := msg.Head()
	if !ok || sym != "use" || len(msg.Elems) != 6 {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "malformed use message", nil)
	}

	protoV, idV, pubV, proofV, tsV := msg.Elems[1], msg.Elems[2], msg.Elems[3], msg.Elems[4], msg.Elems[5]
	if protoV.Kind != wire.Symbol || idV.Kind != wire.String || pubV.Kind != wire.String || proofV.Kind != wire.String || tsV.Kind != wire.Integer {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "malformed use fields", nil)
	}

	if !supports(protoV.Sym) {
		_ = s.WriteMessage(wire.Lst(wire.Sym("bye"), wire.Str("unsupported protocol: "+protoV.Sym)))
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "unsupported protocol: "+protoV.Sym, nil)
	}

	skew := time.Since(time.Unix(tsV.Int, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > NegotiationSkew {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "timestamp outside replay window", nil)
	}

	pubBytes, err := hex.DecodeString(pubV.Str)
	if err != nil {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "malformed client pubkey", err)
	}
	clientPub, err := Curve.NewPublicKey(pubBytes)
	if err != nil {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "invalid client pubkey", err)
	}

	identity := Identity(idV.Str)
	if !identity.MatchesKey(clientPub) {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "identity does not match pubkey", nil)
	}

	wantProof, err := proofOf(local.Private, clientPub)
	if err != nil {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "compute proof", err)
	}
	if wantProof != proofV.Str {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "proof mismatch", nil)
	}

	if err := s.WriteMessage(wire.Lst(wire.Sym("use"), wire.Sym(protoV.Sym), wire.Int(time.Now().Unix()))); err != nil {
		return NegotiatedClient{}, twkerr.New(twkerr.NegotiationFailed, "write ack", err)
	}

	return NegotiatedClient{Protocol: protoV.Sym, Identity: identity, PubKey: clientPub}, nil
}

// readWithTimeout enforces the negotiation deadline around a single
// ReadMessage call. Stream itself has no notion of deadlines (it only
// knows net.Conn), so the conn's own SetReadDeadline is used via the
// local deadliner interface implemented by every real net.Conn.
func readWithTimeout(s *Stream, timeout time.Duration) (wire.Value, error) {
	type deadliner interface {
		SetReadDeadline(time.Time) error
	}
	if d, ok := any(s.conn).(deadliner); ok && timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(timeout))
		defer d.SetReadDeadline(time.Time{})
	}
	v, err := s.ReadMessage()
	if err != nil {
		return wire.Value{}, err
	}
	return v, nil
}
