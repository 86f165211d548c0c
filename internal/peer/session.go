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
	"context"
	"crypto/ecdh"
	"net"
	"time"

	"github.com/twinkle-labs/twk/internal/twkerr"
	"github.com/twinkle-labs/twk/internal/twklog"
)

// HandshakeTimeout bounds the blob exchange.
const HandshakeTimeout = 10 * time.Second

// Config bundles the tuning knobs a Dial/Accept call needs, sourced from
// internal/twkconfig.Tuning by the caller.
type Config struct {
	Identity      KeyPair
	HandshakeTO   time.Duration
	NegotiationTO time.Duration
	IdleTimeout   time.Duration
	Log           *twklog.Logger
}

func (c Config) withDefaults() Config {
	if c.HandshakeTO <= 0 {
		c.HandshakeTO = HandshakeTimeout
	}
	if c.NegotiationTO <= 0 {
		c.NegotiationTO = NegotiationSkew
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

// Dial is the outbound half of a secure session: it runs the handshake
// then negotiation as the client, and returns a ready-to-Run Session.
func Dial(conn net.Conn, cfg Config, serverLongTermPub *ecdh.PublicKey, protocol string) (*Session, error) {
	cfg = cfg.withDefaults()

	hs, err := DoHandshake(conn, cfg.HandshakeTO)
	if err != nil {
		_ = conn.Close() // handshake failures close without sending anything
		return nil, err
	}

	stream := NewStream(conn, hs.Cipher)
	if err := NegotiateClient(stream, cfg.Identity, serverLongTermPub, protocol, cfg.NegotiationTO); err != nil {
		_ = stream.Close()
		return nil, err
	}

	return NewSession(stream, cfg.IdleTimeout, cfg.Log), nil
}

// Accept is the inbound half: it accepts a connection and runs the same
// two stages as the server. supports reports whether a named protocol has
// a registered handler; on success it returns the Session plus what the
// server learned about the connecting client.
func Accept(conn net.Conn, cfg Config, supports func(string) bool) (*Session, NegotiatedClient, error) {
	cfg = cfg.withDefaults()

	hs, err := DoHandshake(conn, cfg.HandshakeTO)
	if err != nil {
		_ = conn.Close()
		return nil, NegotiatedClient{}, err
	}

	stream := NewStream(conn, hs.Cipher)
	nc, err := NegotiateServer(stream, cfg.Identity, supports, cfg.NegotiationTO)
	if err != nil {
		_ = stream.Close()
		return nil, NegotiatedClient{}, err
	}

	return NewSession(stream, cfg.IdleTimeout, cfg.Log), nc, nil
}

// RunPeer is the convenience entry point a peer-handling process's
// Continuation uses: it drives Session.Run under ctx and reports the
// terminal condition that ended it (EOF, idle timeout, or another read
// failure) as a twkerr.SocketIO-coded error, so the owning process can
// wind down and its parent learn why. It returns nil when ctx was
// cancelled.
func RunPeer(ctx context.Context, sess *Session, deliver Deliver) error {
	if err := sess.Run(ctx, deliver); err != nil && ctx.Err() == nil {
		return twkerr.New(twkerr.SocketIO, "peer session ended", err)
	}
	return nil
}
