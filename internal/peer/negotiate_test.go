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

package peer_test

import (
	"encoding/hex"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/peer"
	"github.com/twinkle-labs/twk/internal/wire"
)

var _ = Describe("Negotiate", func() {
	It("accepts a client that proves possession of its long-term key", func() {
		clientConn, serverConn := tcpPipe()
		defer clientConn.Close()
		defer serverConn.Close()

		clientID, err := peer.GenerateKeyPair()
		Expect(err).NotTo(HaveOccurred())
		serverID, err := peer.GenerateKeyPair()
		Expect(err).NotTo(HaveOccurred())

		type hsResult struct {
			res peer.HandshakeResult
			err error
		}
		cCh, sCh := make(chan hsResult, 1), make(chan hsResult, 1)
		go func() { r, e := peer.DoHandshake(clientConn, time.Second); cCh <- hsResult{r, e} }()
		go func() { r, e := peer.DoHandshake(serverConn, time.Second); sCh <- hsResult{r, e} }()
		chs, shs := <-cCh, <-sCh
		Expect(chs.err).NotTo(HaveOccurred())
		Expect(shs.err).NotTo(HaveOccurred())

		clientStream := peer.NewStream(clientConn, chs.res.Cipher)
		serverStream := peer.NewStream(serverConn, shs.res.Cipher)

		supports := func(proto string) bool { return proto == "ping" }

		type negResult struct {
			nc  peer.NegotiatedClient
			err error
		}
		negCh := make(chan negResult, 1)
		go func() {
			nc, err := peer.NegotiateServer(serverStream, serverID, supports, 2*time.Second)
			negCh <- negResult{nc, err}
		}()

		err = peer.NegotiateClient(clientStream, clientID, serverID.Public, "ping", 2*time.Second)
		Expect(err).NotTo(HaveOccurred())

		nr := <-negCh
		Expect(nr.err).NotTo(HaveOccurred())
		Expect(nr.nc.Protocol).To(Equal("ping"))
		Expect(nr.nc.Identity).To(Equal(peer.DeriveIdentity(clientID.Public)))
	})

	It("rejects an unsupported protocol with a bye and an error", func() {
		clientConn, serverConn := tcpPipe()
		defer clientConn.Close()
		defer serverConn.Close()

		clientID, _ := peer.GenerateKeyPair()
		serverID, _ := peer.GenerateKeyPair()

		type hsResult struct {
			res peer.HandshakeResult
			err error
		}
		cCh, sCh := make(chan hsResult, 1), make(chan hsResult, 1)
		go func() { r, e := peer.DoHandshake(clientConn, time.Second); cCh <- hsResult{r, e} }()
		go func() { r, e := peer.DoHandshake(serverConn, time.Second); sCh <- hsResult{r, e} }()
		chs, shs := <-cCh, <-sCh

		clientStream := peer.NewStream(clientConn, chs.res.Cipher)
		serverStream := peer.NewStream(serverConn, shs.res.Cipher)

		supports := func(proto string) bool { return false }

		errCh := make(chan error, 1)
		go func() {
			_, err := peer.NegotiateServer(serverStream, serverID, supports, 2*time.Second)
			errCh <- err
		}()

		clientErr := peer.NegotiateClient(clientStream, clientID, serverID.Public, "unknown-protocol", 2*time.Second)
		Expect(clientErr).To(HaveOccurred())
		Expect(<-errCh).To(HaveOccurred())
	})

	// A replayed `use` message: the timestamp is far outside the replay
	// window but every other field is valid.
	It("rejects a use message whose timestamp is outside the 60s replay window", func() {
		clientConn, serverConn := tcpPipe()
		defer clientConn.Close()
		defer serverConn.Close()

		clientID, _ := peer.GenerateKeyPair()
		serverID, _ := peer.GenerateKeyPair()

		type hsResult struct {
			res peer.HandshakeResult
			err error
		}
		cCh, sCh := make(chan hsResult, 1), make(chan hsResult, 1)
		go func() { r, e := peer.DoHandshake(clientConn, time.Second); cCh <- hsResult{r, e} }()
		go func() { r, e := peer.DoHandshake(serverConn, time.Second); sCh <- hsResult{r, e} }()
		chs, shs := <-cCh, <-sCh

		clientStream := peer.NewStream(clientConn, chs.res.Cipher)
		serverStream := peer.NewStream(serverConn, shs.res.Cipher)

		errCh := make(chan error, 1)
		go func() {
			_, err := peer.NegotiateServer(serverStream, serverID, func(string) bool { return true }, 2*time.Second)
			errCh <- err
		}()

		stale := time.Now().Add(-61 * time.Second).Unix()
		msg := wire.Lst(
			wire.Sym("use"),
			wire.Sym("ping"),
			wire.Str(string(peer.DeriveIdentity(clientID.Public))),
			wire.Str(hex.EncodeToString(clientID.Public.Bytes())),
			wire.Str("irrelevant-because-timestamp-fails-first"),
			wire.Int(stale),
		)
		Expect(clientStream.WriteMessage(msg)).To(Succeed())

		Expect(<-errCh).To(HaveOccurred())
	})
})
