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
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/peer"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

// Full Dial/Accept through all three stages, then several ping/pong
// exchanges over the negotiated session.
var _ = Describe("Dial/Accept end to end", func() {
	It("completes handshake, negotiation, and exchanges protocol messages", func() {
		clientConn, serverConn := tcpPipe()
		defer clientConn.Close()
		defer serverConn.Close()

		clientID, _ := peer.GenerateKeyPair()
		serverID, _ := peer.GenerateKeyPair()
		log := twklog.New(twklog.NilLevel)

		clientCfg := peer.Config{Identity: clientID, Log: log}
		serverCfg := peer.Config{Identity: serverID, Log: log}

		type dialResult struct {
			sess *peer.Session
			err  error
		}
		type acceptResult struct {
			sess *peer.Session
			nc   peer.NegotiatedClient
			err  error
		}
		dialCh := make(chan dialResult, 1)
		acceptCh := make(chan acceptResult, 1)

		go func() {
			sess, err := peer.Dial(clientConn, clientCfg, serverID.Public, "ping")
			dialCh <- dialResult{sess, err}
		}()
		go func() {
			sess, nc, err := peer.Accept(serverConn, serverCfg, func(p string) bool { return p == "ping" })
			acceptCh <- acceptResult{sess, nc, err}
		}()

		dr := <-dialCh
		ar := <-acceptCh
		Expect(dr.err).NotTo(HaveOccurred())
		Expect(ar.err).NotTo(HaveOccurred())
		Expect(ar.nc.Identity).To(Equal(peer.DeriveIdentity(clientID.Public)))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serverDone := make(chan struct{})
		go func() {
			defer close(serverDone)
			_ = ar.sess.Run(ctx, func(v wire.Value) {
				sym, _ := v.Head()
				if sym == "ping" && len(v.Elems) == 2 {
					_ = ar.sess.Send(wire.Lst(wire.Sym("pong"), v.Elems[1]))
				}
			})
		}()

		replies := make(chan wire.Value, 16)
		clientDone := make(chan struct{})
		go func() {
			defer close(clientDone)
			_ = dr.sess.Run(ctx, func(v wire.Value) {
				replies <- v
			})
		}()

		const rounds = 10
		for i := 0; i < rounds; i++ {
			Expect(dr.sess.Send(wire.Lst(wire.Sym("ping"), wire.Int(int64(i))))).To(Succeed())
			var got wire.Value
			Eventually(replies, 2*time.Second).Should(Receive(&got))
			sym, ok := got.Head()
			Expect(ok).To(BeTrue())
			Expect(sym).To(Equal("pong"))
			Expect(got.Elems[1].Int).To(Equal(int64(i)))
		}

		cancel()
		Eventually(serverDone, time.Second).Should(BeClosed())
		Eventually(clientDone, time.Second).Should(BeClosed())
	})
})
