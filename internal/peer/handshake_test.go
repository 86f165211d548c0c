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
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinkle-labs/twk/internal/peer"
)

// tcpPipe returns a connected client/server pair over 127.0.0.1. A real
// socket (unlike net.Pipe, which is unbuffered and lockstep) has enough
// kernel buffer for a 256-byte handshake blob, so both sides can write
// their blob before either reads the peer's — exactly what the
// handshake's symmetric exchange relies on.
func tcpPipe() (client, server net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer ln.Close()

	acceptCh := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		acceptCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	Expect(err).NotTo(HaveOccurred())
	server = <-acceptCh
	Expect(server).NotTo(BeNil())
	return client, server
}

var _ = Describe("DoHandshake", func() {
	It("derives matching session ciphers on both ends of a connection", func() {
		clientConn, serverConn := tcpPipe()
		defer clientConn.Close()
		defer serverConn.Close()

		type result struct {
			res peer.HandshakeResult
			err error
		}
		clientCh := make(chan result, 1)
		serverCh := make(chan result, 1)

		go func() {
			r, err := peer.DoHandshake(clientConn, time.Second)
			clientCh <- result{r, err}
		}()
		go func() {
			r, err := peer.DoHandshake(serverConn, time.Second)
			serverCh <- result{r, err}
		}()

		cr := <-clientCh
		sr := <-serverCh
		Expect(cr.err).NotTo(HaveOccurred())
		Expect(sr.err).NotTo(HaveOccurred())

		plain := []byte("(ping 1)")
		ct := make([]byte, len(plain))
		cr.res.Cipher.Encrypt.XORKeyStream(ct, plain)

		pt := make([]byte, len(ct))
		sr.res.Cipher.Decrypt.XORKeyStream(pt, ct)

		Expect(pt).To(Equal(plain))
	})
})
