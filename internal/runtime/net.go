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

package runtime

import (
	"crypto/cipher"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/twinkle-labs/twk/internal/peer"
	"github.com/twinkle-labs/twk/internal/process"
)

// socketPort is the I/O state a process's attached connection exposes:
// the raw conn plus the current reader/writer, which SetStreamCipher
// re-wraps in place mid-session.
type socketPort struct {
	mu   sync.Mutex
	conn net.Conn
	r    io.Reader
	w    io.Writer
}

func (sp *socketPort) Read(p []byte) (int, error) {
	sp.mu.Lock()
	r := sp.r
	sp.mu.Unlock()
	return r.Read(p)
}

func (sp *socketPort) Write(p []byte) (int, error) {
	sp.mu.Lock()
	w := sp.w
	sp.mu.Unlock()
	return w.Write(p)
}

func (rt *Runtime) portOf(pid process.Pid) *socketPort {
	rt.portMu.Lock()
	defer rt.portMu.Unlock()
	return rt.ports[pid]
}

// rawFD extracts the OS descriptor of a connection without duplicating
// it; the value is only valid while the conn stays open, which holds
// here because the port owns the conn for the process's lifetime.
func rawFD(c syscall.Conn) (int, error) {
	sc, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	cerr := sc.Control(func(h uintptr) { fd = int(h) })
	if cerr != nil {
		return 0, cerr
	}
	return fd, nil
}

// OpenTCPServer implements `open-tcp-server(ip, port)`.
func (a *API) OpenTCPServer(ip string, port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
}

// OpenUDPServer implements `open-udp-server(ip, port)`.
func (a *API) OpenUDPServer(ip string, port int) (net.PacketConn, error) {
	return net.ListenPacket("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
}

// Connect implements `connect(ip, port)`: dial, attach the conn as this
// process's socket (so the selector wakes it on readability), and bind
// the socket port.
func (a *API) Connect(ip string, port int) (net.Conn, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	if err := a.SetProcessConn(a.self, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// SetProcessConn attaches an established connection to pid: the socket
// port is bound for OpenSocketInput/OpenSocketOutput, and the raw fd is
// registered with the selector. Accept loops use this to hand an
// inbound conn to the process that will own it.
func (a *API) SetProcessConn(pid process.Pid, conn net.Conn) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return fmt.Errorf("runtime: connection does not expose a descriptor")
	}
	fd, err := rawFD(sc)
	if err != nil {
		return err
	}

	a.rt.portMu.Lock()
	a.rt.ports[pid] = &socketPort{conn: conn, r: conn, w: conn}
	a.rt.portMu.Unlock()

	return a.rt.Sched.SetProcessFD(pid, fd)
}

// OpenSocketInput implements `open-socket-input`: a reader over this
// process's attached connection, honoring any installed stream cipher.
func (a *API) OpenSocketInput() (io.Reader, error) {
	sp := a.rt.portOf(a.self)
	if sp == nil {
		return nil, fmt.Errorf("runtime: process %d has no attached socket", a.self)
	}
	return sp, nil
}

// OpenSocketOutput implements `open-socket-output`.
func (a *API) OpenSocketOutput() (io.Writer, error) {
	sp := a.rt.portOf(a.self)
	if sp == nil {
		return nil, fmt.Errorf("runtime: process %d has no attached socket", a.self)
	}
	return sp, nil
}

// SetStreamCipher implements `set-stream-cipher(port, algo, key, iv)`:
// from this call on, bytes read from the input port are deciphered and
// bytes written to the output port are ciphered. Already-buffered
// plaintext is unaffected, so a session can switch mid-stream exactly
// at a protocol boundary.
func (a *API) SetStreamCipher(algo string, key, iv []byte) error {
	sp := a.rt.portOf(a.self)
	if sp == nil {
		return fmt.Errorf("runtime: process %d has no attached socket", a.self)
	}
	dec, err := peer.NewStreamCipher(algo, key, iv, true)
	if err != nil {
		return err
	}
	enc, err := peer.NewStreamCipher(algo, key, iv, false)
	if err != nil {
		return err
	}

	sp.mu.Lock()
	sp.r = &cipher.StreamReader{S: dec, R: sp.conn}
	sp.w = &cipher.StreamWriter{S: enc, W: sp.conn}
	sp.mu.Unlock()
	return nil
}
