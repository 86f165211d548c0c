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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twinkle-labs/twk/internal/twkerr"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

// DefaultIdleTimeout is how long a channel may stay silent before it is
// closed.
const DefaultIdleTimeout = 60 * time.Second

// keepAliveMsg is the reserved liveness message; it resets the peer's
// idle deadline and is never delivered to the handler.
var keepAliveMsg = wire.Lst(wire.Sym("keep-alive"))

// Deliver receives one decoded protocol-exchange message, typically
// posting it into the owning process's mailbox.
type Deliver func(wire.Value)

// Session drives protocol exchange over an already-negotiated Stream:
// it reads inbound messages and hands every one but
// `(keep-alive)` to Deliver, answers idleness with outbound
// `(keep-alive)` messages, and closes the connection if nothing at all
// (including keep-alives) arrives within IdleTimeout.
type Session struct {
	stream      *Stream
	idleTimeout time.Duration
	log         *twklog.Logger

	lastRecv atomic.Int64 // unix nanos
	lastSend atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps stream for protocol exchange. idleTimeout<=0 uses
// DefaultIdleTimeout.
func NewSession(stream *Stream, idleTimeout time.Duration, log *twklog.Logger) *Session {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	s := &Session{stream: stream, idleTimeout: idleTimeout, log: log}
	now := time.Now().UnixNano()
	s.lastRecv.Store(now)
	s.lastSend.Store(now)
	return s
}

// Send writes one outbound protocol-exchange message.
func (s *Session) Send(v wire.Value) error {
	if err := s.stream.WriteMessage(v); err != nil {
		return err
	}
	s.lastSend.Store(time.Now().UnixNano())
	return nil
}

// Run blocks, pumping inbound messages to deliver and outbound
// keep-alives on idleness, until ctx is cancelled, the idle timeout
// passes, or the connection fails; deliver must not panic. A decode
// error sends `(bye "decode-failed")` before the connection is closed.
func (s *Session) Run(ctx context.Context, deliver Deliver) error {
	readErrCh := make(chan error, 1)
	msgCh := make(chan wire.Value)

	go func() {
		for {
			v, err := s.stream.ReadMessage()
			if err != nil {
				readErrCh <- err
				return
			}
			select {
			case msgCh <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.closeWith(ctx.Err())

		case err := <-readErrCh:
			if errors.Is(err, wire.ErrSyntax) {
				s.Bye(twkerr.DecodeFailed.String()) // malformed inbound message
			}
			return s.closeWith(err) // EOF or socket error: connection lost mid-protocol

		case v := <-msgCh:
			s.lastRecv.Store(time.Now().UnixNano())
			if sym, ok := v.Head(); ok && sym == "keep-alive" {
				continue // resets idle deadline only, never delivered
			}
			deliver(v)

		case <-ticker.C:
			now := time.Now()
			lastRecv := time.Unix(0, s.lastRecv.Load())
			if now.Sub(lastRecv) > s.idleTimeout {
				return s.closeWith(errIdleTimeout)
			}
			lastSend := time.Unix(0, s.lastSend.Load())
			if now.Sub(lastSend) > s.idleTimeout/2 {
				_ = s.Send(keepAliveMsg)
			}
		}
	}
}

// Bye sends a `(bye reason)` message and closes; used on any decode
// error, cipher error, or protocol violation.
func (s *Session) Bye(reason string) {
	_ = s.Send(wire.Lst(wire.Sym("bye"), wire.Str(reason)))
	_ = s.stream.Close()
}

func (s *Session) closeWith(err error) error {
	s.closeOnce.Do(func() {
		s.closeErr = err
		_ = s.stream.Close()
	})
	return s.closeErr
}

var errIdleTimeout = &timeoutError{"peer: idle timeout"}

type timeoutError struct{ msg string }

func (e *timeoutError) Error() string { return e.msg }
func (e *timeoutError) Timeout() bool { return true }
