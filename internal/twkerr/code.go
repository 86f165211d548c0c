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

package twkerr

// Code classifies an Error by failure kind, so callers branch on a
// numeric class instead of string-matching messages.
type Code uint16

const (
	// Unknown is the zero value: no classification was assigned.
	Unknown Code = iota

	// MailboxOverflow is returned when a post finds insufficient free
	// capacity.
	MailboxOverflow

	// SlotExhausted is returned when the process table has no free slot.
	SlotExhausted

	// SocketIO wraps a failed read/write on a process's attached fd.
	SocketIO

	// HandshakeFailed covers any failure during the 256-byte handshake
	// exchange.
	HandshakeFailed

	// NegotiationFailed covers a rejected `(use ...)` exchange: bad
	// timestamp, identity mismatch, bad proof, unknown protocol.
	NegotiationFailed

	// DecodeFailed covers a malformed wire message.
	DecodeFailed

	// ContinuationFault covers a panic or error surfaced by a process
	// continuation.
	ContinuationFault

	// SerializeFailed covers a did-request reply whose payload could not
	// be encoded to the wire format.
	SerializeFailed
)

// String renders the code for log lines and (bye <reason>) messages.
func (c Code) String() string {
	switch c {
	case MailboxOverflow:
		return "mailbox-overflow"
	case SlotExhausted:
		return "slot-exhausted"
	case SocketIO:
		return "socket-io"
	case HandshakeFailed:
		return "handshake-failed"
	case NegotiationFailed:
		return "negotiation-failed"
	case DecodeFailed:
		return "decode-failed"
	case ContinuationFault:
		return "continuation-fault"
	case SerializeFailed:
		return "serialize-failed"
	default:
		return "unknown"
	}
}
