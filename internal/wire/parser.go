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

package wire

import (
	"errors"
	"strconv"
)

// errIncomplete signals that the buffered bytes do not yet contain a
// balanced top-level expression. Decoder.Next never returns it; Decode
// does, when b ends inside an expression.
var errIncomplete = errors.New("wire: incomplete expression")

// ErrSyntax reports malformed input that can never become valid by
// feeding more bytes.
var ErrSyntax = errors.New("wire: syntax error")

// Decoder accumulates bytes fed by a transport (mailbox drain or peer
// socket read) and extracts balanced top-level expressions one at a
// time; it never consumes past the end of a complete expression.
type Decoder struct {
	buf []byte
}

// Feed appends newly-read bytes to the decode buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next attempts to decode one top-level Value from the buffered bytes.
// ok is false (with a nil error) if more bytes are needed; err is
// non-nil only for malformed input that can never parse.
func (d *Decoder) Next() (v Value, ok bool, err error) {
	skip := skipSpace(d.buf, 0)
	if skip >= len(d.buf) {
		d.buf = d.buf[skip:]
		return Value{}, false, nil
	}

	val, n, perr := parseValue(d.buf, skip)
	if perr == errIncomplete {
		return Value{}, false, nil
	}
	if perr != nil {
		return Value{}, false, perr
	}

	d.buf = d.buf[n:]
	return val, true, nil
}

// Buffered reports how many undecoded bytes remain (diagnostic only).
func (d *Decoder) Buffered() int { return len(d.buf) }

// Decode parses the first complete Value in b (used for mailbox
// payloads, which are whole-message units), so the end of b also ends a
// trailing bare atom. Bytes after that first Value are not examined.
func Decode(b []byte) (Value, error) {
	var d Decoder
	d.Feed(b)
	d.Feed([]byte{' '}) // end of input delimits an atom
	v, ok, err := d.Next()
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, errIncomplete
	}
	return v, nil
}

// Encode renders v to its textual wire bytes.
func Encode(v Value) []byte {
	return []byte(v.String())
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func parseValue(b []byte, i int) (Value, int, error) {
	if i >= len(b) {
		return Value{}, i, errIncomplete
	}
	switch {
	case b[i] == '(':
		return parseList(b, i)
	case b[i] == '"':
		return parseString(b, i)
	case b[i] == '-' || isDigit(b[i]):
		if v, n, ok := tryParseInt(b, i); ok {
			return v, n, nil
		}
		return parseSymbol(b, i)
	default:
		return parseSymbol(b, i)
	}
}

func parseList(b []byte, i int) (Value, int, error) {
	i++ // consume '('
	var elems []Value
	for {
		i = skipSpace(b, i)
		if i >= len(b) {
			return Value{}, i, errIncomplete
		}
		if b[i] == ')' {
			return Value{Kind: List, Elems: elems}, i + 1, nil
		}
		v, n, err := parseValue(b, i)
		if err != nil {
			return Value{}, i, err
		}
		elems = append(elems, v)
		i = n
	}
}

func parseString(b []byte, i int) (Value, int, error) {
	i++ // consume opening quote
	start := i
	var out []byte
	for i < len(b) {
		c := b[i]
		if c == '"' {
			return Value{Kind: String, Str: string(out)}, i + 1, nil
		}
		if c == '\\' {
			if i+1 >= len(b) {
				return Value{}, start, errIncomplete
			}
			switch b[i+1] {
			case 'n':
				out = append(out, '\n')
			case '"', '\\':
				out = append(out, b[i+1])
			default:
				out = append(out, b[i+1])
			}
			i += 2
			continue
		}
		out = append(out, c)
		i++
	}
	return Value{}, start, errIncomplete
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSymbolByte(c byte) bool {
	return !isSpace(c) && c != '(' && c != ')' && c != '"'
}

func tryParseInt(b []byte, i int) (Value, int, bool) {
	start := i
	if i < len(b) && b[i] == '-' {
		i++
	}
	digitsStart := i
	for i < len(b) && isDigit(b[i]) {
		i++
	}
	if i == digitsStart {
		return Value{}, start, false
	}
	if i < len(b) && isSymbolByte(b[i]) {
		return Value{}, start, false // e.g. "123abc" is a symbol, not an int
	}
	n, err := strconv.ParseInt(string(b[start:i]), 10, 64)
	if err != nil {
		return Value{}, start, false
	}
	return Value{Kind: Integer, Int: n}, i, true
}

func parseSymbol(b []byte, i int) (Value, int, error) {
	start := i
	for i < len(b) && isSymbolByte(b[i]) {
		i++
	}
	if i == start {
		return Value{}, i, ErrSyntax
	}
	if i == len(b) {
		return Value{}, start, errIncomplete // might still be mid-symbol
	}
	return Value{Kind: Symbol, Sym: string(b[start:i])}, i, nil
}
