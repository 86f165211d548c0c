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

// Package wire implements the textual message encoding shared by
// mailboxes and the peer transport: messages are lists and atoms in a
// parenthesized syntax, delimited by balance — the decoder stops at a
// balanced top-level expression.
//
// The grammar is bespoke to this runtime's message format (atoms,
// strings, integers, parenthesized lists), not a general-purpose data
// format a library like encoding/json or a TOML/YAML parser could stand
// in for, so the codec is hand-written against the standard library.
package wire

import "fmt"

// Kind discriminates the tagged union a decoded Value holds.
type Kind uint8

const (
	Symbol Kind = iota
	Integer
	String
	List
)

// Value is a decoded message term: an atom (Symbol/Integer/String) or a
// List of Values.
type Value struct {
	Kind Kind
	Sym  string  // valid when Kind == Symbol
	Int  int64   // valid when Kind == Integer
	Str  string  // valid when Kind == String
	Elems []Value // valid when Kind == List
}

// Sym constructs a symbol atom.
func Sym(s string) Value { return Value{Kind: Symbol, Sym: s} }

// Int constructs an integer atom.
func Int(n int64) Value { return Value{Kind: Integer, Int: n} }

// Str constructs a string atom.
func Str(s string) Value { return Value{Kind: String, Str: s} }

// Lst constructs a list from the given elements.
func Lst(elems ...Value) Value { return Value{Kind: List, Elems: elems} }

// Head returns the leading symbol of a list Value, used by
// internal/route to dispatch messages by their first element.
func (v Value) Head() (string, bool) {
	if v.Kind != List || len(v.Elems) == 0 {
		return "", false
	}
	return v.Elems[0].Sym, v.Elems[0].Kind == Symbol
}

// String implements the printer half: render a Value back to its
// textual wire form.
func (v Value) String() string {
	switch v.Kind {
	case Symbol:
		return v.Sym
	case Integer:
		return fmt.Sprintf("%d", v.Int)
	case String:
		return quoteString(v.Str)
	case List:
		out := "("
		for i, e := range v.Elems {
			if i > 0 {
				out += " "
			}
			out += e.String()
		}
		return out + ")"
	default:
		return ""
	}
}

func quoteString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	out = append(out, '"')
	return string(out)
}
