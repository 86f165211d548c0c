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

package main

import (
	"strings"
)

// Options is the decoded form of a subcommand's trailing arguments:
//
//	-sym            a bare symbol flag
//	--name value    a single-valued option
//	---name a b c   consumes the rest of the arguments as a list
//
// Anything else is positional.
type Options struct {
	Positional []string
	Symbols    []string
	Values     map[string]string
	Lists      map[string][]string
}

// HasSymbol reports whether the bare flag -name was given.
func (o Options) HasSymbol(name string) bool {
	for _, s := range o.Symbols {
		if s == name {
			return true
		}
	}
	return false
}

// Value returns the --name option, or def if unset.
func (o Options) Value(name, def string) string {
	if v, ok := o.Values[name]; ok {
		return v
	}
	return def
}

// ParseOptions splits args by the dash-count grammar. A ---name list
// swallows every remaining argument, so it can only meaningfully appear
// last.
func ParseOptions(args []string) Options {
	o := Options{
		Values: make(map[string]string),
		Lists:  make(map[string][]string),
	}
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.HasPrefix(a, "---"):
			name := a[3:]
			o.Lists[name] = append([]string(nil), args[i+1:]...)
			return o
		case strings.HasPrefix(a, "--"):
			name := a[2:]
			if i+1 < len(args) {
				o.Values[name] = args[i+1]
				i++
			} else {
				o.Values[name] = ""
			}
		case strings.HasPrefix(a, "-") && len(a) > 1:
			o.Symbols = append(o.Symbols, a[1:])
		default:
			o.Positional = append(o.Positional, a)
		}
	}
	return o
}
