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
	"fmt"
	"os"
	"time"

	"github.com/twinkle-labs/twk/internal/blobstore"
	"github.com/twinkle-labs/twk/internal/wire"
)

// Method is one invocable operation of a program. args carries the
// decoded parameters (everything after the method symbol).
type Method func(a *app, args []wire.Value) (wire.Value, error)

// Program is a named bundle of methods, servable both locally (exec)
// and as a peer protocol (launch/rexec).
type Program struct {
	Name    string
	Methods map[string]Method
}

// Call dispatches one decoded `(method args...)` message.
func (p Program) Call(a *app, msg wire.Value) (wire.Value, error) {
	name, ok := msg.Head()
	if !ok {
		return wire.Value{}, fmt.Errorf("%s: message is not a list", p.Name)
	}
	m, ok := p.Methods[name]
	if !ok {
		return wire.Value{}, fmt.Errorf("%s: unknown method %q", p.Name, name)
	}
	return m(a, msg.Elems[1:])
}

func builtinPrograms() map[string]Program {
	return map[string]Program{
		"ping": {
			Name: "ping",
			Methods: map[string]Method{
				// (ping T0) -> (pong T0 T1)
				"ping": func(a *app, args []wire.Value) (wire.Value, error) {
					t0 := wire.Int(0)
					if len(args) > 0 {
						t0 = args[0]
					}
					return wire.Lst(wire.Sym("pong"), t0, wire.Int(time.Now().UnixMilli())), nil
				},
			},
		},
		"echo": {
			Name: "echo",
			Methods: map[string]Method{
				"echo": func(a *app, args []wire.Value) (wire.Value, error) {
					elems := append([]wire.Value{wire.Sym("echo")}, args...)
					return wire.Lst(elems...), nil
				},
			},
		},
		"blob": {
			Name: "blob",
			Methods: map[string]Method{
				// (put "path") -> (blob "hash")
				"put": func(a *app, args []wire.Value) (wire.Value, error) {
					if len(args) != 1 || args[0].Kind != wire.String {
						return wire.Value{}, fmt.Errorf("blob put: want one path string")
					}
					f, err := os.Open(args[0].Str)
					if err != nil {
						return wire.Value{}, err
					}
					defer f.Close()
					fi, err := f.Stat()
					if err != nil {
						return wire.Value{}, err
					}
					hash, err := blobstore.New(a.paths).Put(f, fi.Size(), true)
					if err != nil {
						return wire.Value{}, err
					}
					return wire.Lst(wire.Sym("blob"), wire.Str(hash)), nil
				},
				// (stat "hash") -> (blob "hash" "path") or (error "not found")
				"stat": func(a *app, args []wire.Value) (wire.Value, error) {
					if len(args) != 1 || args[0].Kind != wire.String {
						return wire.Value{}, fmt.Errorf("blob stat: want one hash string")
					}
					st := blobstore.New(a.paths)
					if !st.Exists(args[0].Str) {
						return wire.Lst(wire.Sym("error"), wire.Str("not found")), nil
					}
					p, err := st.PathFor(args[0].Str)
					if err != nil {
						return wire.Value{}, err
					}
					return wire.Lst(wire.Sym("blob"), wire.Str(args[0].Str), wire.Str(p)), nil
				},
			},
		},
	}
}
