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

import (
	"errors"
	"fmt"
	"runtime"
)

// Error is a chainable, coded error: a Code classification, a message,
// an optional parent, and the frame it was built at.
type Error interface {
	error
	Code() Code
	Parent() error
	Frame() runtime.Frame
	Unwrap() error
}

type werr struct {
	code   Code
	msg    string
	parent error
	frame  runtime.Frame
}

func (e *werr) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.parent)
	}
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.code, e.msg)
	}
	return e.code.String()
}

func (e *werr) Code() Code           { return e.code }
func (e *werr) Parent() error        { return e.parent }
func (e *werr) Frame() runtime.Frame { return e.frame }
func (e *werr) Unwrap() error        { return e.parent }

// New builds an Error of the given code, message and optional parent.
// The caller's frame is captured at construction for diagnostics.
func New(code Code, msg string, parent error) Error {
	e := &werr{code: code, msg: msg, parent: parent}
	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.frame = runtime.Frame{Function: fn.Name(), File: file, Line: line}
		}
	}
	return e
}

// Is reports whether err carries the given Code, unwrapping through the
// parent chain with the standard errors package.
func Is(err error, code Code) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code() == code
	}
	return false
}
