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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/twinkle-labs/twk/internal/wire"
)

// paramValue decodes a CLI parameter: integers become Integer atoms,
// everything else a String.
func paramValue(s string) wire.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return wire.Int(n)
	}
	return wire.Str(s)
}

func methodMessage(method string, params []string) wire.Value {
	elems := []wire.Value{wire.Sym(method)}
	for _, p := range params {
		elems = append(elems, paramValue(p))
	}
	return wire.Lst(elems...)
}

// execCommand runs one program method in this process and prints the
// result term.
func (a *app) execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <program> <method> [params]",
		Short: "invoke a program method locally",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, ok := builtinPrograms()[args[0]]
			if !ok {
				return fmt.Errorf("unknown program %q", args[0])
			}
			opts := ParseOptions(args[2:])
			result, err := prog.Call(a, methodMessage(args[1], opts.Positional))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}
}
