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

// twk is the runtime's command line: launch a named program under the
// scheduler, execute a program method locally, execute one remotely
// over the secure peer transport, or run a named self-test.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twinkle-labs/twk/internal/twkconfig"
	"github.com/twinkle-labs/twk/internal/twklog"
)

type app struct {
	paths  twkconfig.Paths
	tuning twkconfig.Tuning
	log    *twklog.Logger
}

// setup resolves TWK_DIST/TWK_VAR, ensures the on-disk layout, and
// loads tuning from an optional twk.yaml. Every subcommand starts here.
func (a *app) setup() error {
	p, err := twkconfig.ResolvePaths()
	if err != nil {
		return err
	}
	if err := p.EnsureLayout(); err != nil {
		return err
	}

	a.paths = p
	a.log = twklog.New(twklog.InfoLevel)

	mgr, tuning, err := twkconfig.NewManager(p, a.log)
	if err != nil {
		return err
	}
	a.tuning = tuning
	a.log.SetLevel(twklog.ParseLevel(tuning.LogLevel))
	mgr.Watch(func(t twkconfig.Tuning) {
		a.log.SetLevel(twklog.ParseLevel(t.LogLevel))
	})
	return nil
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "twk",
		Short:         "cooperative process runtime with a secure peer transport",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup()
	}

	root.AddCommand(
		a.launchCommand(),
		a.execCommand(),
		a.rexecCommand(),
		a.testCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "twk:", err)
		os.Exit(1)
	}
}
