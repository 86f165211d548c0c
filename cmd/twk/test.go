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
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/twinkle-labs/twk/internal/mailbox"
	"github.com/twinkle-labs/twk/internal/peer"
	"github.com/twinkle-labs/twk/internal/process"
	rt "github.com/twinkle-labs/twk/internal/runtime"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

// testCommand runs one built-in self-test end to end. These exercise
// live sockets and the real scheduler, so they double as smoke tests on
// a freshly deployed node.
func (a *app) testCommand() *cobra.Command {
	tests := map[string]func(*app) error{
		"mailbox":  testMailboxOverflow,
		"cascade":  testCascadeShutdown,
		"pingpong": testPingPong,
	}
	names := make([]string, 0, len(tests))
	for n := range tests {
		names = append(names, n)
	}
	sort.Strings(names)

	return &cobra.Command{
		Use:       "test <name>",
		Short:     fmt.Sprintf("run a built-in self-test (%v)", names),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, ok := tests[args[0]]
			if !ok {
				return fmt.Errorf("unknown test %q (have %v)", args[0], names)
			}
			if err := fn(a); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), args[0], "ok")
			return nil
		},
	}
}

// testMailboxOverflow posts 4 KiB payloads into a mailbox nobody
// drains until Post refuses, and checks occupancy stayed under the
// ceiling the whole time.
func testMailboxOverflow(a *app) error {
	mb := mailbox.New(4096, a.tuning.MaxMboxSize, func() bool { return false }, func() {})
	payload := make([]byte, 4096)

	posts := 0
	for mb.Post(payload) {
		posts++
		if mb.Len() > a.tuning.MaxMboxSize {
			return fmt.Errorf("occupancy %d exceeded ceiling %d", mb.Len(), a.tuning.MaxMboxSize)
		}
		if posts > a.tuning.MaxMboxSize/len(payload)+1 {
			return fmt.Errorf("post never failed after %d appends", posts)
		}
	}
	if posts == 0 {
		return fmt.Errorf("first post failed outright")
	}
	return nil
}

// testCascadeShutdown spawns a parent with three children (one exits,
// one waits for a quit message, one has a grandchild) and verifies the
// whole tree drains to empty.
func testCascadeShutdown(a *app) error {
	runtime, err := rt.New(a.paths, a.tuning, a.log, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- runtime.Run(ctx) }()

	exitOnQuit := func(p *process.Process) process.Directive {
		buf := make([]byte, 256)
		if n := p.Mailbox.Drain(buf); n > 0 {
			if v, err := wire.Decode(buf[:n]); err == nil {
				if sym, _ := v.Head(); sym == "quit" {
					return rt.Exit()
				}
			}
		}
		return rt.Wait()
	}

	parent, err := runtime.Spawn("parent", process.NoPid, true, twklog.WarnLevel, exitOnQuit)
	if err != nil {
		return err
	}
	childA, err := runtime.Spawn("a", parent.Pid, false, twklog.WarnLevel,
		func(p *process.Process) process.Directive { return rt.Exit() })
	if err != nil {
		return err
	}
	childB, err := runtime.Spawn("b", parent.Pid, false, twklog.WarnLevel, exitOnQuit)
	if err != nil {
		return err
	}
	childC, err := runtime.Spawn("c", parent.Pid, false, twklog.WarnLevel, exitOnQuit)
	if err != nil {
		return err
	}
	if _, err := runtime.Spawn("g", childC.Pid, false, twklog.WarnLevel,
		func(p *process.Process) process.Directive { return rt.Exit() }); err != nil {
		return err
	}

	quit := wire.Lst(wire.Sym("quit"))
	for _, pid := range []process.Pid{childB.Pid, childC.Pid, parent.Pid} {
		if !runtime.Router.SendMessage(pid, quit) {
			return fmt.Errorf("send quit to %d failed", pid)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.Table.Count() == 0 {
			cancel()
			<-runDone
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("tree did not drain: %d slots still allocated (a=%v)",
		runtime.Table.Count(), runtime.Table.Exists(childA.Pid))
}

// testPingPong brings up a real server on loopback with a fresh
// keypair, pins it, and drives ten ping/pong exchanges through the full
// secure transport.
func testPingPong(a *app) error {
	serverKeys, err := peer.GenerateKeyPair()
	if err != nil {
		return err
	}
	clientKeys, err := peer.GenerateKeyPair()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	defer ln.Close()

	cfg := peer.Config{
		Identity:      serverKeys,
		HandshakeTO:   a.tuning.HandshakeTO,
		NegotiationTO: a.tuning.NegotiationTO,
		IdleTimeout:   a.tuning.IdleTimeout,
		Log:           a.log,
	}

	serverErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		sess, _, err := peer.Accept(conn, cfg, func(name string) bool { return name == "ping" })
		if err != nil {
			serverErr <- err
			return
		}
		prog := builtinPrograms()["ping"]
		serverErr <- peer.RunPeer(context.Background(), sess, func(msg wire.Value) {
			if sym, _ := msg.Head(); sym == "bye" {
				return
			}
			result, err := prog.Call(a, msg)
			if err != nil {
				result = wire.Lst(wire.Sym("error"), wire.Str(err.Error()))
			}
			_ = sess.Send(result)
		})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return err
	}
	clientCfg := cfg
	clientCfg.Identity = clientKeys
	sess, err := peer.Dial(conn, clientCfg, serverKeys.Public, "ping")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pongs := make(chan wire.Value, 16)
	go func() {
		_ = peer.RunPeer(ctx, sess, func(msg wire.Value) { pongs <- msg })
	}()

	for i := 0; i < 10; i++ {
		t0 := time.Now().UnixMilli()
		if err := sess.Send(wire.Lst(wire.Sym("ping"), wire.Int(t0))); err != nil {
			return err
		}
		select {
		case pong := <-pongs:
			sym, _ := pong.Head()
			if sym != "pong" || len(pong.Elems) != 3 || pong.Elems[1].Int != t0 {
				return fmt.Errorf("exchange %d: unexpected reply %s", i, pong.String())
			}
		case <-ctx.Done():
			return fmt.Errorf("exchange %d: no pong within deadline", i)
		}
	}
	sess.Bye("done")
	return nil
}
