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
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/twinkle-labs/twk/internal/peer"
	"github.com/twinkle-labs/twk/internal/process"
	rt "github.com/twinkle-labs/twk/internal/runtime"
	"github.com/twinkle-labs/twk/internal/twklog"
	"github.com/twinkle-labs/twk/internal/wire"
)

// launchCommand boots the scheduler, spawns the named program as the
// privileged root process, and (with --listen) serves the built-in
// programs as peer protocols until interrupted.
//
//	twk launch ping --listen 127.0.0.1:9001 --keys server.key
func (a *app) launchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <name> [opts]",
		Short: "run a named program under the scheduler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ParseOptions(args[1:])
			name := args[0]
			if _, ok := builtinPrograms()[name]; !ok {
				return fmt.Errorf("unknown program %q", name)
			}

			runtime, err := rt.New(a.paths, a.tuning, a.log, func(msg wire.Value) {
				a.log.Infof("host message: %s", wire.Encode(msg))
			})
			if err != nil {
				return err
			}
			if _, err := runtime.EnableMetrics(prometheus.DefaultRegisterer); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			root, err := runtime.Spawn(name, process.NoPid, true, twklog.ParseLevel(a.tuning.LogLevel),
				func(p *process.Process) process.Directive {
					return rt.Wait()
				})
			if err != nil {
				return err
			}

			if addr := opts.Value("listen", ""); addr != "" {
				keys, err := a.loadOrCreateKeys(opts.Value("keys", ""))
				if err != nil {
					return err
				}
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return err
				}
				defer ln.Close()
				a.log.Infof("listening on %s as %s", addr, peer.DeriveIdentity(keys.Public))
				go a.serve(ctx, ln, keys, runtime, root.Pid)
			}

			return runtime.Run(ctx)
		},
	}
}

// loadOrCreateKeys reads the long-term keypair file, generating and
// persisting a fresh one on first use so a new node can come up with
// nothing pre-provisioned.
func (a *app) loadOrCreateKeys(path string) (peer.KeyPair, error) {
	if path == "" {
		return peer.KeyPair{}, fmt.Errorf("--keys <file> is required with --listen")
	}
	if kp, err := peer.LoadKeyPair(path); err == nil {
		return kp, nil
	}
	kp, err := peer.GenerateKeyPair()
	if err != nil {
		return peer.KeyPair{}, err
	}
	if err := peer.SaveKeyPair(path, kp); err != nil {
		return peer.KeyPair{}, err
	}
	a.log.Infof("generated new keypair at %s", path)
	return kp, nil
}

// serve accepts connections and hands each to servePeer. Accept errors
// after ctx is done mean the listener was closed on shutdown.
func (a *app) serve(ctx context.Context, ln net.Listener, keys peer.KeyPair, runtime *rt.Runtime, parent process.Pid) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				a.log.Errorf("accept: %v", err)
			}
			return
		}
		go a.servePeer(ctx, conn, keys, runtime, parent)
	}
}

// servePeer runs the secure transport for one inbound connection: a
// tracking process joins the table as a child of the root, the session
// answers each `(method args...)` request from the negotiated program's
// method table, and the process exits when the session ends.
func (a *app) servePeer(ctx context.Context, conn net.Conn, keys peer.KeyPair, runtime *rt.Runtime, parent process.Pid) {
	programs := builtinPrograms()
	cfg := peer.Config{
		Identity:      keys,
		HandshakeTO:   a.tuning.HandshakeTO,
		NegotiationTO: a.tuning.NegotiationTO,
		IdleTimeout:   a.tuning.IdleTimeout,
		Log:           a.log,
	}
	sess, nc, err := peer.Accept(conn, cfg, func(name string) bool {
		_, ok := programs[name]
		return ok
	})
	if err != nil {
		a.log.Warnf("peer rejected: %v", err)
		return
	}
	if runtime.Metrics != nil {
		runtime.Metrics.PeerSessions.Inc()
		defer runtime.Metrics.PeerSessions.Dec()
	}

	done := make(chan struct{})
	proc, err := runtime.Spawn("peerx:"+string(nc.Identity[:8]), parent, false, twklog.WarnLevel,
		func(p *process.Process) process.Directive {
			select {
			case <-done:
				return rt.Exit()
			default:
				return rt.Wait()
			}
		})
	if err != nil {
		sess.Bye("server at capacity")
		return
	}

	prog := programs[nc.Protocol]
	err = peer.RunPeer(ctx, sess, func(msg wire.Value) {
		if sym, _ := msg.Head(); sym == "bye" {
			return
		}
		result, err := prog.Call(a, msg)
		if err != nil {
			result = wire.Lst(wire.Sym("error"), wire.Str(err.Error()))
		}
		if err := sess.Send(result); err != nil {
			a.log.Warnf("peer send: %v", err)
		}
	})
	if err != nil {
		a.log.Infof("peer session ended: %v", err)
	}
	close(done)
	runtime.Sched.ScheduleImmediate(proc.Pid)
}
