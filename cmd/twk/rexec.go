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
	"crypto/ecdh"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twinkle-labs/twk/internal/peer"
	"github.com/twinkle-labs/twk/internal/wire"
)

// resolveServerKey maps a server uuid to its long-term public key. The
// key must have been pinned beforehand as hex under
// TWK_VAR/data/peer/<uuid>; identity is self-describing, so the pin is
// checked against the uuid before use.
func (a *app) resolveServerKey(uuid string) (*ecdh.PublicKey, error) {
	raw, err := os.ReadFile(filepath.Join(a.paths.Var, "data", "peer", uuid))
	if err != nil {
		return nil, fmt.Errorf("server %s is not pinned: %w", uuid, err)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("pinned key for %s is malformed: %w", uuid, err)
	}
	pub, err := peer.Curve.NewPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("pinned key for %s is invalid: %w", uuid, err)
	}
	if !peer.Identity(uuid).MatchesKey(pub) {
		return nil, fmt.Errorf("pinned key for %s does not hash to that identity", uuid)
	}
	return pub, nil
}

// rexecCommand invokes one program method on a remote runtime over the
// secure peer transport and prints the reply term.
//
//	twk rexec <server-uuid> <server-ip> <server-port> <keypair-file> <program> <method> [params]
func (a *app) rexecCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rexec <server-uuid> <server-ip> <server-port> <keypair-file> <program> <method> [params]",
		Short: "invoke a program method on a remote runtime",
		Args:  cobra.MinimumNArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverPub, err := a.resolveServerKey(args[0])
			if err != nil {
				return err
			}
			keys, err := peer.LoadKeyPair(args[3])
			if err != nil {
				return fmt.Errorf("load keypair: %w", err)
			}

			conn, err := net.DialTimeout("tcp", net.JoinHostPort(args[1], args[2]), 10*time.Second)
			if err != nil {
				return err
			}

			cfg := peer.Config{
				Identity:      keys,
				HandshakeTO:   a.tuning.HandshakeTO,
				NegotiationTO: a.tuning.NegotiationTO,
				IdleTimeout:   a.tuning.IdleTimeout,
				Log:           a.log,
			}
			sess, err := peer.Dial(conn, cfg, serverPub, args[4])
			if err != nil {
				return err
			}

			opts := ParseOptions(args[6:])
			if err := sess.Send(methodMessage(args[5], opts.Positional)); err != nil {
				return err
			}

			// Run the session until the first reply lands, then wind it
			// down; bye/keep-alive never reach the deliver callback.
			ctx, cancel := context.WithTimeout(cmd.Context(), a.tuning.IdleTimeout)
			defer cancel()
			replies := make(chan wire.Value, 1)
			runErr := make(chan error, 1)
			go func() {
				runErr <- peer.RunPeer(ctx, sess, func(msg wire.Value) {
					if sym, _ := msg.Head(); sym == "bye" {
						return
					}
					select {
					case replies <- msg:
					default:
					}
				})
			}()

			select {
			case reply := <-replies:
				sess.Bye("done")
				cancel()
				<-runErr
				fmt.Fprintln(cmd.OutOrStdout(), reply.String())
				return nil
			case err := <-runErr:
				if err == nil {
					err = fmt.Errorf("session closed before a reply arrived")
				}
				return err
			}
		},
	}
}
