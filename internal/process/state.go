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

// Package process implements the slot-allocated process table and the
// per-process state machine: a fixed-size array of
// slots, free-slot tracking via a bitset, and the
// NONE→CREATED→RUNNABLE→RUNNING→{WAITING,DONE,PENDING,SHUTDOWN}→NONE
// transition graph.
package process

// State is one of the eight process lifecycle states.
type State uint8

const (
	NONE State = iota
	CREATED
	RUNNABLE
	RUNNING
	WAITING
	DONE
	PENDING
	SHUTDOWN
)

func (s State) String() string {
	switch s {
	case NONE:
		return "none"
	case CREATED:
		return "created"
	case RUNNABLE:
		return "runnable"
	case RUNNING:
		return "running"
	case WAITING:
		return "waiting"
	case DONE:
		return "done"
	case PENDING:
		return "pending"
	case SHUTDOWN:
		return "shutdown"
	default:
		return "unknown"
	}
}

// MaxProcess is the default process table capacity.
const MaxProcess = 1024

// MaxNameLen bounds Process.Name.
const MaxNameLen = 32
