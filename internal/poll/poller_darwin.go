//go:build darwin

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

package poll

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueSelector mirrors epollSelector's shape but drives kqueue,
// grounded on eventloop.FastPoller (poller_darwin.go): same
// kqueue/kevent calls, same "copy under RLock, execute outside the
// lock" dispatch discipline. The self-pipe wakeup uses an actual pipe
// (kqueue has no eventfd equivalent), matching eventloop's own Darwin
// wakeup fallback (wakeup_darwin.go).
type kqueueSelector struct {
	kq int

	mu  sync.RWMutex
	fds map[int]fdInfo

	wakeR, wakeW int

	eventBuf [256]unix.Kevent_t
}

type fdInfo struct {
	cb     Callback
	events Events
}

func New() (Selector, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	_ = unix.SetNonblock(fds[0], true)

	s := &kqueueSelector{kq: kq, fds: make(map[int]fdInfo), wakeR: fds[0], wakeW: fds[1]}
	if err := s.registerRaw(s.wakeR, EventRead); err != nil {
		_ = unix.Close(kq)
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, err
	}
	return s, nil
}

func (s *kqueueSelector) registerRaw(fd int, events Events) error {
	kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	_, err := unix.Kevent(s.kq, kevs, nil, nil)
	return err
}

func (s *kqueueSelector) Register(fd int, events Events, cb Callback) error {
	s.mu.Lock()
	s.fds[fd] = fdInfo{cb: cb, events: events}
	s.mu.Unlock()

	kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(s.kq, kevs, nil, nil); err != nil {
		s.mu.Lock()
		delete(s.fds, fd)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *kqueueSelector) Modify(fd int, events Events) error {
	s.mu.Lock()
	if _, ok := s.fds[fd]; !ok {
		s.mu.Unlock()
		return unix.ENOENT
	}
	s.fds[fd] = fdInfo{cb: s.fds[fd].cb, events: events}
	s.mu.Unlock()

	// Clear then re-add, since kqueue filters are per-direction.
	_, _ = unix.Kevent(s.kq, eventsToKevents(fd, EventRead|EventWrite, unix.EV_DELETE), nil, nil)
	_, err := unix.Kevent(s.kq, eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE), nil, nil)
	return err
}

func (s *kqueueSelector) Unregister(fd int) error {
	s.mu.Lock()
	delete(s.fds, fd)
	s.mu.Unlock()
	_, err := unix.Kevent(s.kq, eventsToKevents(fd, EventRead|EventWrite, unix.EV_DELETE), nil, nil)
	return err
}

func (s *kqueueSelector) Wait(timeout time.Duration) error {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	n, err := unix.Kevent(s.kq, nil, s.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		ev := s.eventBuf[i]
		fd := int(ev.Ident)
		if fd == s.wakeR {
			s.drainWake()
			continue
		}
		s.mu.RLock()
		info, ok := s.fds[fd]
		s.mu.RUnlock()
		if ok && info.cb != nil {
			info.cb(keventToEvents(ev))
		}
	}
	return nil
}

func (s *kqueueSelector) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(s.wakeR, buf[:])
		if err != nil {
			break
		}
	}
}

func (s *kqueueSelector) WakeUp() error {
	_, err := unix.Write(s.wakeW, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (s *kqueueSelector) Close() error {
	_ = unix.Close(s.wakeR)
	_ = unix.Close(s.wakeW)
	return unix.Close(s.kq)
}

func eventsToKevents(fd int, e Events, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if e&EventRead != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if e&EventWrite != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func keventToEvents(ev unix.Kevent_t) Events {
	var out Events
	switch ev.Filter {
	case unix.EVFILT_READ:
		out |= EventRead
	case unix.EVFILT_WRITE:
		out |= EventWrite
	}
	if ev.Flags&unix.EV_EOF != 0 {
		out |= EventHangup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		out |= EventError
	}
	return out
}
