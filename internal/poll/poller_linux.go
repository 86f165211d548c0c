//go:build linux

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

// epollSelector is grounded on eventloop.FastPoller (poller_linux.go):
// same epoll_create1/epoll_ctl/epoll_wait calls and the same "copy the
// callback under lock, invoke outside the lock" dispatch discipline. It
// differs by keying the registry on a map rather than a 65536-entry
// array, since a process runtime's fd count is bounded by MAX_PROCESS,
// not by the OS fd space — and by owning its wakeup eventfd directly,
// registered as just another fd.
type epollSelector struct {
	epfd int

	mu    sync.RWMutex
	fds   map[int]fdInfo
	wakeR int

	eventBuf [256]unix.EpollEvent
}

type fdInfo struct {
	cb     Callback
	events Events
}

// New constructs the Linux selector, creating the epoll instance and
// the eventfd used for WakeUp.
func New() (Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	s := &epollSelector{epfd: epfd, fds: make(map[int]fdInfo), wakeR: wakeFD}
	if err := s.registerRaw(wakeFD, EventRead); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFD)
		return nil, err
	}
	return s, nil
}

func (s *epollSelector) registerRaw(fd int, events Events) error {
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (s *epollSelector) Register(fd int, events Events, cb Callback) error {
	s.mu.Lock()
	s.fds[fd] = fdInfo{cb: cb, events: events}
	s.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		s.mu.Lock()
		delete(s.fds, fd)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *epollSelector) Modify(fd int, events Events) error {
	s.mu.Lock()
	info, ok := s.fds[fd]
	if !ok {
		s.mu.Unlock()
		return unix.ENOENT
	}
	info.events = events
	s.fds[fd] = info
	s.mu.Unlock()

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (s *epollSelector) Unregister(fd int) error {
	s.mu.Lock()
	delete(s.fds, fd)
	s.mu.Unlock()
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks up to timeout in epoll_wait, then dispatches ready
// callbacks; the wake eventfd is drained inline so a spurious extra
// WakeUp doesn't accumulate.
func (s *epollSelector) Wait(timeout time.Duration) error {
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = -1
	}
	n, err := unix.EpollWait(s.epfd, s.eventBuf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		fd := int(s.eventBuf[i].Fd)
		if fd == s.wakeR {
			s.drainWake()
			continue
		}
		s.mu.RLock()
		info, ok := s.fds[fd]
		s.mu.RUnlock()
		if ok && info.cb != nil {
			info.cb(epollToEvents(s.eventBuf[i].Events))
		}
	}
	return nil
}

func (s *epollSelector) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(s.wakeR, buf[:])
		if err != nil {
			break
		}
	}
}

// WakeUp writes to the eventfd, waking an in-progress epoll_wait; the
// scheduler loop treats any wakeup as "rescan the table".
func (s *epollSelector) WakeUp() error {
	var one [8]byte
	one[7] = 1
	_, err := unix.Write(s.wakeR, one[:])
	if err == unix.EAGAIN {
		return nil // counter already nonzero; pending wakeup suffices
	}
	return err
}

func (s *epollSelector) Close() error {
	_ = unix.Close(s.wakeR)
	return unix.Close(s.epfd)
}

func eventsToEpoll(e Events) uint32 {
	var out uint32
	if e&EventRead != 0 {
		out |= unix.EPOLLIN
	}
	if e&EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func epollToEvents(e uint32) Events {
	var out Events
	if e&unix.EPOLLIN != 0 {
		out |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		out |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		out |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		out |= EventHangup
	}
	return out
}
