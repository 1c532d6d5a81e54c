//go:build !linux && !freebsd && !dragonfly && !darwin && !netbsd && !openbsd

package poll

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"golang.org/x/sys/unix"
)

// selectBackend recomputes the three fd sets on every mutation and each
// poll call, matching spec.md §4.6's fallback strategy. It clamps to the
// platform FD_SETSIZE limit.
type selectBackend struct {
	modes map[int]Mode
	maxFd int
}

func newBackend() (backend, error) {
	return &selectBackend{modes: make(map[int]Mode)}, nil
}

func (s *selectBackend) add(fd int, mode Mode) error {
	if fd >= unix.FD_SETSIZE {
		return errors.New(errors.InvalidArgument, "fd exceeds FD_SETSIZE")
	}
	s.modes[fd] = mode
	s.recomputeMax()
	return nil
}

func (s *selectBackend) update(fd int, mode Mode) error {
	s.modes[fd] = mode
	return nil
}

func (s *selectBackend) remove(fd int) error {
	delete(s.modes, fd)
	s.recomputeMax()
	return nil
}

func (s *selectBackend) recomputeMax() {
	max := 0
	for fd := range s.modes {
		if fd > max {
			max = fd
		}
	}
	s.maxFd = max
}

func (s *selectBackend) poll(timeout time.Duration, out *[]Event) (int, error) {
	var rfds, wfds, efds unix.FdSet
	for fd, mode := range s.modes {
		if mode&Read != 0 {
			fdSet(&rfds, fd)
		}
		if mode&Write != 0 {
			fdSet(&wfds, fd)
		}
		if mode&Error != 0 {
			fdSet(&efds, fd)
		}
	}

	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}

	n, err := unix.Select(s.maxFd+1, &rfds, &wfds, &efds, tv)
	if err != nil {
		if err == unix.EINTR {
			*out = (*out)[:0]
			return 0, nil
		}
		return 0, errors.Wrap(errors.Io, "select", err)
	}

	*out = (*out)[:0]
	if n == 0 {
		return 0, nil
	}
	for fd := range s.modes {
		var mode Mode
		if fdIsSet(&rfds, fd) {
			mode |= Read
		}
		if fdIsSet(&wfds, fd) {
			mode |= Write
		}
		if fdIsSet(&efds, fd) {
			mode |= Error
		}
		if mode != 0 {
			*out = append(*out, Event{Fd: fd, Mode: mode})
		}
	}
	return len(*out), nil
}

func (s *selectBackend) close() error { return nil }
func (s *selectBackend) name() string { return "select" }
func (s *selectBackend) scales() bool { return false }

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
