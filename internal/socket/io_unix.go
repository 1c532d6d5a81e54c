//go:build linux || freebsd || dragonfly || darwin || netbsd || openbsd

package socket

import (
	"time"

	"golang.org/x/sys/unix"
)

// Send writes buf to fd, returning (n, err). n==0 with err==nil means
// "nothing sent this call", never EOF (spec.md §4.3).
func Send(fd int, buf []byte, flags int) (int, error) {
	n, err := unix.Write(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, MapErrno("send", err)
	}
	return n, nil
}

// Recv reads into buf from fd. n==0, err==nil means the peer closed the
// read side (spec.md §4.3).
func Recv(fd int, buf []byte, flags int) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, errWouldBlockSentinel
		}
		return 0, MapErrno("recv", err)
	}
	return n, nil
}

// errWouldBlockSentinel lets callers distinguish "try again" from a genuine
// zero-length read (peer closed) without importing internal/socket's error
// construction twice; it is mapped, not swallowed.
var errWouldBlockSentinel = MapErrno("recv", unix.EAGAIN)

// IsWouldBlock reports whether err is the WouldBlock sentinel Recv/RecvFrom
// use to signal "not ready yet" to a poll-driven caller (Send and SendTo
// report EAGAIN as (0, nil) instead).
func IsWouldBlock(err error) bool {
	return err == errWouldBlockSentinel
}

func SendTo(fd int, buf []byte, sa unix.Sockaddr) (int, error) {
	err := unix.Sendto(fd, buf, 0, sa)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, MapErrno("sendto", err)
	}
	return len(buf), nil
}

func RecvFrom(fd int, buf []byte) (int, unix.Sockaddr, error) {
	n, sa, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil, errWouldBlockSentinel
		}
		return 0, nil, MapErrno("recvfrom", err)
	}
	return n, sa, nil
}

func SendUrgent(fd int, b byte) error {
	_, err := unix.SendmsgN(fd, []byte{b}, nil, nil, unix.MSG_OOB)
	if err != nil {
		return MapErrno("send_urgent", err)
	}
	return nil
}

// PollMode is a bitmask of readiness conditions, matching spec.md §6:
// READ=1, WRITE=2, ERROR=4.
type PollMode int

const (
	PollRead  PollMode = 1
	PollWrite PollMode = 2
	PollError PollMode = 4
)

// Poll waits up to timeout for fd to become ready per mode, using a single
// poll(2) call. It treats EINTR as "no events, not an error" per spec.md
// §4.2. A negative timeout blocks indefinitely; zero means non-blocking poll.
func Poll(fd int, timeout time.Duration, mode PollMode) (PollMode, error) {
	var events int16
	if mode&PollRead != 0 {
		events |= unix.POLLIN
	}
	if mode&PollWrite != 0 {
		events |= unix.POLLOUT
	}
	if mode&PollError != 0 {
		events |= unix.POLLERR
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, MapErrno("poll", err)
	}
	if n == 0 {
		return 0, nil
	}

	var ready PollMode
	if fds[0].Revents&unix.POLLIN != 0 {
		ready |= PollRead
	}
	if fds[0].Revents&unix.POLLOUT != 0 {
		ready |= PollWrite
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		ready |= PollError
	}
	return ready, nil
}
