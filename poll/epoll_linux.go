//go:build linux

package poll

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"golang.org/x/sys/unix"
)

type epollBackend struct {
	fd     int
	events []unix.EpollEvent
}

func newBackend() (backend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(errors.Io, "epoll_create1", err)
	}
	return &epollBackend{fd: fd, events: make([]unix.EpollEvent, 64)}, nil
}

func toEpollEvents(mode Mode) uint32 {
	var ev uint32
	if mode&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if mode&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	if mode&Error != 0 {
		ev |= unix.EPOLLERR | unix.EPOLLHUP
	}
	return ev
}

func fromEpollEvents(ev uint32) Mode {
	var mode Mode
	if ev&unix.EPOLLIN != 0 {
		mode |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		mode |= Write
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		mode |= Error
	}
	return mode
}

func (e *epollBackend) add(fd int, mode Mode) error {
	ev := unix.EpollEvent{Events: toEpollEvents(mode), Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrap(errors.Io, "epoll_ctl add", err)
	}
	return nil
}

func (e *epollBackend) update(fd int, mode Mode) error {
	ev := unix.EpollEvent{Events: toEpollEvents(mode), Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errors.Wrap(errors.Io, "epoll_ctl mod", err)
	}
	return nil
}

func (e *epollBackend) remove(fd int) error {
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrap(errors.Io, "epoll_ctl del", err)
	}
	return nil
}

func (e *epollBackend) poll(timeout time.Duration, out *[]Event) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}

	n, err := unix.EpollWait(e.fd, e.events, ms)
	if err != nil {
		if err == unix.EINTR {
			*out = (*out)[:0]
			return 0, nil
		}
		return 0, errors.Wrap(errors.Io, "epoll_wait", err)
	}

	// Grow the event buffer if the last call filled it completely, so the
	// next poll can surface more than 64 ready descriptors at once.
	if n == len(e.events) {
		e.events = make([]unix.EpollEvent, len(e.events)*2)
	}

	*out = (*out)[:0]
	for i := 0; i < n; i++ {
		*out = append(*out, Event{
			Fd:   int(e.events[i].Fd),
			Mode: fromEpollEvents(e.events[i].Events),
		})
	}
	return n, nil
}

func (e *epollBackend) close() error {
	if err := unix.Close(e.fd); err != nil {
		return errors.Wrap(errors.Io, "close epoll fd", err)
	}
	return nil
}

func (e *epollBackend) name() string { return "epoll" }
func (e *epollBackend) scales() bool { return true }
