//go:build freebsd || dragonfly || darwin || netbsd || openbsd

package poll

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"golang.org/x/sys/unix"
)

// kqueueBackend maintains a pending change list applied at each kevent
// call, matching original_source/fb_net/src/poll_set.cpp's kqueue path:
// READ<->EVFILT_READ, WRITE<->EVFILT_WRITE, EV_EOF/EV_ERROR -> Error.
type kqueueBackend struct {
	fd      int
	changes []unix.Kevent_t
	events  []unix.Kevent_t
	modes   map[int]Mode
}

func newBackend() (backend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(errors.Io, "kqueue", err)
	}
	return &kqueueBackend{
		fd:     fd,
		events: make([]unix.Kevent_t, 64),
		modes:  make(map[int]Mode),
	}, nil
}

func (k *kqueueBackend) queueChange(fd int, filter int16, flags uint16) {
	k.changes = append(k.changes, unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	})
}

func (k *kqueueBackend) add(fd int, mode Mode) error {
	if mode&Read != 0 {
		k.queueChange(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	}
	if mode&Write != 0 {
		k.queueChange(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	}
	k.modes[fd] = mode
	return k.apply()
}

func (k *kqueueBackend) update(fd int, mode Mode) error {
	old := k.modes[fd]
	if old&Read != 0 && mode&Read == 0 {
		k.queueChange(fd, unix.EVFILT_READ, unix.EV_DELETE)
	} else if old&Read == 0 && mode&Read != 0 {
		k.queueChange(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	}
	if old&Write != 0 && mode&Write == 0 {
		k.queueChange(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	} else if old&Write == 0 && mode&Write != 0 {
		k.queueChange(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	}
	k.modes[fd] = mode
	return k.apply()
}

func (k *kqueueBackend) remove(fd int) error {
	old := k.modes[fd]
	if old&Read != 0 {
		k.queueChange(fd, unix.EVFILT_READ, unix.EV_DELETE)
	}
	if old&Write != 0 {
		k.queueChange(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	}
	delete(k.modes, fd)
	return k.apply()
}

// apply flushes the pending change list via a zero-timeout kevent call with
// no output events requested.
func (k *kqueueBackend) apply() error {
	if len(k.changes) == 0 {
		return nil
	}
	changes := k.changes
	k.changes = nil
	_, err := unix.Kevent(k.fd, changes, nil, nil)
	if err != nil {
		return errors.Wrap(errors.Io, "kevent apply", err)
	}
	return nil
}

func (k *kqueueBackend) poll(timeout time.Duration, out *[]Event) (int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(k.fd, nil, k.events, ts)
	if err != nil {
		if err == unix.EINTR {
			*out = (*out)[:0]
			return 0, nil
		}
		return 0, errors.Wrap(errors.Io, "kevent poll", err)
	}

	if n == len(k.events) {
		k.events = make([]unix.Kevent_t, len(k.events)*2)
	}

	*out = (*out)[:0]
	for i := 0; i < n; i++ {
		ev := k.events[i]
		var mode Mode
		switch ev.Filter {
		case unix.EVFILT_READ:
			mode = Read
		case unix.EVFILT_WRITE:
			mode = Write
		}
		if ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			mode |= Error
		}
		*out = append(*out, Event{Fd: int(ev.Ident), Mode: mode})
	}
	return n, nil
}

func (k *kqueueBackend) close() error {
	if err := unix.Close(k.fd); err != nil {
		return errors.Wrap(errors.Io, "close kqueue fd", err)
	}
	return nil
}

func (k *kqueueBackend) name() string { return "kqueue" }
func (k *kqueueBackend) scales() bool { return true }
