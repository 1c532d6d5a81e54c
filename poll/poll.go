// Package poll implements PollSet, the cross-platform multiplexer spec.md
// §4.6 describes: a set of (fd, mode) pairs polled together, backed by
// epoll on Linux, kqueue on BSD/macOS, and select as a portable fallback.
// The backend is chosen at compile time per platform, mirroring the
// teacher's internal/netpoll split into linux/bsd poller files, and is
// never exposed in the type system — callers only see poll.Set.
package poll

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
)

// Mode is a bitmask of readiness conditions to watch for.
type Mode int

const (
	Read  Mode = 1
	Write Mode = 2
	Error Mode = 4
)

// Event describes one ready descriptor from a Poll call.
type Event struct {
	Fd   int
	Mode Mode
}

// backend is the platform-specific multiplexer implementation. Each
// platform file (epoll_linux.go, kqueue_bsd.go, select_other.go) provides
// newBackend and a type satisfying this interface.
type backend interface {
	add(fd int, mode Mode) error
	update(fd int, mode Mode) error
	remove(fd int) error
	poll(timeout time.Duration, out *[]Event) (int, error)
	close() error
	name() string
	scales() bool
}

// Set is the public multiplexer: add/update/remove (fd, mode) pairs and
// poll for readiness. Each referenced socket must outlive its membership,
// matching spec.md §4.6's contract — Set does not own the sockets it
// tracks, only their file descriptors.
type Set struct {
	b       backend
	modes   map[int]Mode
	events  []Event
}

// New creates an empty PollSet using the best backend for the current
// platform.
func New() (*Set, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return &Set{b: b, modes: make(map[int]Mode)}, nil
}

func (s *Set) Add(fd int, mode Mode) error {
	if _, exists := s.modes[fd]; exists {
		return errors.New(errors.Logic, "fd already registered in poll set")
	}
	if err := s.b.add(fd, mode); err != nil {
		return err
	}
	s.modes[fd] = mode
	return nil
}

func (s *Set) Update(fd int, mode Mode) error {
	if _, exists := s.modes[fd]; !exists {
		return errors.New(errors.Logic, "fd not registered in poll set")
	}
	if err := s.b.update(fd, mode); err != nil {
		return err
	}
	s.modes[fd] = mode
	return nil
}

func (s *Set) Remove(fd int) error {
	if _, exists := s.modes[fd]; !exists {
		return nil
	}
	delete(s.modes, fd)
	return s.b.remove(fd)
}

func (s *Set) Has(fd int) bool {
	_, ok := s.modes[fd]
	return ok
}

func (s *Set) GetMode(fd int) (Mode, bool) {
	m, ok := s.modes[fd]
	return m, ok
}

func (s *Set) Clear() error {
	for fd := range s.modes {
		if err := s.b.remove(fd); err != nil {
			return err
		}
	}
	s.modes = make(map[int]Mode)
	s.events = s.events[:0]
	return nil
}

func (s *Set) Size() int   { return len(s.modes) }
func (s *Set) Empty() bool { return len(s.modes) == 0 }

// Poll waits up to timeout for at least one registered fd to become ready,
// recording results internally (retrievable via Events) and returning the
// count. EINTR is treated as "zero events, not an error" (spec.md §4.6).
func (s *Set) Poll(timeout time.Duration) (int, error) {
	n, err := s.b.poll(timeout, &s.events)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PollInto waits as Poll does but writes results into the caller-supplied
// slice (replacing its previous contents) instead of the internal buffer.
func (s *Set) PollInto(out *[]Event, timeout time.Duration) (int, error) {
	return s.b.poll(timeout, out)
}

// Events returns the events recorded by the most recent Poll call.
func (s *Set) Events() []Event { return s.events }

// ClearEvents discards the recorded events without polling again.
func (s *Set) ClearEvents() { s.events = s.events[:0] }

// Close releases the backend's OS resources (the epoll/kqueue fd).
func (s *Set) Close() error { return s.b.close() }

// Backend reports the multiplexer name in use ("epoll", "kqueue", "select").
func (s *Set) Backend() string { return s.b.name() }

// ScalesWithFDCount reports whether the backend's poll cost is independent
// of the number of registered descriptors (true for epoll/kqueue, false for
// select, which rebuilds and scans its fd_sets on every call).
func (s *Set) ScalesWithFDCount() bool { return s.b.scales() }
