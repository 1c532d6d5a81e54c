//go:build linux || freebsd || dragonfly || darwin || netbsd || openbsd

// Package socket collects the raw unix socket syscalls fbnet's higher-level
// types build on: creation, option get/set, connect/accept with readiness
// polling, and errno-to-Kind mapping. It mirrors the shape of the teacher's
// internal/socket package (a thin syscall layer underneath the public API)
// but generalizes it to the full option set spec.md §4.2 names instead of
// gnet's reactor-only subset.
package socket

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"golang.org/x/sys/unix"
)

// Family mirrors address.Family without importing the root package, to
// avoid an import cycle (the root package imports internal/socket).
type Family int

const (
	IPv4 Family = unix.AF_INET
	IPv6 Family = unix.AF_INET6
)

// Type is the socket type: stream, datagram or raw.
type Type int

const (
	Stream   Type = unix.SOCK_STREAM
	Datagram Type = unix.SOCK_DGRAM
	Raw      Type = unix.SOCK_RAW
)

// Create opens a new, non-inherited socket and sets it non-blocking so the
// higher layers can implement their own blocking semantics via poll+timeout
// rather than relying on the kernel's blocking mode, matching the pattern
// SocketCore.connect_with_timeout/accept(timeout) needs.
func Create(family Family, typ Type) (int, error) {
	fd, err := unix.Socket(int(family), int(typ), 0)
	if err != nil {
		return -1, MapErrno("socket", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, MapErrno("set_nonblock", err)
	}
	return fd, nil
}

// SetBlocking toggles the O_NONBLOCK flag on fd.
func SetBlocking(fd int, blocking bool) error {
	if err := unix.SetNonblock(fd, !blocking); err != nil {
		return MapErrno("set_blocking", err)
	}
	return nil
}

// Close releases fd. Idempotent at the syscall level is not guaranteed by
// the OS, so callers (SocketCore) must track closed state themselves.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return MapErrno("close", err)
	}
	return nil
}

// SetIntOption/GetIntOption wrap getsockopt/setsockopt for the
// uniform get/set_option(level, name, value) contract in spec.md §4.2.

func SetIntOption(fd, level, name, value int) error {
	if err := unix.SetsockoptInt(fd, level, name, value); err != nil {
		return MapErrno("setsockopt", err)
	}
	return nil
}

func GetIntOption(fd, level, name int) (int, error) {
	v, err := unix.GetsockoptInt(fd, level, name)
	if err != nil {
		return 0, MapErrno("getsockopt", err)
	}
	return v, nil
}

func SetReuseAddr(fd int, reuse bool) error {
	return SetIntOption(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(reuse))
}

func GetReuseAddr(fd int) (bool, error) {
	v, err := GetIntOption(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR)
	return v != 0, err
}

// SetReusePort sets SO_REUSEPORT. Every platform this package builds on
// (linux, the BSDs, darwin) defines it, so it never returns Unsupported.
func SetReusePort(fd int, reuse bool) error {
	return SetIntOption(fd, unix.SOL_SOCKET, soReusePort, boolToInt(reuse))
}

func SetKeepAlive(fd int, on bool) error {
	return SetIntOption(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on))
}

func GetKeepAlive(fd int) (bool, error) {
	v, err := GetIntOption(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE)
	return v != 0, err
}

func SetNoDelay(fd int, on bool) error {
	return SetIntOption(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on))
}

func GetNoDelay(fd int) (bool, error) {
	v, err := GetIntOption(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY)
	return v != 0, err
}

func SetBroadcast(fd int, on bool) error {
	return SetIntOption(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, boolToInt(on))
}

func GetBroadcast(fd int) (bool, error) {
	v, err := GetIntOption(fd, unix.SOL_SOCKET, unix.SO_BROADCAST)
	return v != 0, err
}

func SetSendBufferSize(fd, size int) error {
	return SetIntOption(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, size)
}

func GetSendBufferSize(fd int) (int, error) {
	return GetIntOption(fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
}

func SetRecvBufferSize(fd, size int) error {
	return SetIntOption(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size)
}

func GetRecvBufferSize(fd int) (int, error) {
	return GetIntOption(fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
}

func SetLinger(fd int, on bool, seconds int) error {
	l := unix.Linger{Onoff: boolToInt32(on), Linger: int32(seconds)}
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &l); err != nil {
		return MapErrno("setsockopt_linger", err)
	}
	return nil
}

func GetLinger(fd int) (on bool, seconds int, err error) {
	l, gerr := unix.GetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER)
	if gerr != nil {
		return false, 0, MapErrno("getsockopt_linger", gerr)
	}
	return l.Onoff != 0, int(l.Linger), nil
}

func SetMulticastTTL(fd int, ttl int) error {
	return SetIntOption(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, ttl)
}

func GetMulticastTTL(fd int) (int, error) {
	return GetIntOption(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL)
}

func SetMulticastLoopback(fd int, on bool) error {
	return SetIntOption(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, boolToInt(on))
}

func GetMulticastLoopback(fd int) (bool, error) {
	v, err := GetIntOption(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP)
	return v != 0, err
}

// Timeval converts a time.Duration into a unix.Timeval for SO_RCVTIMEO /
// SO_SNDTIMEO, matching the original's std::chrono::milliseconds timeouts.
func Timeval(d time.Duration) unix.Timeval {
	return unix.NsecToTimeval(d.Nanoseconds())
}

func SetRecvTimeout(fd int, d time.Duration) error {
	tv := Timeval(d)
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return MapErrno("setsockopt_rcvtimeo", err)
	}
	return nil
}

func SetSendTimeout(fd int, d time.Duration) error {
	tv := Timeval(d)
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		return MapErrno("setsockopt_sndtimeo", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// MapErrno wraps a raw syscall error into the fbnet error taxonomy.
func MapErrno(context string, err error) error {
	if err == nil {
		return nil
	}
	errno, ok := err.(unix.Errno)
	if !ok {
		return errors.Wrap(errors.Io, context, err)
	}
	switch errno {
	case unix.EAGAIN:
		return errors.Wrap(errors.WouldBlock, context, err)
	case unix.EINPROGRESS:
		return errors.Wrap(errors.InProgress, context, err)
	case unix.ECONNREFUSED:
		return errors.Wrap(errors.ConnectionRefused, context, err)
	case unix.ECONNRESET:
		return errors.Wrap(errors.ConnectionReset, context, err)
	case unix.ECONNABORTED:
		return errors.Wrap(errors.ConnectionAborted, context, err)
	case unix.EHOSTUNREACH:
		return errors.Wrap(errors.HostUnreachable, context, err)
	case unix.EINVAL:
		return errors.Wrap(errors.InvalidArgument, context, err)
	case unix.EINTR:
		// Treated by callers as "no events, not an error"; still surfaced
		// here in case a caller doesn't special-case it.
		return errors.Wrap(errors.Io, context, err)
	default:
		return errors.Wrap(errors.Io, context, err)
	}
}
