//go:build linux || freebsd || dragonfly || darwin || netbsd || openbsd

package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

// SockaddrFromIP converts a resolved IP + port into a unix.Sockaddr.
func SockaddrFromIP(ip net.IP, port int) unix.Sockaddr {
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa
	}
	v6 := ip.To16()
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], v6)
	return sa
}

// IPFromSockaddr extracts host/port from a unix.Sockaddr.
func IPFromSockaddr(sa unix.Sockaddr) (net.IP, int) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, s.Addr[:])
		return ip, s.Port
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		return ip, s.Port
	default:
		return nil, 0
	}
}

func Bind(fd int, sa unix.Sockaddr) error {
	if err := unix.Bind(fd, sa); err != nil {
		return MapErrno("bind", err)
	}
	return nil
}

func Listen(fd int, backlog int) error {
	if err := unix.Listen(fd, backlog); err != nil {
		return MapErrno("listen", err)
	}
	return nil
}

// Connect issues connect(2) on fd in whatever blocking mode fd is in. On a
// non-blocking fd the caller (SocketCore) is responsible for waiting on
// write-readiness and probing SO_ERROR.
func Connect(fd int, sa unix.Sockaddr) error {
	if err := unix.Connect(fd, sa); err != nil {
		return MapErrno("connect", err)
	}
	return nil
}

// SocketError probes SO_ERROR, returning nil if the pending connect
// succeeded.
func SocketError(fd int) error {
	errno, err := GetIntOption(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return MapErrno("connect", unix.Errno(errno))
}

// Accept accepts a pending connection on a non-blocking listening fd.
func Accept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, nil, MapErrno("accept", err)
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return -1, nil, MapErrno("set_nonblock", err)
	}
	return nfd, sa, nil
}

func Shutdown(fd int, how int) error {
	if err := unix.Shutdown(fd, how); err != nil {
		return MapErrno("shutdown", err)
	}
	return nil
}

const (
	ShutdownRead  = unix.SHUT_RD
	ShutdownWrite = unix.SHUT_WR
	ShutdownBoth  = unix.SHUT_RDWR
)

// JoinMulticastGroup adds fd's membership in the given IPv4 multicast group
// on the named interface (empty = default interface).
func JoinMulticastGroup(fd int, group net.IP, iface net.IP) error {
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], group.To4())
	if iface != nil {
		copy(mreq.Interface[:], iface.To4())
	}
	if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
		return MapErrno("join_group", err)
	}
	return nil
}

func LeaveMulticastGroup(fd int, group net.IP, iface net.IP) error {
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], group.To4())
	if iface != nil {
		copy(mreq.Interface[:], iface.To4())
	}
	if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_DROP_MEMBERSHIP, mreq); err != nil {
		return MapErrno("leave_group", err)
	}
	return nil
}
