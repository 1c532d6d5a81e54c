package fbnet

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
	"golang.org/x/sys/unix"
)

const maxDatagramSize = 65507

// UdpSocket is a datagram endpoint supporting both connectionless
// (send_to/recv_from) and connected-mode (send/recv) use, plus broadcast,
// multicast TTL/loopback, and group membership.
type UdpSocket struct {
	core      *SocketCore
	local     Address
	connected bool
	peer      Address
}

func NewUdpSocket() *UdpSocket {
	return &UdpSocket{core: NewSocketCore()}
}

func (u *UdpSocket) Bind(addr Address) error {
	if err := u.core.Bind(addr, socket.Datagram); err != nil {
		return err
	}
	// Record the port the kernel actually assigned when binding to port 0.
	if sa, err := unix.Getsockname(u.core.FD()); err == nil {
		if _, port := socket.IPFromSockaddr(sa); port != 0 {
			addr.port = port
		}
	}
	u.local = addr
	return nil
}

// Connect binds the default peer for subsequent Send/Recv calls.
func (u *UdpSocket) Connect(addr Address) error {
	if u.core.IsClosed() {
		if err := u.core.Init(addr.Family(), socket.Datagram); err != nil {
			return err
		}
	}
	if err := u.core.Connect(addr); err != nil {
		return err
	}
	u.connected = true
	u.peer = addr
	return nil
}

// Disconnect clears the peer binding (platform "unspec" sentinel connect).
// Some platforms return a harmless error here, which is tolerated.
func (u *UdpSocket) Disconnect() error {
	if !u.connected {
		return nil
	}
	wild := NewWildcard(u.core.Family())
	_ = socket.Connect(u.core.FD(), socket.SockaddrFromIP(wild.IP(), 0))
	u.connected = false
	u.peer = Address{}
	return nil
}

func (u *UdpSocket) LocalAddress() Address { return u.local }
func (u *UdpSocket) IsConnected() bool     { return u.connected }

func (u *UdpSocket) SendTo(buf []byte, addr Address) (int, error) {
	if len(buf) > maxDatagramSize {
		return 0, errors.New(errors.InvalidArgument, "udp_socket: datagram exceeds 65507 bytes")
	}
	sa := socket.SockaddrFromIP(addr.IP(), addr.Port())
	return socket.SendTo(u.core.FD(), buf, sa)
}

func (u *UdpSocket) RecvFrom(buf []byte) (int, Address, error) {
	n, sa, err := socket.RecvFrom(u.core.FD(), buf)
	if err != nil {
		return 0, Address{}, err
	}
	ip, port := socket.IPFromSockaddr(sa)
	family := u.core.Family()
	addr, aerr := FromRaw(family, normalizeRaw(family, ip), port)
	if aerr != nil {
		return n, Address{}, aerr
	}
	return n, addr, nil
}

// Send requires a prior Connect; raises Logic otherwise.
func (u *UdpSocket) Send(buf []byte) (int, error) {
	if !u.connected {
		return 0, errors.New(errors.Logic, "udp_socket: send without connect")
	}
	if len(buf) > maxDatagramSize {
		return 0, errors.New(errors.InvalidArgument, "udp_socket: datagram exceeds 65507 bytes")
	}
	return socket.Send(u.core.FD(), buf, 0)
}

// Recv requires a prior Connect; raises Logic otherwise.
func (u *UdpSocket) Recv(buf []byte) (int, error) {
	if !u.connected {
		return 0, errors.New(errors.Logic, "udp_socket: recv without connect")
	}
	return socket.Recv(u.core.FD(), buf, 0)
}

func (u *UdpSocket) SetBroadcast(on bool) error { return u.core.SetBroadcast(on) }
func (u *UdpSocket) SetMulticastTTL(ttl int) error {
	return socket.SetMulticastTTL(u.core.FD(), ttl)
}
func (u *UdpSocket) SetMulticastLoopback(on bool) error {
	return socket.SetMulticastLoopback(u.core.FD(), on)
}

// JoinGroup joins group on iface (the zero Address = default interface). IPv4 is
// required; IPv6 multicast raises Unsupported.
func (u *UdpSocket) JoinGroup(group Address, iface Address) error {
	if u.core.Family() != IPv4 {
		return errors.New(errors.Unsupported, "udp_socket: ipv6 multicast not supported")
	}
	var ifaceIP []byte
	if !iface.Equal(Address{}) {
		ifaceIP = iface.IP()
	}
	return socket.JoinMulticastGroup(u.core.FD(), group.IP(), ifaceIP)
}

func (u *UdpSocket) LeaveGroup(group Address, iface Address) error {
	if u.core.Family() != IPv4 {
		return errors.New(errors.Unsupported, "udp_socket: ipv6 multicast not supported")
	}
	var ifaceIP []byte
	if !iface.Equal(Address{}) {
		ifaceIP = iface.IP()
	}
	return socket.LeaveMulticastGroup(u.core.FD(), group.IP(), ifaceIP)
}

func (u *UdpSocket) Poll(timeout time.Duration, mode socket.PollMode) (socket.PollMode, error) {
	return u.core.Poll(timeout, mode)
}

func (u *UdpSocket) SetRecvTimeout(d time.Duration) error { return u.core.SetRecvTimeout(d) }
func (u *UdpSocket) SetSendTimeout(d time.Duration) error { return u.core.SetSendTimeout(d) }

func (u *UdpSocket) Close() error   { return u.core.Close() }
func (u *UdpSocket) IsClosed() bool { return u.core.IsClosed() }
func (u *UdpSocket) FD() int        { return u.core.FD() }
