package fbnet

import (
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
	"golang.org/x/sys/unix"
)

// ServerSocket is a listening endpoint: bind, listen, accept (blocking or
// timed), and option passthroughs to the embedded SocketCore.
type ServerSocket struct {
	core  *SocketCore
	local Address
}

func NewServerSocket() *ServerSocket {
	return &ServerSocket{core: NewSocketCore()}
}

func (s *ServerSocket) Bind(addr Address) error {
	if err := s.core.Bind(addr, socket.Stream); err != nil {
		return err
	}
	// Record the port the kernel actually assigned when binding to port 0.
	if sa, err := unix.Getsockname(s.core.FD()); err == nil {
		if _, port := socket.IPFromSockaddr(sa); port != 0 {
			addr.port = port
		}
	}
	s.local = addr
	return nil
}

// Listen marks the socket as listening. backlog is clamped to an internal
// maximum; calling SetBacklog after Listen is best-effort since some
// platforms ignore a post-listen backlog change.
func (s *ServerSocket) Listen(backlog int) error {
	return s.core.Listen(backlog)
}

func (s *ServerSocket) SetBacklog(backlog int) error {
	return s.core.Listen(backlog)
}

func (s *ServerSocket) LocalAddress() Address { return s.local }

// Accept blocks until a connection arrives.
func (s *ServerSocket) Accept() (*TcpClient, Address, error) {
	return s.accept(-1)
}

// AcceptWithTimeout waits up to timeout for a pending connection; zero
// means a non-blocking poll.
func (s *ServerSocket) AcceptWithTimeout(timeout time.Duration) (*TcpClient, Address, error) {
	return s.accept(timeout)
}

func (s *ServerSocket) accept(timeout time.Duration) (*TcpClient, Address, error) {
	fd := s.core.FD()
	if s.core.IsClosed() {
		return nil, Address{}, errors.New(errors.Logic, "server_socket: accept on closed socket")
	}
	mode, err := socket.Poll(fd, timeout, socket.PollRead)
	if err != nil {
		return nil, Address{}, err
	}
	if mode == 0 {
		return nil, Address{}, errors.New(errors.Timeout, "server_socket: accept timed out")
	}
	nfd, sa, err := socket.Accept(fd)
	if err != nil {
		return nil, Address{}, err
	}
	ip, port := socket.IPFromSockaddr(sa)
	family := s.core.Family()
	peer, aerr := FromRaw(family, normalizeRaw(family, ip), port)
	if aerr != nil {
		_ = socket.Close(nfd)
		return nil, Address{}, aerr
	}
	// Accepted connections default to blocking mode with a bounded recv
	// timeout so a TcpServerConnection's Run loop can issue plain
	// recv_bytes calls while still periodically rechecking stop_requested.
	if err := socket.SetBlocking(nfd, true); err != nil {
		_ = socket.Close(nfd)
		return nil, Address{}, err
	}
	if err := socket.SetRecvTimeout(nfd, defaultAcceptedRecvTimeout); err != nil {
		_ = socket.Close(nfd)
		return nil, Address{}, err
	}
	client := adoptConnected(nfd, family, s.local, peer)
	return client, peer, nil
}

// defaultAcceptedRecvTimeout bounds how long a connection handler's plain
// RecvBytes call blocks before returning WouldBlock, giving Run loops a
// chance to recheck stop_requested (spec.md §4.10).
const defaultAcceptedRecvTimeout = time.Second

func normalizeRaw(family Family, ip []byte) []byte {
	if family == IPv4 && len(ip) == 16 {
		return ip[12:16]
	}
	return ip
}

// HasPendingConnections polls read-readiness without accepting.
func (s *ServerSocket) HasPendingConnections(timeout time.Duration) (bool, error) {
	mode, err := socket.Poll(s.core.FD(), timeout, socket.PollRead)
	if err != nil {
		return false, err
	}
	return mode != 0, nil
}

func (s *ServerSocket) SetReuseAddress(flag bool) error { return s.core.SetReuseAddress(flag) }
func (s *ServerSocket) SetReusePort(flag bool) error    { return s.core.SetReusePort(flag) }

func (s *ServerSocket) Close() error  { return s.core.Close() }
func (s *ServerSocket) IsClosed() bool { return s.core.IsClosed() }
func (s *ServerSocket) FD() int        { return s.core.FD() }
