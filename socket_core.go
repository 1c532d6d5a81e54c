package fbnet

import (
	"sync"
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
)

// SocketCore wraps a single native socket handle: creation, close, option
// get/set, blocking-mode toggle, bind/listen/connect/accept, and a
// single-handle poll. TcpClient, ServerSocket, and UdpSocket each embed one.
type SocketCore struct {
	mu     sync.Mutex
	fd     int
	family Family
	typ    socket.Type
	closed bool
	inited bool
}

// NewSocketCore constructs a SocketCore in the closed, uninitialized state;
// the native socket is not created until Init or an operation that implies
// it (Connect/Bind) is called.
func NewSocketCore() *SocketCore {
	return &SocketCore{fd: -1, closed: true}
}

// Init creates the native socket for (family, type). Calling Init twice
// raises Logic.
func (s *SocketCore) Init(family Family, typ socket.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inited {
		return errors.New(errors.Logic, "socket_core: double init")
	}
	fd, err := socket.Create(socket.Family(family), typ)
	if err != nil {
		return err
	}
	s.fd = fd
	s.family = family
	s.typ = typ
	s.closed = false
	s.inited = true
	return nil
}

// adopt installs an already-open fd (e.g. one returned by accept), skipping
// Create. Used by ServerSocket.Accept.
func (s *SocketCore) adopt(fd int, family Family, typ socket.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fd = fd
	s.family = family
	s.typ = typ
	s.closed = false
	s.inited = true
}

func (s *SocketCore) requireOpen(op string) error {
	if s.closed {
		return errors.New(errors.Logic, "socket_core: "+op+" on closed socket")
	}
	return nil
}

// Close is idempotent: releasing an already-closed socket is a no-op.
func (s *SocketCore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return socket.Close(s.fd)
}

func (s *SocketCore) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SocketCore) FD() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

func (s *SocketCore) Family() Family {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.family
}

// SetBlocking toggles the socket's O_NONBLOCK flag.
func (s *SocketCore) SetBlocking(blocking bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("set_blocking"); err != nil {
		return err
	}
	return socket.SetBlocking(s.fd, blocking)
}

// SetOption/GetOption expose the uniform get/set_option(level, name, value)
// contract; specific wrappers below cover the common cases.
func (s *SocketCore) SetOption(level, name, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("set_option"); err != nil {
		return err
	}
	return socket.SetIntOption(s.fd, level, name, value)
}

func (s *SocketCore) GetOption(level, name int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("get_option"); err != nil {
		return 0, err
	}
	return socket.GetIntOption(s.fd, level, name)
}

// ReuseAddress: flag=false requests exclusive binding where the platform
// supports it; flag=true requests standard reuse (SO_REUSEADDR).
func (s *SocketCore) SetReuseAddress(flag bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("reuse_address"); err != nil {
		return err
	}
	return socket.SetReuseAddr(s.fd, flag)
}

func (s *SocketCore) ReuseAddress() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("reuse_address"); err != nil {
		return false, err
	}
	return socket.GetReuseAddr(s.fd)
}

// SetReusePort is a no-op returning nil where the platform lacks it.
func (s *SocketCore) SetReusePort(flag bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("reuse_port"); err != nil {
		return err
	}
	if err := socket.SetReusePort(s.fd, flag); err != nil {
		if e, ok := err.(*errors.Error); ok && e.Kind == errors.Unsupported {
			return nil
		}
		return err
	}
	return nil
}

func (s *SocketCore) SetKeepAlive(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("keep_alive"); err != nil {
		return err
	}
	return socket.SetKeepAlive(s.fd, on)
}

func (s *SocketCore) KeepAlive() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("keep_alive"); err != nil {
		return false, err
	}
	return socket.GetKeepAlive(s.fd)
}

// SetNoDelay is TCP-only; callers using it on a UDP socket will get an Io
// error from the kernel (no special-casing here, matching the original).
func (s *SocketCore) SetNoDelay(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("no_delay"); err != nil {
		return err
	}
	return socket.SetNoDelay(s.fd, on)
}

func (s *SocketCore) NoDelay() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("no_delay"); err != nil {
		return false, err
	}
	return socket.GetNoDelay(s.fd)
}

func (s *SocketCore) SetBroadcast(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("broadcast"); err != nil {
		return err
	}
	return socket.SetBroadcast(s.fd, on)
}

func (s *SocketCore) Broadcast() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("broadcast"); err != nil {
		return false, err
	}
	return socket.GetBroadcast(s.fd)
}

func (s *SocketCore) SetLinger(on bool, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("linger"); err != nil {
		return err
	}
	return socket.SetLinger(s.fd, on, seconds)
}

func (s *SocketCore) Linger() (on bool, seconds int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("linger"); err != nil {
		return false, 0, err
	}
	return socket.GetLinger(s.fd)
}

func (s *SocketCore) SetSendBufferSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("send_buffer_size"); err != nil {
		return err
	}
	return socket.SetSendBufferSize(s.fd, n)
}

func (s *SocketCore) SendBufferSize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("send_buffer_size"); err != nil {
		return 0, err
	}
	return socket.GetSendBufferSize(s.fd)
}

func (s *SocketCore) SetRecvBufferSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("recv_buffer_size"); err != nil {
		return err
	}
	return socket.SetRecvBufferSize(s.fd, n)
}

func (s *SocketCore) RecvBufferSize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("recv_buffer_size"); err != nil {
		return 0, err
	}
	return socket.GetRecvBufferSize(s.fd)
}

func (s *SocketCore) SetSendTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("send_timeout"); err != nil {
		return err
	}
	return socket.SetSendTimeout(s.fd, d)
}

func (s *SocketCore) SetRecvTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("recv_timeout"); err != nil {
		return err
	}
	return socket.SetRecvTimeout(s.fd, d)
}

// Bind binds the socket to addr, lazily creating the native handle if Init
// was not called explicitly.
func (s *SocketCore) Bind(addr Address, typ socket.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		fd, err := socket.Create(socket.Family(addr.Family()), typ)
		if err != nil {
			return err
		}
		s.fd, s.family, s.typ, s.closed, s.inited = fd, addr.Family(), typ, false, true
	}
	sa := socket.SockaddrFromIP(addr.IP(), addr.Port())
	return socket.Bind(s.fd, sa)
}

// Listen marks the socket as a listening socket with the given backlog,
// clamped to an internal maximum.
func (s *SocketCore) Listen(backlog int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen("listen"); err != nil {
		return err
	}
	if backlog > maxBacklog {
		backlog = maxBacklog
	}
	return socket.Listen(s.fd, backlog)
}

const maxBacklog = 4096

// Connect issues a blocking connect attempt.
func (s *SocketCore) Connect(addr Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		fd, err := socket.Create(socket.Family(addr.Family()), socket.Stream)
		if err != nil {
			return err
		}
		s.fd, s.family, s.typ, s.closed, s.inited = fd, addr.Family(), socket.Stream, false, true
	}
	sa := socket.SockaddrFromIP(addr.IP(), addr.Port())
	if err := socket.SetBlocking(s.fd, true); err != nil {
		return err
	}
	return socket.Connect(s.fd, sa)
}

// ConnectWithTimeout performs a non-blocking connect, waiting on
// write-readiness up to timeout. On expiry it returns Timeout; the socket's
// blocking mode is restored before returning either way.
func (s *SocketCore) ConnectWithTimeout(addr Address, timeout time.Duration) error {
	s.mu.Lock()
	if !s.inited {
		fd, err := socket.Create(socket.Family(addr.Family()), socket.Stream)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.fd, s.family, s.typ, s.closed, s.inited = fd, addr.Family(), socket.Stream, false, true
	}
	fd := s.fd
	s.mu.Unlock()

	// The attempt itself runs non-blocking; restore blocking mode before
	// returning to the caller either way, matching spec.md §4.2.
	defer func() { _ = socket.SetBlocking(fd, true) }()

	sa := socket.SockaddrFromIP(addr.IP(), addr.Port())
	err := socket.Connect(fd, sa)
	if err == nil {
		return nil
	}
	fberr, ok := err.(*errors.Error)
	if !ok || (fberr.Kind != errors.InProgress && fberr.Kind != errors.WouldBlock) {
		return err
	}

	mode, perr := socket.Poll(fd, timeout, socket.PollWrite|socket.PollError)
	if perr != nil {
		return perr
	}
	if mode == 0 {
		return errors.New(errors.Timeout, "socket_core: connect timed out")
	}
	// SO_ERROR == 0 means the pending connect completed successfully; a
	// second connect() here would itself fail with EISCONN and must not be
	// mistaken for a real error.
	return socket.SocketError(fd)
}

// Poll returns the subset of the requested modes that became ready within
// timeout (zero if none).
// EINTR is treated as "no events, not an error".
func (s *SocketCore) Poll(timeout time.Duration, mode socket.PollMode) (socket.PollMode, error) {
	s.mu.Lock()
	fd := s.fd
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, errors.New(errors.Logic, "socket_core: poll on closed socket")
	}
	return socket.Poll(fd, timeout, mode)
}
