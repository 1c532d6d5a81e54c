package fbnet

import (
	"sync"
	"time"

	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
	"github.com/fbnet-go/fbnet/signal"
)

// TcpClient is a stream endpoint: connect (blocking, timed, or non-blocking),
// byte-oriented send/recv, shutdown, and urgent data, with a signal surface
// mirroring every state transition.
type TcpClient struct {
	core *SocketCore

	mu          sync.Mutex
	connected   bool
	peer        Address
	local       Address

	OnConnected       signal.Signal1[Address]
	OnDisconnected    signal.Signal0
	OnConnectionError signal.Signal1[string]
	OnDataReceived    signal.Signal1[[]byte]
	OnDataSent        signal.Signal1[int]
	OnSendError       signal.Signal1[string]
	OnReceiveError    signal.Signal1[string]
	OnShutdownInitiated signal.Signal0
}

// NewTcpClient constructs an unconnected client.
func NewTcpClient() *TcpClient {
	return &TcpClient{core: NewSocketCore()}
}

// adoptConnected wraps an already-connected fd (from ServerSocket.Accept).
func adoptConnected(fd int, family Family, local, peer Address) *TcpClient {
	c := NewTcpClient()
	c.core.adopt(fd, family, socket.Stream)
	c.connected = true
	c.local = local
	c.peer = peer
	return c
}

func (c *TcpClient) Connect(addr Address) error {
	if err := c.core.Connect(addr); err != nil {
		c.OnConnectionError.Emit(err.Error())
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.peer = addr
	c.mu.Unlock()
	c.OnConnected.Emit(addr)
	return nil
}

func (c *TcpClient) ConnectWithTimeout(addr Address, timeout time.Duration) error {
	if err := c.core.ConnectWithTimeout(addr, timeout); err != nil {
		if fberr, ok := err.(*errors.Error); !ok || fberr.Kind != errors.InProgress {
			c.OnConnectionError.Emit(err.Error())
		}
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.peer = addr
	c.mu.Unlock()
	c.OnConnected.Emit(addr)
	return nil
}

// ConnectNonBlocking issues the connect and returns immediately without
// waiting for completion; InProgress is not treated as an error.
func (c *TcpClient) ConnectNonBlocking(addr Address) error {
	if c.core.IsClosed() {
		// Init creates the socket already in non-blocking mode.
		if err := c.core.Init(addr.Family(), socket.Stream); err != nil {
			c.OnConnectionError.Emit(err.Error())
			return err
		}
	} else if err := c.core.SetBlocking(false); err != nil {
		c.OnConnectionError.Emit(err.Error())
		return err
	}
	err := socket.Connect(c.core.FD(), socket.SockaddrFromIP(addr.IP(), addr.Port()))
	if err == nil {
		c.mu.Lock()
		c.connected = true
		c.peer = addr
		c.mu.Unlock()
		c.OnConnected.Emit(addr)
		return nil
	}
	if fberr, ok := err.(*errors.Error); ok && fberr.Kind == errors.InProgress {
		c.mu.Lock()
		c.peer = addr
		c.mu.Unlock()
		return err
	}
	c.OnConnectionError.Emit(err.Error())
	return err
}

func (c *TcpClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *TcpClient) ClientAddress() Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

func (c *TcpClient) LocalAddress() Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// SendBytes issues one send call; returning (0, nil) means "nothing sent
// this call", never treated as EOF.
func (c *TcpClient) SendBytes(buf []byte) (int, error) {
	n, err := socket.Send(c.core.FD(), buf, 0)
	if err != nil {
		c.OnSendError.Emit(err.Error())
		return n, err
	}
	if n > 0 {
		c.OnDataSent.Emit(n)
	}
	return n, nil
}

// SendBytesAll loops SendBytes until all of buf is sent, a fatal error
// occurs, or a short-write condition stalls progress; it never spins.
func (c *TcpClient) SendBytesAll(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.SendBytes(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
	return total, nil
}

// RecvBytes issues one recv call. A return of (0, nil) means the peer
// closed the read side; the client transitions to not-connected and emits
// OnDisconnected.
func (c *TcpClient) RecvBytes(buf []byte) (int, error) {
	n, err := socket.Recv(c.core.FD(), buf, 0)
	if err != nil {
		if socket.IsWouldBlock(err) {
			return 0, err
		}
		c.OnReceiveError.Emit(err.Error())
		return 0, err
	}
	if n == 0 {
		c.mu.Lock()
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()
		if wasConnected {
			c.OnDisconnected.Emit()
		}
		return 0, nil
	}
	c.OnDataReceived.Emit(buf[:n])
	return n, nil
}

// RecvBytesExact loops RecvBytes until buf is full or the peer closes;
// returns the partial count on short read. A receive timeout (WouldBlock)
// also ends the loop, returning the partial count with a nil error.
func (c *TcpClient) RecvBytesExact(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.RecvBytes(buf[total:])
		if err != nil && !socket.IsWouldBlock(err) {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
	return total, nil
}

func (c *TcpClient) SendString(s string) (int, error) { return c.SendBytes([]byte(s)) }

// Shutdown closes the given half (or both) of the connection.
func (c *TcpClient) Shutdown(how int) error {
	c.OnShutdownInitiated.Emit()
	return socket.Shutdown(c.core.FD(), how)
}

// SendUrgent bypasses the byte stream and sends one OOB byte.
func (c *TcpClient) SendUrgent(b byte) error {
	return socket.SendUrgent(c.core.FD(), b)
}

func (c *TcpClient) SetNoDelay(on bool) error  { return c.core.SetNoDelay(on) }
func (c *TcpClient) SetKeepAlive(on bool) error { return c.core.SetKeepAlive(on) }

func (c *TcpClient) SetRecvTimeout(d time.Duration) error { return c.core.SetRecvTimeout(d) }
func (c *TcpClient) SetSendTimeout(d time.Duration) error { return c.core.SetSendTimeout(d) }

func (c *TcpClient) Poll(timeout time.Duration, mode socket.PollMode) (socket.PollMode, error) {
	return c.core.Poll(timeout, mode)
}

func (c *TcpClient) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return c.core.Close()
}

func (c *TcpClient) FD() int { return c.core.FD() }
