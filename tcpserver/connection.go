// Package tcpserver provides a multi-threaded (goroutine pool backed) TCP
// server: an acceptor loop submits accepted connections to a pool of
// workers, each running one TcpServerConnection to completion; a connection
// that arrives while every worker is busy is closed, not queued.
package tcpserver

import (
	"sync"
	"time"

	"github.com/fbnet-go/fbnet"
	"github.com/fbnet-go/fbnet/internal/logging"
	"github.com/fbnet-go/fbnet/signal"
	"go.uber.org/atomic"
)

// Connection is the per-connection handler contract. Run is called exactly
// once on a worker goroutine; it must poll StopRequested at reasonable
// intervals and return promptly once it reports true.
type Connection interface {
	Run()
	StopRequested() bool
	Stop()
}

// BaseConnection implements the bookkeeping every Connection needs
// (socket ownership, addresses, uptime, stop flag, signals) so concrete
// handlers only need to implement Run's business logic by embedding this
// and calling Socket()/ClientAddress() etc.
type BaseConnection struct {
	mu         sync.Mutex
	socket     *fbnet.TcpClient
	clientAddr   fbnet.Address
	localAddr    fbnet.Address
	startedAt    time.Time
	lastActivity time.Time
	stop         atomic.Bool

	OnConnectionStarted signal.Signal0
	OnConnectionClosing signal.Signal0
	OnConnectionClosed  signal.Signal0
	OnException         signal.Signal1[error]
}

// NewBaseConnection constructs the bookkeeping for a handler; concrete
// connection types embed this.
func NewBaseConnection(socket *fbnet.TcpClient, clientAddr fbnet.Address) *BaseConnection {
	return &BaseConnection{
		socket:     socket,
		clientAddr: clientAddr,
		localAddr:  socket.LocalAddress(),
	}
}

func (c *BaseConnection) Socket() *fbnet.TcpClient     { return c.socket }
func (c *BaseConnection) ClientAddress() fbnet.Address { return c.clientAddr }
func (c *BaseConnection) LocalAddress() fbnet.Address  { return c.localAddr }
func (c *BaseConnection) IsConnected() bool            { return c.socket.IsConnected() }

func (c *BaseConnection) Uptime() time.Duration {
	c.mu.Lock()
	started := c.startedAt
	c.mu.Unlock()
	if started.IsZero() {
		return 0
	}
	return time.Since(started)
}

func (c *BaseConnection) SetTimeout(d time.Duration) error {
	if err := c.socket.SetRecvTimeout(d); err != nil {
		return err
	}
	return c.socket.SetSendTimeout(d)
}

func (c *BaseConnection) SetNoDelay(on bool) error  { return c.socket.SetNoDelay(on) }
func (c *BaseConnection) SetKeepAlive(on bool) error { return c.socket.SetKeepAlive(on) }

func (c *BaseConnection) StopRequested() bool { return c.stop.Load() }
func (c *BaseConnection) Stop()               { c.stop.Store(true) }

// touch records observed I/O activity for idle-timeout tracking.
func (c *BaseConnection) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// Idle reports how long it has been since the last successful Recv/Send
// through this connection's helper methods (or since Start, if none yet).
func (c *BaseConnection) Idle() time.Duration {
	c.mu.Lock()
	last := c.lastActivity
	c.mu.Unlock()
	if last.IsZero() {
		return 0
	}
	return time.Since(last)
}

// Recv reads into buf, touching the idle clock on any non-empty read.
// Handlers that want idle-timeout enforcement should read through this
// instead of calling Socket().RecvBytes directly.
func (c *BaseConnection) Recv(buf []byte) (int, error) {
	n, err := c.socket.RecvBytes(buf)
	if n > 0 {
		c.touch()
	}
	return n, err
}

// Send writes all of buf, touching the idle clock on success.
func (c *BaseConnection) Send(buf []byte) (int, error) {
	n, err := c.socket.SendBytesAll(buf)
	if err == nil {
		c.touch()
	}
	return n, err
}

// baseConnection lets Server's active-connection bookkeeping recover the
// embedded *BaseConnection from any concrete Connection that embeds it.
func (c *BaseConnection) baseConnection() *BaseConnection { return c }

// Start invokes run on the current goroutine, emitting the lifecycle
// signals and routing a panic into OnException instead of letting it cross
// into the worker loop. No per-type exception hook is called; OnException
// is the only place a recovered panic is reported.
func (c *BaseConnection) Start(run func()) {
	now := time.Now()
	c.mu.Lock()
	c.startedAt = now
	c.lastActivity = now
	c.mu.Unlock()

	c.OnConnectionStarted.Emit()
	func() {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = toError(r)
				}
				_ = logging.LogErr(err)
				c.OnException.Emit(err)
			}
		}()
		run()
	}()
	c.OnConnectionClosing.Emit()
	_ = c.socket.Close()
	c.OnConnectionClosed.Emit()
}

func toError(r interface{}) error {
	return &panicError{v: r}
}

type panicError struct{ v interface{} }

func (p *panicError) Error() string { return "connection panic recovered" }
