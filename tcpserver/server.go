package tcpserver

import (
	"sync"
	"time"

	"github.com/fbnet-go/fbnet"
	"github.com/fbnet-go/fbnet/config"
	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/logging"
	"github.com/fbnet-go/fbnet/signal"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

const (
	DefaultMaxThreads = 100
	DefaultMaxQueued  = 100

	acceptPollInterval = time.Second
	idleCheckInterval  = time.Second
)

// Factory builds a Connection handler for an accepted socket.
type Factory func(client *fbnet.TcpClient, addr fbnet.Address) Connection

// Server is a multi-threaded TCP server: an acceptor goroutine submits each
// accepted connection to an ants worker pool running in non-blocking mode,
// and each worker runs one Connection to completion. There is no waiting
// queue: a connection accepted while every worker is busy is rejected by
// the pool and closed. QueuedConnections counts submitted tasks that have
// not started yet, capped at max_queued.
type Server struct {
	listener *fbnet.ServerSocket
	factory  Factory

	maxThreads int
	maxQueued  int

	connTimeout time.Duration
	idleTimeout time.Duration

	mu       sync.Mutex
	running  bool
	pool     *ants.Pool
	queued   atomic.Int64
	wg       sync.WaitGroup
	active   map[*BaseConnection]Connection
	activeMu sync.Mutex

	startedAt        time.Time
	totalConnections atomic.Int64
	shouldStop       atomic.Bool

	OnServerStarted            signal.Signal0
	OnServerStopping           signal.Signal0
	OnServerStopped            signal.Signal0
	OnConnectionAccepted       signal.Signal1[fbnet.Address]
	OnConnectionClosed         signal.Signal1[fbnet.Address]
	OnActiveConnectionsChanged signal.Signal1[int]
	OnException                signal.Signal2[error, string]
}

// New constructs a Server bound to listener with factory and default
// max_threads/max_queued (100/100).
func New(listener *fbnet.ServerSocket, factory Factory) *Server {
	return &Server{
		listener:   listener,
		factory:    factory,
		maxThreads: DefaultMaxThreads,
		maxQueued:  DefaultMaxQueued,
		active:     make(map[*BaseConnection]Connection),
	}
}

// SetMaxThreads, SetMaxQueued, SetConnectionTimeout, and SetIdleTimeout are
// rejected with Logic once the server is running.
func (s *Server) SetMaxThreads(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "tcpserver: cannot change max_threads while running")
	}
	s.maxThreads = n
	return nil
}

func (s *Server) SetMaxQueued(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "tcpserver: cannot change max_queued while running")
	}
	s.maxQueued = n
	return nil
}

func (s *Server) SetConnectionTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "tcpserver: cannot change connection_timeout while running")
	}
	s.connTimeout = d
	return nil
}

func (s *Server) SetIdleTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "tcpserver: cannot change idle_timeout while running")
	}
	s.idleTimeout = d
	return nil
}

// ApplyConfig overrides constructor defaults from a loaded ServerConfig;
// zero fields are left untouched. Must be called before Start.
func (s *Server) ApplyConfig(cfg *config.ServerConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.MaxThreads > 0 {
		if err := s.SetMaxThreads(cfg.MaxThreads); err != nil {
			return err
		}
	}
	if cfg.MaxQueued > 0 {
		if err := s.SetMaxQueued(cfg.MaxQueued); err != nil {
			return err
		}
	}
	if cfg.ConnectionTimeout.Std() > 0 {
		if err := s.SetConnectionTimeout(cfg.ConnectionTimeout.Std()); err != nil {
			return err
		}
	}
	if cfg.IdleTimeout.Std() > 0 {
		if err := s.SetIdleTimeout(cfg.IdleTimeout.Std()); err != nil {
			return err
		}
	}
	return nil
}

// Start validates the server's configuration, launches the acceptor and an
// initial pool of workers, and emits OnServerStarted.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(errors.Logic, "tcpserver: already running")
	}
	if s.listener == nil || s.listener.IsClosed() {
		s.mu.Unlock()
		return errors.New(errors.Logic, "tcpserver: listener not set or closed")
	}
	if s.factory == nil {
		s.mu.Unlock()
		return errors.New(errors.Logic, "tcpserver: factory not set")
	}
	pool, err := ants.NewPool(s.maxThreads, ants.WithNonblocking(true))
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(errors.Logic, "tcpserver: create worker pool", err)
	}
	s.pool = pool
	s.startedAt = time.Now()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop()

	if s.idleTimeout > 0 {
		s.wg.Add(1)
		go s.idleLoop()
	}

	s.OnServerStarted.Emit()
	return nil
}

// idleLoop periodically stops any active connection whose BaseConnection
// has observed no Recv/Send activity for longer than idleTimeout.
// Connections that don't embed BaseConnection (and so can't report an
// idle duration) are left alone.
func (s *Server) idleLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for range ticker.C {
		if s.shouldStop.Load() {
			return
		}
		s.activeMu.Lock()
		for bc, conn := range s.active {
			if bc.Idle() > s.idleTimeout {
				conn.Stop()
			}
		}
		s.activeMu.Unlock()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		if s.shouldStop.Load() {
			return
		}
		client, addr, err := s.listener.AcceptWithTimeout(acceptPollInterval)
		if err != nil {
			if fberr, ok := err.(*errors.Error); ok && fberr.Kind == errors.Timeout {
				continue
			}
			if s.shouldStop.Load() {
				return
			}
			s.OnException.Emit(err, "accept")
			continue
		}

		conn := s.factory(client, addr)
		if conn == nil {
			_ = client.Close()
			continue
		}

		if s.queued.Load() >= int64(s.maxQueued) {
			_ = client.Close()
			logging.Warnf("tcpserver: dropping connection from %s, queue full", addr)
			continue
		}
		s.queued.Inc()
		s.totalConnections.Inc()
		s.OnConnectionAccepted.Emit(addr)

		task := conn
		taskAddr := addr
		submitErr := s.pool.Submit(func() {
			s.queued.Dec()
			s.runConnection(task, taskAddr)
		})
		if submitErr != nil {
			s.queued.Dec()
			_ = client.Close()
			logging.Warnf("tcpserver: worker pool rejected connection from %s: %v", addr, submitErr)
		}
	}
}

func (s *Server) runConnection(conn Connection, addr fbnet.Address) {
	if bc, ok := connBase(conn); ok {
		s.activeMu.Lock()
		s.active[bc] = conn
		n := len(s.active)
		s.activeMu.Unlock()
		s.OnActiveConnectionsChanged.Emit(n)
	}

	conn.Run()

	if bc, ok := connBase(conn); ok {
		s.activeMu.Lock()
		delete(s.active, bc)
		n := len(s.active)
		s.activeMu.Unlock()
		s.OnActiveConnectionsChanged.Emit(n)
	}
	s.OnConnectionClosed.Emit(addr)
}

// connBase extracts the *BaseConnection out of a Connection that embeds it,
// for active-list bookkeeping; connections that don't embed BaseConnection
// are tracked by reference only (no uptime/stop integration).
func connBase(c Connection) (*BaseConnection, bool) {
	type hasBase interface{ baseConnection() *BaseConnection }
	if hb, ok := c.(hasBase); ok {
		return hb.baseConnection(), true
	}
	return nil, false
}

// Stop requests shutdown and waits up to timeout for the acceptor and all
// in-flight connections to finish; threads still running past the deadline
// are abandoned (the acceptor's listener is already closed, so they can
// only be in application code, which owns its own shutdown promptness).
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.OnServerStopping.Emit()
	s.shouldStop.Store(true)
	var errs error
	errs = multierr.Append(errs, s.listener.Close())

	s.activeMu.Lock()
	for _, conn := range s.active {
		conn.Stop()
	}
	s.activeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logging.Warnf("tcpserver: stop deadline exceeded, acceptor goroutine detached")
		errs = multierr.Append(errs, errors.New(errors.Timeout, "tcpserver: stop deadline exceeded"))
	}

	s.mu.Lock()
	s.running = false
	if s.pool != nil {
		errs = multierr.Append(errs, s.pool.ReleaseTimeout(timeout))
	}
	s.mu.Unlock()

	s.OnServerStopped.Emit()
	return errs
}

func (s *Server) ActiveConnections() int {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return len(s.active)
}

func (s *Server) ThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return 0
	}
	return s.pool.Running()
}

func (s *Server) TotalConnections() int64 { return s.totalConnections.Load() }
func (s *Server) QueuedConnections() int64 { return s.queued.Load() }

func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
