package udpserver

import (
	"sync"
	"time"

	"github.com/fbnet-go/fbnet"
	"github.com/fbnet-go/fbnet/config"
	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/logging"
	"github.com/fbnet-go/fbnet/internal/socket"
	"github.com/fbnet-go/fbnet/signal"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

const (
	DefaultMaxThreads       = 10
	DefaultMaxQueued        = 1000
	DefaultPacketBufferSize = 65507

	receivePollInterval = time.Second
)

// HandlerFactory builds a fresh Handler for a just-queued packet; returning
// nil drops the packet.
type HandlerFactory func(data PacketData) Handler

// Server is a multi-threaded UDP server: a receiver goroutine submits each
// packet to an ants worker pool running in non-blocking mode. There is no
// waiting queue: a packet received while every worker is busy is dropped
// and counted in TotalDropped; QueuedPackets counts submitted tasks that
// have not started yet, capped at max_queued. Workers never
// outlive Stop (unlike tcpserver, stragglers are always joined since they
// touch server-owned counters).
type Server struct {
	socket  *fbnet.UdpSocket
	handler Handler
	factory HandlerFactory

	maxThreads int
	maxQueued  int

	packetBufferSize int
	packetTimeout    time.Duration

	mu         sync.Mutex
	running    bool
	pool       *ants.Pool
	queued     atomic.Int64
	wg         sync.WaitGroup
	shouldStop atomic.Bool
	startedAt  time.Time

	totalReceived  atomic.Int64
	totalProcessed atomic.Int64
	totalDropped   atomic.Int64

	OnServerStarted            signal.Signal0
	OnServerStopping           signal.Signal0
	OnServerStopped            signal.Signal0
	OnPacketReceived           signal.Signal2[[]byte, fbnet.Address]
	OnActiveConnectionsChanged signal.Signal1[int]
	OnWorkerCreated            signal.Signal0
	OnWorkerDestroyed          signal.Signal0
	OnException                signal.Signal2[error, string]
}

// NewWithHandler constructs a Server sharing one Handler instance across
// all packets.
func NewWithHandler(socket *fbnet.UdpSocket, handler Handler) *Server {
	return &Server{
		socket:           socket,
		handler:          handler,
		maxThreads:       DefaultMaxThreads,
		maxQueued:        DefaultMaxQueued,
		packetBufferSize: DefaultPacketBufferSize,
	}
}

// NewWithFactory constructs a Server that builds a fresh Handler per packet.
func NewWithFactory(socket *fbnet.UdpSocket, factory HandlerFactory) *Server {
	return &Server{
		socket:           socket,
		factory:          factory,
		maxThreads:       DefaultMaxThreads,
		maxQueued:        DefaultMaxQueued,
		packetBufferSize: DefaultPacketBufferSize,
	}
}

func (s *Server) SetMaxThreads(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "udpserver: cannot change max_threads while running")
	}
	s.maxThreads = n
	return nil
}

func (s *Server) SetMaxQueued(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "udpserver: cannot change max_queued while running")
	}
	s.maxQueued = n
	return nil
}

func (s *Server) SetPacketBufferSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "udpserver: cannot change packet_buffer_size while running")
	}
	s.packetBufferSize = n
	return nil
}

// SetPacketTimeout sets the max age a queued packet may reach before being
// dropped instead of processed; zero (the default) means no expiry.
func (s *Server) SetPacketTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New(errors.Logic, "udpserver: cannot change packet_timeout while running")
	}
	s.packetTimeout = d
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
	if cfg.PacketBufferSize > 0 {
		if err := s.SetPacketBufferSize(cfg.PacketBufferSize); err != nil {
			return err
		}
	}
	if cfg.PacketTimeout.Std() > 0 {
		if err := s.SetPacketTimeout(cfg.PacketTimeout.Std()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(errors.Logic, "udpserver: already running")
	}
	if s.socket == nil || s.socket.IsClosed() {
		s.mu.Unlock()
		return errors.New(errors.Logic, "udpserver: socket not set or closed")
	}
	pool, err := ants.NewPool(s.maxThreads, ants.WithNonblocking(true))
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(errors.Logic, "udpserver: create worker pool", err)
	}
	s.pool = pool
	s.startedAt = time.Now()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.receiveLoop()

	s.OnServerStarted.Emit()
	return nil
}

func (s *Server) receiveLoop() {
	defer s.wg.Done()
	scratch := make([]byte, s.packetBufferSize)
	for {
		if s.shouldStop.Load() {
			return
		}
		n, sender, err := s.recvWithTimeout(scratch, receivePollInterval)
		if err != nil {
			if fberr, ok := err.(*errors.Error); ok && fberr.Kind == errors.Timeout {
				continue
			}
			if s.shouldStop.Load() {
				return
			}
			s.OnException.Emit(err, "recv")
			continue
		}

		s.totalReceived.Inc()
		s.OnPacketReceived.Emit(scratch[:n], sender)

		owned := make([]byte, n)
		copy(owned, scratch[:n])
		data := PacketData{Buffer: owned, Sender: sender, ArrivalAt: time.Now()}

		if s.queued.Load() >= int64(s.maxQueued) {
			s.totalDropped.Inc()
			logging.Warnf("udpserver: dropping packet from %s, queue full", sender)
			continue
		}
		s.queued.Inc()
		s.wg.Add(1)

		submitErr := s.pool.Submit(func() {
			defer s.wg.Done()
			s.queued.Dec()
			s.processPacket(data)
		})
		if submitErr != nil {
			s.wg.Done()
			s.queued.Dec()
			s.totalDropped.Inc()
			logging.Warnf("udpserver: worker pool rejected packet from %s: %v", sender, submitErr)
		}
	}
}

func (s *Server) recvWithTimeout(buf []byte, timeout time.Duration) (int, fbnet.Address, error) {
	mode, err := s.socket.Poll(timeout, socket.PollRead)
	if err != nil {
		return 0, fbnet.Address{}, err
	}
	if mode == 0 {
		return 0, fbnet.Address{}, errors.New(errors.Timeout, "udpserver: recv timed out")
	}
	return s.socket.RecvFrom(buf)
}

func (s *Server) processPacket(data PacketData) {
	if s.packetTimeout > 0 && time.Since(data.ArrivalAt) > s.packetTimeout {
		s.totalDropped.Inc()
		return
	}

	handler := s.handler
	if handler == nil {
		if s.factory == nil {
			s.totalDropped.Inc()
			return
		}
		handler = s.factory(data)
		if handler == nil {
			s.totalDropped.Inc()
			return
		}
	}
	if !handler.CanHandleAddress(data.Sender) {
		s.totalDropped.Inc()
		return
	}
	handler.ProcessPacket(data)
	s.totalProcessed.Inc()
}

// Stop always joins the receiver and all workers (never detaches): worker
// tasks close over server-owned state and must not outlive Stop.
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
	errs = multierr.Append(errs, s.socket.Close())

	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	if s.pool != nil {
		errs = multierr.Append(errs, s.pool.ReleaseTimeout(timeout))
	}
	s.mu.Unlock()

	s.OnServerStopped.Emit()
	return errs
}

func (s *Server) TotalReceived() int64  { return s.totalReceived.Load() }
func (s *Server) TotalProcessed() int64 { return s.totalProcessed.Load() }
func (s *Server) TotalDropped() int64   { return s.totalDropped.Load() }
func (s *Server) QueuedPackets() int64  { return s.queued.Load() }

func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
