// Package udpserver provides a multi-threaded UDP server: a receiver
// goroutine submits each packet to an ants worker pool, each worker
// invoking a Handler's ProcessPacket; a packet that arrives while every
// worker is busy is dropped, not queued.
package udpserver

import (
	"sync"
	"time"

	"github.com/fbnet-go/fbnet"
)

// PacketData is an owned copy of one received datagram.
type PacketData struct {
	Buffer    []byte
	Sender    fbnet.Address
	ArrivalAt time.Time
}

// Handler processes individual UDP packets. HandlePacket does the actual
// work; ProcessPacket (provided by BaseHandler) wraps it with validation,
// hooks, panic recovery, and counters.
type Handler interface {
	HandlePacket(data PacketData) error
	MaxPacketSize() int
	CanHandleAddress(addr fbnet.Address) bool
	ProcessPacket(data PacketData)
}

// HandlerFunc adapts a plain function to the core of Handler, using
// BaseHandler's defaults for MaxPacketSize/CanHandleAddress.
type HandlerFunc struct {
	*BaseHandler
	fn func(PacketData) error
}

// NewHandlerFunc wraps fn as a Handler.
func NewHandlerFunc(fn func(PacketData) error) *HandlerFunc {
	h := &HandlerFunc{fn: fn}
	h.BaseHandler = NewBaseHandler(h)
	return h
}

func (h *HandlerFunc) HandlePacket(data PacketData) error { return h.fn(data) }

// BaseHandler implements ProcessPacket's validation/hooks/counters/panic
// recovery around a core HandlePacket provided by the embedder.
type BaseHandler struct {
	core interface{ HandlePacket(PacketData) error }

	mu               sync.Mutex
	packetsProcessed int64
	bytesProcessed   int64
	errCount         int64
	createdAt        time.Time
	lastPacketAt     time.Time

	beforeHook func(PacketData)
	afterHook  func(PacketData, error)
}

func NewBaseHandler(core interface{ HandlePacket(PacketData) error }) *BaseHandler {
	return &BaseHandler{core: core, createdAt: time.Now()}
}

// MaxPacketSize defaults to the maximum UDP datagram size; override in a
// concrete handler to restrict it.
func (h *BaseHandler) MaxPacketSize() int { return 65507 }

// CanHandleAddress defaults to accepting all senders.
func (h *BaseHandler) CanHandleAddress(fbnet.Address) bool { return true }

// SetHooks installs before/after callbacks run around HandlePacket.
func (h *BaseHandler) SetHooks(before func(PacketData), after func(PacketData, error)) {
	h.beforeHook = before
	h.afterHook = after
}

func (h *BaseHandler) validatePacket(data PacketData, maxSize int) error {
	if len(data.Buffer) > maxSize {
		return errTooLarge
	}
	return nil
}

// ProcessPacket validates, runs before/after hooks around HandlePacket,
// recovers panics into the error counter, and updates per-instance
// counters. Concrete handlers should not call this directly; UdpServer
// does, on the handler interface.
func (h *BaseHandler) ProcessPacket(data PacketData) {
	if err := h.validatePacket(data, h.core.(Handler).MaxPacketSize()); err != nil {
		h.recordError()
		return
	}
	if h.beforeHook != nil {
		h.beforeHook(data)
	}
	err := h.invoke(data)
	if h.afterHook != nil {
		h.afterHook(data, err)
	}
	if err != nil {
		h.recordError()
		return
	}
	h.mu.Lock()
	h.packetsProcessed++
	h.bytesProcessed += int64(len(data.Buffer))
	h.lastPacketAt = data.ArrivalAt
	h.mu.Unlock()
}

func (h *BaseHandler) invoke(data PacketData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errPanic
		}
	}()
	return h.core.HandlePacket(data)
}

func (h *BaseHandler) recordError() {
	h.mu.Lock()
	h.errCount++
	h.mu.Unlock()
}

func (h *BaseHandler) Stats() (processed, bytes, errs int64, created, last time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.packetsProcessed, h.bytesProcessed, h.errCount, h.createdAt, h.lastPacketAt
}

var (
	errTooLarge = &handlerError{"udpserver: packet exceeds max_packet_size"}
	errPanic    = &handlerError{"udpserver: panic recovered in handle_packet"}
)

type handlerError struct{ msg string }

func (e *handlerError) Error() string { return e.msg }
