package signal

import "sync"

// Signal0 is a signal whose slots take no arguments, e.g. onDisconnected,
// onShutdownInitiated.
type Signal0 struct {
	once sync.Once
	core *core
}

// NewSignal0 constructs an empty signal. Signals are not movable or
// copyable in the original; in Go, pass *Signal0 by pointer and never copy
// the struct value, mirroring that constraint. Signal0's zero value is
// also ready to use (embedders don't need to call this), since c() lazily
// initializes the dispatch core on first access either way.
func NewSignal0() *Signal0 {
	s := &Signal0{}
	s.c()
	return s
}

// c returns the dispatch core, initializing it on first use so a zero-value
// Signal0 embedded as a struct field works without an explicit constructor.
func (s *Signal0) c() *core {
	s.once.Do(func() { s.core = newCore() })
	return s.core
}

// Connect registers fn, returning a handle to disconnect/block it later.
func (s *Signal0) Connect(fn func(), opts ...ConnectOption) *Connection {
	cfg := applyOptions(opts)
	return s.c().connect(cfg.priority, cfg.delivery, cfg.queue, func(args []any) { fn() })
}

// ConnectFiltered registers fn but only invokes it when filter returns true.
func (s *Signal0) ConnectFiltered(fn func(), filter func() bool, opts ...ConnectOption) *Connection {
	cfg := applyOptions(opts)
	return s.c().connect(cfg.priority, cfg.delivery, cfg.queue, func(args []any) {
		if filter() {
			fn()
		}
	})
}

// Emit invokes every active, unblocked slot per its delivery policy and
// priority order. A signal with zero connected slots returns immediately
// (spec.md §6).
func (s *Signal0) Emit() {
	if s.c().activeLen() == 0 {
		return
	}
	s.core.emit(nil)
}

// DisconnectAll deactivates every slot; subsequent Emit calls invoke none.
func (s *Signal0) DisconnectAll() { s.c().disconnectAll() }

// Cleanup forces compaction of disconnected slots.
func (s *Signal0) Cleanup() { s.c().cleanup() }

// Len reports the slot count including not-yet-compacted inactive slots.
func (s *Signal0) Len() int { return s.c().Len() }
