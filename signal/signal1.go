package signal

import "sync"

// Signal1 is a signal whose slots take one argument, e.g.
// onConnected(Address), onConnectionError(string).
type Signal1[A any] struct {
	once sync.Once
	core *core
}

// NewSignal1 constructs an empty signal; as with Signal0, the zero value
// also works since c() lazily initializes the core on first use.
func NewSignal1[A any]() *Signal1[A] {
	s := &Signal1[A]{}
	s.c()
	return s
}

func (s *Signal1[A]) c() *core {
	s.once.Do(func() { s.core = newCore() })
	return s.core
}

func (s *Signal1[A]) Connect(fn func(A), opts ...ConnectOption) *Connection {
	cfg := applyOptions(opts)
	return s.c().connect(cfg.priority, cfg.delivery, cfg.queue, func(args []any) {
		fn(args[0].(A))
	})
}

func (s *Signal1[A]) ConnectFiltered(fn func(A), filter func(A) bool, opts ...ConnectOption) *Connection {
	cfg := applyOptions(opts)
	return s.c().connect(cfg.priority, cfg.delivery, cfg.queue, func(args []any) {
		a := args[0].(A)
		if filter(a) {
			fn(a)
		}
	})
}

// Emit broadcasts a to every active, unblocked slot. Per spec.md §4.8/§9,
// copyable value arguments are passed so each slot observes its own copy;
// Go's call-by-value semantics for non-pointer A already give this for
// free, so no special-casing is required here.
func (s *Signal1[A]) Emit(a A) {
	if s.c().activeLen() == 0 {
		return
	}
	s.core.emit([]any{a})
}

func (s *Signal1[A]) DisconnectAll() { s.c().disconnectAll() }
func (s *Signal1[A]) Cleanup()       { s.c().cleanup() }
func (s *Signal1[A]) Len() int       { return s.c().Len() }
