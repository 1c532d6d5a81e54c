package signal

import "sync"

// Signal2 is a signal whose slots take two arguments, e.g.
// onDatagramReceived([]byte, Address), onException(error, string).
type Signal2[A, B any] struct {
	once sync.Once
	core *core
}

// NewSignal2 constructs an empty signal; as with Signal0, the zero value
// also works since c() lazily initializes the core on first use.
func NewSignal2[A, B any]() *Signal2[A, B] {
	s := &Signal2[A, B]{}
	s.c()
	return s
}

func (s *Signal2[A, B]) c() *core {
	s.once.Do(func() { s.core = newCore() })
	return s.core
}

func (s *Signal2[A, B]) Connect(fn func(A, B), opts ...ConnectOption) *Connection {
	cfg := applyOptions(opts)
	return s.c().connect(cfg.priority, cfg.delivery, cfg.queue, func(args []any) {
		fn(args[0].(A), args[1].(B))
	})
}

func (s *Signal2[A, B]) ConnectFiltered(fn func(A, B), filter func(A, B) bool, opts ...ConnectOption) *Connection {
	cfg := applyOptions(opts)
	return s.c().connect(cfg.priority, cfg.delivery, cfg.queue, func(args []any) {
		a, b := args[0].(A), args[1].(B)
		if filter(a, b) {
			fn(a, b)
		}
	})
}

func (s *Signal2[A, B]) Emit(a A, b B) {
	if s.c().activeLen() == 0 {
		return
	}
	s.core.emit([]any{a, b})
}

func (s *Signal2[A, B]) DisconnectAll() { s.c().disconnectAll() }
func (s *Signal2[A, B]) Cleanup()       { s.c().cleanup() }
func (s *Signal2[A, B]) Len() int       { return s.c().Len() }
