package signal

// Connection is a handle over a connected slot: it can be queried,
// blocked/unblocked, and disconnected. Disconnecting is an atomic,
// idempotent, terminal flip of the slot's active flag (spec.md §3, §8).
type Connection struct {
	id    uint64
	entry *slotEntry
	c     *core
}

// ID returns the slot's process-unique id.
func (conn *Connection) ID() uint64 { return conn.id }

// Connected reports whether the slot is still active.
func (conn *Connection) Connected() bool {
	if conn == nil || conn.entry == nil {
		return false
	}
	return conn.entry.active.Load()
}

// Blocked reports whether the slot is currently blocked.
func (conn *Connection) Blocked() bool {
	if conn == nil || conn.entry == nil {
		return false
	}
	return conn.entry.blocked.Load()
}

// Disconnect deactivates the slot. Idempotent: calling it again is a no-op
// and Connected() remains false.
func (conn *Connection) Disconnect() {
	if conn == nil || conn.entry == nil {
		return
	}
	if conn.entry.active.CAS(true, false) {
		conn.c.noteDeactivated()
	}
}

// Block temporarily suppresses invocation without deactivating the slot.
func (conn *Connection) Block() {
	if conn != nil && conn.entry != nil {
		conn.entry.blocked.Store(true)
	}
}

// Unblock clears a prior Block.
func (conn *Connection) Unblock() {
	if conn != nil && conn.entry != nil {
		conn.entry.blocked.Store(false)
	}
}

// Equal compares connections by slot id.
func (conn *Connection) Equal(other *Connection) bool {
	if conn == nil || other == nil {
		return conn == other
	}
	return conn.id == other.id
}

// ScopedConnection disconnects its underlying Connection when it goes out
// of scope via Close, for use with defer.
type ScopedConnection struct {
	conn *Connection
}

// Scoped wraps conn so that calling Close disconnects it.
func Scoped(conn *Connection) *ScopedConnection {
	return &ScopedConnection{conn: conn}
}

// Close disconnects the wrapped connection.
func (s *ScopedConnection) Close() error {
	if s != nil && s.conn != nil {
		s.conn.Disconnect()
	}
	return nil
}

// ConnectionGuard owns a list of connections and disconnects all of them
// when Close is called, for grouping related slot lifetimes.
type ConnectionGuard struct {
	conns []*Connection
}

// NewConnectionGuard creates an empty guard.
func NewConnectionGuard() *ConnectionGuard { return &ConnectionGuard{} }

// Add registers a connection with the guard.
func (g *ConnectionGuard) Add(conn *Connection) { g.conns = append(g.conns, conn) }

// Close disconnects every connection the guard holds.
func (g *ConnectionGuard) Close() error {
	for _, conn := range g.conns {
		conn.Disconnect()
	}
	g.conns = nil
	return nil
}

// Blocker sets blocked=true on a set of connections for its lifetime and
// restores each connection's prior blocked state on Close.
type Blocker struct {
	conns []*Connection
	prior []bool
}

// NewBlocker blocks every given connection, recording its prior state.
func NewBlocker(conns ...*Connection) *Blocker {
	b := &Blocker{conns: conns, prior: make([]bool, len(conns))}
	for i, conn := range conns {
		b.prior[i] = conn.Blocked()
		conn.Block()
	}
	return b
}

// Close restores each connection's blocked state to what it was before the
// Blocker was created.
func (b *Blocker) Close() error {
	for i, conn := range b.conns {
		if !b.prior[i] {
			conn.Unblock()
		}
	}
	return nil
}
