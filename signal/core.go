// Package signal implements the typed emitter/slot dispatch engine from
// spec.md §4.8: priority-ordered, lock-free emission with direct, queued
// and automatic cross-goroutine delivery, backed by EventQueue (§4.9).
//
// Go has no variadic type parameters, so the C++ template signal<Args...>
// is realized as a small family of typed facades (Signal0, Signal1[A],
// Signal2[A, B]) over one untyped dispatch core. The core carries the
// copy-on-write slot list, priority ordering and delivery-policy logic
// exactly once; the facades only adapt argument packing.
package signal

import (
	"sort"
	"sync"
	"sync/atomic"
)

var nextSlotID uint64 // process-unique monotonic slot id (spec.md §3)

type slotEntry struct {
	id       uint64
	priority Priority
	active   atomicBool
	blocked  atomicBool
	delivery Delivery
	queue    *EventQueue
	invoke   func([]any)
}

type atomicBool struct{ v uint32 }

func (b *atomicBool) Load() bool      { return atomic.LoadUint32(&b.v) != 0 }
func (b *atomicBool) Store(val bool)  { atomic.StoreUint32(&b.v, boolToUint32(val)) }
func (b *atomicBool) CAS(old, new bool) bool {
	return atomic.CompareAndSwapUint32(&b.v, boolToUint32(old), boolToUint32(new))
}
func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// core holds the copy-on-write, priority-sorted slot list shared by every
// Signal arity. It is not itself exported; Signal0/1/2 embed it.
type core struct {
	mu            sync.Mutex
	snap          atomic.Pointer[[]*slotEntry]
	inactiveCount int64 // tally maintained under mu, used for compaction ratio
}

func newCore() *core {
	c := &core{}
	empty := []*slotEntry{}
	c.snap.Store(&empty)
	return c
}

func (c *core) loadSnapshot() []*slotEntry {
	p := c.snap.Load()
	if p == nil {
		return nil
	}
	return *p
}

// connect adds a new slot under the writer mutex, compacting first if the
// inactive ratio in the current snapshot exceeds 50% (spec.md §3, §4.8).
func (c *core) connect(priority Priority, delivery Delivery, queue *EventQueue, invoke func([]any)) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := atomic.AddUint64(&nextSlotID, 1)
	entry := &slotEntry{id: id, priority: priority, delivery: delivery, queue: queue, invoke: invoke}
	entry.active.Store(true)

	old := c.loadSnapshot()
	if len(old) > 0 && float64(c.inactiveCount)/float64(len(old)) > 0.5 {
		old = compactLocked(old)
		c.inactiveCount = 0
	}

	next := make([]*slotEntry, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, entry)
	sortSlots(next)

	c.snap.Store(&next)

	return &Connection{id: id, entry: entry, c: c}
}

// cleanup forces compaction regardless of the inactive ratio.
func (c *core) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.loadSnapshot()
	next := compactLocked(old)
	c.snap.Store(&next)
	c.inactiveCount = 0
}

// disconnectAll marks every currently-snapshotted slot inactive; subsequent
// emits invoke zero slots (spec.md §8 idempotence law).
func (c *core) disconnectAll() {
	for _, e := range c.loadSnapshot() {
		if e.active.CAS(true, false) {
			c.noteDeactivated()
		}
	}
}

func (c *core) noteDeactivated() {
	c.mu.Lock()
	c.inactiveCount++
	c.mu.Unlock()
}

func compactLocked(slots []*slotEntry) []*slotEntry {
	next := make([]*slotEntry, 0, len(slots))
	for _, e := range slots {
		if e.active.Load() {
			next = append(next, e)
		}
	}
	return next
}

func sortSlots(slots []*slotEntry) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].priority != slots[j].priority {
			return slots[i].priority > slots[j].priority
		}
		return slots[i].id < slots[j].id
	})
}

// emit walks the current snapshot in priority order, invoking active,
// unblocked slots per their delivery policy. It is the hot path: one
// atomic load, no locks, no allocation beyond what dispatch itself needs.
func (c *core) emit(args []any) {
	for _, e := range c.loadSnapshot() {
		if !e.active.Load() || e.blocked.Load() {
			continue
		}
		dispatch(e, args)
	}
}

func dispatch(e *slotEntry, args []any) {
	switch e.delivery {
	case Direct:
		e.invoke(args)
	case Queued:
		if e.queue == nil {
			e.invoke(args)
			return
		}
		enqueueSlotInvocation(e, args)
	case Automatic:
		if e.queue == nil || e.queue.IsOwnerThread() {
			e.invoke(args)
			return
		}
		enqueueSlotInvocation(e, args)
	default:
		e.invoke(args)
	}
}

func enqueueSlotInvocation(e *slotEntry, args []any) {
	e.queue.Enqueue(func() {
		if e.active.Load() && !e.blocked.Load() {
			e.invoke(args)
		}
	})
}

// Len reports the number of slots in the current snapshot, including
// inactive ones not yet compacted away. Exposed for tests asserting on
// compaction behavior.
func (c *core) Len() int { return len(c.loadSnapshot()) }

// activeLen reports only active slots; blocked slots are still counted.
func (c *core) activeLen() int {
	n := 0
	for _, e := range c.loadSnapshot() {
		if e.active.Load() {
			n++
		}
	}
	return n
}
