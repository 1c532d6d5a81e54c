package signal

import (
	"runtime"
	"sync"

	"go.uber.org/atomic"

	"github.com/fbnet-go/fbnet/internal/gid"
)

// DefaultCapacity is the default EventQueue ring size (spec.md §4.9).
const DefaultCapacity = 4096

type slot struct {
	ready atomic.Bool
	fn    func()
}

// EventQueue is a bounded, single-consumer/multi-producer ring of
// type-erased, no-argument invocations, processed only by its owning
// goroutine. Producers never block: a full queue drops the newest item and
// increments a monotonic dropped counter (spec.md §3, §4.9).
//
// The C++ original additionally guarantees zero heap allocation on the
// enqueue hot path via a fixed-size inline buffer (EVENT_SBO_SIZE). Go
// closures always escape to the heap under escape analysis, so that
// specific guarantee is not representable here; what is preserved, and
// tested, is the ring's capacity bound and drop-newest overflow behavior.
type EventQueue struct {
	buf     []slot
	mask    uint64
	head    atomic.Uint64
	tail    atomic.Uint64
	dropped atomic.Uint64
	owner   int64
}

// NewEventQueue creates a queue for the calling goroutine that holds at
// least capacity items before dropping (capacity<=0 uses DefaultCapacity).
// The ring's head==tail full-check sacrifices one slot to distinguish full
// from empty, so the backing buffer is sized to capacity+1 rounded up to
// the next power of two; the usable bound is that buffer length minus one
// (7 for capacity 4, 8191 for DefaultCapacity), never less than capacity.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	bufLen := nextPowerOfTwo(capacity + 1)
	q := &EventQueue{
		buf:   make([]slot, bufLen),
		mask:  uint64(bufLen - 1),
		owner: gid.Current(),
	}
	return q
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Enqueue stores fn for later invocation by the owner goroutine. It may be
// called from any goroutine. Returns false (and increments DroppedCount)
// if the queue was full.
func (q *EventQueue) Enqueue(fn func()) bool {
	for {
		tail := q.tail.Load()
		head := q.head.Load()
		next := (tail + 1) & q.mask
		if next == head {
			q.dropped.Inc()
			return false
		}
		if q.tail.CAS(tail, next) {
			q.buf[tail].fn = fn
			q.buf[tail].ready.Store(true)
			return true
		}
	}
}

// ProcessPending drains the queue, invoking events in FIFO order, and
// returns the number processed. Must only be called from the owner
// goroutine.
func (q *EventQueue) ProcessPending() int {
	return q.processPending(-1)
}

// ProcessPendingMax drains up to max events.
func (q *EventQueue) ProcessPendingMax(max int) int {
	return q.processPending(max)
}

func (q *EventQueue) processPending(max int) int {
	processed := 0
	for max < 0 || processed < max {
		head := q.head.Load()
		tail := q.tail.Load()
		if head == tail {
			break
		}

		spins := 0
		for !q.buf[head].ready.Load() {
			spins++
			if spins < 64 {
				continue
			}
			runtime.Gosched()
		}

		fn := q.buf[head].fn
		q.buf[head].fn = nil
		q.buf[head].ready.Store(false)
		q.head.Store((head + 1) & q.mask)

		if fn != nil {
			fn()
		}
		processed++
	}
	return processed
}

// IsOwnerThread reports whether the calling goroutine created this queue.
func (q *EventQueue) IsOwnerThread() bool { return gid.Current() == q.owner }

// OwnerThread returns the goroutine identity recorded at construction.
func (q *EventQueue) OwnerThread() int64 { return q.owner }

// PendingCount returns an approximate count of unprocessed items.
func (q *EventQueue) PendingCount() int {
	head := q.head.Load()
	tail := q.tail.Load()
	return int((tail - head) & q.mask)
}

// Empty reports whether the queue currently has no pending items.
func (q *EventQueue) Empty() bool { return q.PendingCount() == 0 }

// DroppedCount returns the monotonic count of items dropped due to a full
// queue.
func (q *EventQueue) DroppedCount() uint64 { return q.dropped.Load() }

// currentQueues implements the "process-wide helper [that] provides the
// current thread's queue" from spec.md §4.9: a goroutine calls BindCurrent
// once (typically at the top of a worker loop) to register which queue it
// is currently draining, and CurrentQueue looks it up. Automatic delivery
// does not consult this registry; it uses IsOwnerThread.
var currentQueues sync.Map // gid int64 -> *EventQueue

// BindCurrent registers q as the queue the calling goroutine is currently
// draining. Call UnbindCurrent (typically via defer) when done.
func BindCurrent(q *EventQueue) {
	currentQueues.Store(gid.Current(), q)
}

// UnbindCurrent clears the calling goroutine's registration.
func UnbindCurrent() {
	currentQueues.Delete(gid.Current())
}

// CurrentQueue returns the queue the calling goroutine last bound, or nil.
func CurrentQueue() *EventQueue {
	v, ok := currentQueues.Load(gid.Current())
	if !ok {
		return nil
	}
	return v.(*EventQueue)
}
