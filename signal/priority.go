package signal

// Priority orders slot invocation within a single emission: higher values
// run first; ties break by ascending slot id (spec.md §3, §8).
type Priority int

const (
	Lowest  Priority = -1000
	Low     Priority = -100
	Normal  Priority = 0
	High    Priority = 100
	Highest Priority = 1000
)

// Delivery selects how a connected slot is invoked when the signal emits.
type Delivery int

const (
	// Direct invokes the slot synchronously in the emitting goroutine.
	Direct Delivery = iota
	// Queued posts the invocation to a target EventQueue; if none is set,
	// it falls back to Direct.
	Queued
	// Automatic invokes directly if the emitting goroutine is the one that
	// created the target queue (EventQueue.IsOwnerThread), and posts to it
	// otherwise. With no queue set it behaves like Direct.
	Automatic
)
