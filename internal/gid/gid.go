// Package gid provides a best-effort, equality-comparable identity for the
// calling goroutine.
//
// Go deliberately exposes no stable OS-thread handle, and goroutines are
// not pinned to OS threads by default, so there is no portable analogue of
// the C++ original's std::thread::id comparison used to decide "automatic"
// signal delivery (spec.md §9, open question on thread-id identity). The
// resolution taken here: parse the goroutine id out of runtime.Stack, which
// is stable for the lifetime of the goroutine and unique at any instant.
// This is a debug-oriented technique (the runtime makes no long-term
// compatibility promise about the stack trace format) but it is sufficient
// for the one thing fbnet needs from it: telling whether the current
// goroutine is the one that drains a particular signal.EventQueue.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns an identifier for the calling goroutine. Two calls from
// the same goroutine return the same value; calls from different
// goroutines are, in practice, never equal.
func Current() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	// Format: "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return -1
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
