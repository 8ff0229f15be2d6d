// Package ringbuffer implements the lock-free token-queue primitives that
// back a mimoring buffer: the bounded MPMC ring used for the `empty` and
// `filled` slot-index queues, a single-consumer ring used for the buffer's
// internal diagnostic trail, and a pool used by observer sessions to copy
// snapshot data out of a slot before releasing it.
//
// None of the types here know about dtypes, sessions, or the segment's
// layout — they operate purely on slot indices and opaque payloads, over
// either heap memory or a caller-supplied byte region (NewMPMCOver,
// NewTokenQueueOver). internal/buffer wires them to the shared-memory slot
// storage.
package ringbuffer

import "sync/atomic"

// Original algorithm by Dmitry Vyukov
// https://www.1024cores.net/home/lock-free-algorithms/queues/bounded-mpmc-queue

// T — specific type to store in the queue.

type slot[T any] struct {
	seq  atomic.Uint64 // sequence number (controls visibility and slot ownership)
	lock atomic.Uint64 // not read or written by MPMC/MPSC; it only adds 8 bytes to each slot
	val  T             // actual value stored in this slot
}
