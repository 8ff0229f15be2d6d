package shmseg

import (
	"sync/atomic"
	"unsafe"
)

// EmptyEnqueueAddr and its three siblings below return pointers into the
// segment header that back a TokenQueue's MPMC ring's logical head/tail
// counters (see ringbuffer.NewMPMCOver). Every process that maps this
// segment must operate on the same counters, not an independent copy, or
// a second process's notion of the ring's position desynchronizes from
// the physical slot array the instant more than the trivial single-write
// case runs.
func EmptyEnqueueAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[emptyEnqueueOffset]))
}

func EmptyDequeueAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[emptyDequeueOffset]))
}

func FilledEnqueueAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[filledEnqueueOffset]))
}

func FilledDequeueAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[filledDequeueOffset]))
}

// EventCountAddr, OverwriteCountAddr, and PausedCountAddr back Buffer's
// event/overwrite/paused-discard counters (spec §4.7), shared so an
// attached process's Stats() reflects the same counts as the buffer's
// creator.
func EventCountAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[eventCountOffset]))
}

func OverwriteCountAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[overwriteCountOffset]))
}

func PausedCountAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[pausedCountOffset]))
}

// FlushSentAddr, FlushReceivedAddr, and PausedAddr back Buffer's
// flush-sent, flush-received, and paused flags, shared so one process's
// SendFlushEvent/Pause/Resume is visible to every other process attached
// to the same buffer (spec §6).
func FlushSentAddr(mem []byte) *atomic.Bool {
	return (*atomic.Bool)(unsafe.Pointer(&mem[flushSentOffset]))
}

func FlushReceivedAddr(mem []byte) *atomic.Bool {
	return (*atomic.Bool)(unsafe.Pointer(&mem[flushReceivedOffset]))
}

func PausedAddr(mem []byte) *atomic.Bool {
	return (*atomic.Bool)(unsafe.Pointer(&mem[pausedOffset]))
}

// TotalDeadtimeBitsAddr backs Buffer's running deadtime total (spec §4.7),
// stored as the bit pattern of a float64 since there is no atomic float
// type; Buffer accumulates into it with a compare-and-swap loop over
// math.Float64bits/Float64frombits.
func TotalDeadtimeBitsAddr(mem []byte) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&mem[totalDeadtimeOffset]))
}
