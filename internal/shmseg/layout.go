// Package shmseg allocates the contiguous shared-memory region a mimoring
// buffer's slot storage and token-queue rings live in, and maps it the same
// way across every process that opens it by name — the cross-process
// counterpart to the Python implementation's
// `multiprocessing.shared_memory.SharedMemory`.
//
// The mmap/segment-file technique (an exclusively-created file under
// /dev/shm, truncated to size, then mapped MAP_SHARED) and its layout-header
// convention are grounded directly on the shared-memory gRPC transport's
// segment handling.
package shmseg

import (
	"fmt"

	"github.com/mimoring/mimoring"
)

// HeaderSize is the fixed header reserved at the front of every segment:
// the two wake words, each ring's logical enqueue/dequeue position, and the
// Buffer-level counters and flags, all laid out here instead of inside any
// one process's heap — every process that opens the segment must see the
// same head/tail positions and the same counters, not an independent local
// copy (spec §5/§6: separate processes share one buffer, not just its slot
// data).
const HeaderSize = 128

const (
	wakeEmptyOffset  = 0
	wakeFilledOffset = 4

	// Each TokenQueue's MPMC ring keeps its logical head/tail here instead
	// of in the MPMC[T] struct (which is allocated independently by every
	// process that opens the segment) — see ringbuffer.NewMPMCOver.
	emptyEnqueueOffset  = 16
	emptyDequeueOffset  = 24
	filledEnqueueOffset = 32
	filledDequeueOffset = 40

	// Buffer-level counters and flags, shared so Stats/Pause/Resume/flush
	// observation are consistent across every process attached to the
	// segment, not just the process that created it.
	eventCountOffset     = 48
	overwriteCountOffset = 56
	pausedCountOffset    = 64
	flushSentOffset      = 72
	flushReceivedOffset  = 80
	pausedOffset         = 88
	totalDeadtimeOffset  = 96
)

// Layout describes where each region sits within a segment of TotalSize
// bytes: the wake header, the two token-queue rings (empty/filled, each
// QueueCapacity slots of int32), and the slot storage itself.
type Layout struct {
	QueueCapacity uint64
	SlotCount     int
	SlotBytes     int

	HeaderOffset int
	EmptyOffset  int
	FilledOffset int
	SlotsOffset  int
	TotalSize    int
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// ComputeLayout sizes a segment for slotCount slots of slotBytes each. The
// token-queue capacity is the next power of two at least 2*slotCount+1, the
// spec's minimum to hold every real token plus flush sentinels without ever
// forcing Put to overflow in ordinary operation (spec §4.2).
func ComputeLayout(slotCount, slotBytes int) (Layout, error) {
	if slotCount <= 0 {
		return Layout{}, fmt.Errorf("shmseg: slot_count must be > 0, got %d", slotCount)
	}
	if slotBytes <= 0 {
		return Layout{}, fmt.Errorf("shmseg: slot_bytes must be > 0, got %d", slotBytes)
	}

	qcap := nextPow2(uint64(2*slotCount + 1))
	ringBytes := int(ringbuffer.SlotBytes[int32](qcap))

	l := Layout{
		QueueCapacity: qcap,
		SlotCount:     slotCount,
		SlotBytes:     slotBytes,
		HeaderOffset:  0,
		EmptyOffset:   HeaderSize,
		FilledOffset:  HeaderSize + ringBytes,
		SlotsOffset:   HeaderSize + 2*ringBytes,
	}
	l.TotalSize = l.SlotsOffset + slotCount*slotBytes
	return l, nil
}
