package ringbuffer

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

type MPMC[T any] struct {
	// Optional padding to avoid false sharing between hot fields.
	_        [64]byte
	mask     uint64
	capacity uint64
	slots    []slot[T]
	_        [64]byte
	enqueue  *atomic.Uint64 // logical tail index (producers)
	_        [64]byte
	dequeue  *atomic.Uint64 // logical head index (consumers)
	_        [64]byte
}

const goschedEvery = 64 // reduce runtime.Gosched() frequency in hot loops

// NewMPMC creates a bounded MPMC ring queue.
// 'capacity' must be a power of two (1<<k).
func NewMPMC[T any](capacity uint64) *MPMC[T] {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be power of 2 and > 0")
	}

	slots := make([]slot[T], capacity)
	for i := uint64(0); i < capacity; i++ {
		// initial sequence for each slot matches its index
		slots[i].seq.Store(i)
	}

	return &MPMC[T]{
		mask:     capacity - 1,
		capacity: capacity,
		slots:    slots,
		enqueue:  new(atomic.Uint64),
		dequeue:  new(atomic.Uint64),
	}
}

// Enqueue pushes an element into the queue.
// Returns false if the queue is full (overflow).
// Safe to call concurrently from many producer goroutines.
func (q *MPMC[T]) Enqueue(v T) bool {
	var spins uint32
	for {
		pos := q.enqueue.Load()
		s := &q.slots[pos&q.mask]

		seq := s.seq.Load()
		diff := int64(seq) - int64(pos)

		if diff == 0 {
			// Slot is free for this position, try to reserve it.
			if q.enqueue.CompareAndSwap(pos, pos+1) {
				// We won this slot.
				s.val = v
				// Publish the value: seq = pos+1
				s.seq.Store(pos + 1)
				return true
			}
			spins++
			if spins%goschedEvery == 0 {
				runtime.Gosched()
			}
		} else if diff < 0 {
			// diff < 0 => consumer has not yet freed this slot.
			// MPMC is full for this producer.
			return false
		} else {
			// diff > 0 => this slot still belongs to a previous cycle.
			// Just retry with a new pos.
			spins++
			if spins%goschedEvery == 0 {
				runtime.Gosched()
			}
		}
	}
}

// Dequeue pops an element from the queue.
// Returns (zero, false) if the queue is empty.
// Safe to call concurrently from many consumer goroutines.
func (q *MPMC[T]) Dequeue() (T, bool) {
	var zero T
	var spins uint32
	for {
		pos := q.dequeue.Load()
		s := &q.slots[pos&q.mask]

		seq := s.seq.Load()
		diff := int64(seq) - int64(pos+1)

		if diff == 0 {
			// Element is ready for this position, try to claim it.
			if !q.dequeue.CompareAndSwap(pos, pos+1) {
				// Another consumer won this slot, retry.
				spins++
				if spins%goschedEvery == 0 {
					runtime.Gosched()
				}
				continue
			}

			// We successfully claimed this slot.
			v := s.val
			// Free the slot for the next cycle:
			// next time this physical slot will be used at pos+capacity.
			s.seq.Store(pos + q.capacity)

			return v, true
		}

		if diff < 0 {
			// MPMC is logically empty (head is ahead of producers).
			return zero, false
		}

		// diff > 0 => producer is not done yet or intermediate state.
		// Yield to let producers/other consumers make progress.
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
	}
}

// Capacity returns the fixed queue capacity.
func (q *MPMC[T]) Capacity() uint64 {
	return q.capacity
}

// Len returns a best-effort element count, read without synchronizing
// enqueue and dequeue against each other. Used for statistics snapshots
// (spec: "Snapshot is best-effort consistent; individual fields are read
// without a global lock"), never for correctness decisions.
func (q *MPMC[T]) Len() uint64 {
	tail := q.enqueue.Load()
	head := q.dequeue.Load()
	if tail < head {
		return 0
	}
	return tail - head
}

// sizeOfSlot reports the byte size of one ring slot for T, used by callers
// that size a shared-memory region to back NewMPMCOver.
func sizeOfSlot[T any]() uintptr {
	var s slot[T]
	return unsafe.Sizeof(s)
}

// SlotBytes reports how many bytes of shared memory a capacity-sized
// MPMC[T] ring needs; callers (internal/shmseg) use this to size the
// segment region that backs a cross-process token queue.
func SlotBytes[T any](capacity uint64) uintptr {
	return uintptr(capacity) * sizeOfSlot[T]()
}

// NewMPMCOver constructs an MPMC[T] whose slot array is laid directly over
// mem instead of a freshly allocated Go slice, and whose logical
// enqueue/dequeue counters live at enqueueAddr/dequeueAddr instead of in a
// struct field private to this process. mem must be at least
// SlotBytes[T](capacity) long and backed by memory that every participating
// process has mapped MAP_SHARED (see internal/shmseg), and enqueueAddr/
// dequeueAddr must point into that same shared region (see
// internal/shmseg's *EnqueueAddr/*DequeueAddr): the ring's correctness rests
// entirely on atomic loads/CAS/stores over the slot sequence numbers *and*
// the head/tail counters that pick a slot, so every one of those words has
// to be the same physical memory across processes, not an independent
// per-process copy that starts counting from 0 and drifts the instant more
// than one process advances the ring.
//
// T must be a fixed-size type containing no pointers (an integer slot index,
// in mimoring's case) — anything else would embed process-local pointers
// into memory another process reads.
func NewMPMCOver[T any](mem []byte, capacity uint64, enqueueAddr, dequeueAddr *atomic.Uint64) *MPMC[T] {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be power of 2 and > 0")
	}
	need := SlotBytes[T](capacity)
	if uintptr(len(mem)) < need {
		panic("shared region too small for requested capacity")
	}

	slots := unsafe.Slice((*slot[T])(unsafe.Pointer(&mem[0])), capacity)
	return &MPMC[T]{
		mask:     capacity - 1,
		capacity: capacity,
		slots:    slots,
		enqueue:  enqueueAddr,
		dequeue:  dequeueAddr,
	}
}

// InitSequence stamps the initial per-slot sequence numbers a fresh ring
// needs before first use, and zeroes the logical enqueue/dequeue counters.
// NewMPMC does this automatically for heap-backed rings (its counters start
// zeroed regardless); shared-memory rings call it once, from whichever
// process created the segment, before any peer attaches.
func (q *MPMC[T]) InitSequence() {
	for i := uint64(0); i < q.capacity; i++ {
		q.slots[i].seq.Store(i)
	}
	q.enqueue.Store(0)
	q.dequeue.Store(0)
}
