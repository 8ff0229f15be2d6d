package ringbuffer

import (
	"sync/atomic"
	"testing"
)

func TestMPMCOverSharedBacking(t *testing.T) {
	const capacity = 8
	mem := make([]byte, SlotBytes[int32](capacity))

	q := NewMPMCOver[int32](mem, capacity, new(atomic.Uint64), new(atomic.Uint64))
	q.InitSequence()

	for i := int32(0); i < capacity; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue failed at %d", i)
		}
	}
	if q.Enqueue(99) {
		t.Fatal("expected overflow on a full shared-backed ring")
	}

	for i := int32(0); i < capacity; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d ok=%v", i, v, ok)
		}
	}
}

func TestMPMCOverPanicsOnUndersizedRegion(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for undersized shared region")
		}
	}()
	mem := make([]byte, 4)
	NewMPMCOver[int32](mem, 1024, new(atomic.Uint64), new(atomic.Uint64))
}

// TestMPMCOverSharesHeadTailAcrossInstances regression-tests that two
// MPMC[T] instances constructed over the same mem and the same
// enqueueAddr/dequeueAddr pointers (as two attached processes would be,
// via internal/shmseg's *EnqueueAddr/*DequeueAddr) observe each other's
// progress through the ring rather than each counting its own head/tail
// from zero.
func TestMPMCOverSharesHeadTailAcrossInstances(t *testing.T) {
	const capacity = 8
	mem := make([]byte, SlotBytes[int32](capacity))
	enqueueAddr := new(atomic.Uint64)
	dequeueAddr := new(atomic.Uint64)

	owner := NewMPMCOver[int32](mem, capacity, enqueueAddr, dequeueAddr)
	owner.InitSequence()

	for i := int32(0); i < 5; i++ {
		if !owner.Enqueue(i) {
			t.Fatalf("owner enqueue failed at %d", i)
		}
	}
	for i := int32(0); i < 3; i++ {
		v, ok := owner.Dequeue()
		if !ok || v != i {
			t.Fatalf("owner dequeue: expected %d, got %d ok=%v", i, v, ok)
		}
	}

	peer := NewMPMCOver[int32](mem, capacity, enqueueAddr, dequeueAddr)

	for i := int32(3); i < 5; i++ {
		v, ok := peer.Dequeue()
		if !ok || v != i {
			t.Fatalf("peer dequeue: expected %d, got %d ok=%v", i, v, ok)
		}
	}
	if !peer.Enqueue(5) {
		t.Fatal("peer enqueue failed")
	}

	v, ok := owner.Dequeue()
	if !ok || v != 5 {
		t.Fatalf("owner dequeue after peer enqueue: expected 5, got %d ok=%v", v, ok)
	}
}

func TestMPMCLen(t *testing.T) {
	q := NewMPMC[int](8)
	if q.Len() != 0 {
		t.Fatalf("expected empty ring len 0, got %d", q.Len())
	}
	q.Enqueue(1)
	q.Enqueue(2)
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	q.Dequeue()
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
}
