package ringbuffer

// ScratchPool is a pool of reusable byte buffers handed to Observer sessions
// so they can copy a slot's data out before releasing the token (spec §4.5:
// "observers must copy out any data they need before releasing", since the
// borrowed slot can be reclaimed by an overwriting writer the instant it
// goes back on `filled`). Reusing buffers instead of allocating a fresh copy
// per observation keeps the hot observe path allocation-free under
// sustained sampling.
//
// Checkout/Release follow the same free-list-over-MPMC discipline as the
// token queues themselves: Checkout dequeues a free index from an MPMC ring
// of indices, Release returns it, and Buf indexes the backing slice —
// exactly ArrayMPMC's pattern, specialized to []byte scratch buffers.
type ScratchPool struct {
	free *MPMC[int32]
	bufs [][]byte
}

// NewScratchPool creates a pool of `capacity` scratch buffers (capacity must
// be a power of two), each bufSize bytes — large enough to hold one slot's
// data array plus metadata.
func NewScratchPool(capacity uint64, bufSize int) *ScratchPool {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be power of 2 and > 0")
	}

	p := &ScratchPool{
		free: NewMPMC[int32](capacity),
		bufs: make([][]byte, capacity),
	}
	for i := range p.bufs {
		p.bufs[i] = make([]byte, bufSize)
	}
	for i := int32(0); i < int32(capacity); i++ {
		if !p.free.Enqueue(i) {
			panic("unreached")
		}
	}
	return p
}

// Checkout reserves a scratch buffer for the caller's exclusive use until
// Release. Returns (nil, 0, false) if the pool is momentarily exhausted — the
// caller (an Observer session) should treat that the same as a missed
// observation, never block: observers are explicitly best-effort (spec
// §4.5 step 2).
func (p *ScratchPool) Checkout() ([]byte, int32, bool) {
	idx, ok := p.free.Dequeue()
	if !ok {
		return nil, 0, false
	}
	buf := p.bufs[idx]
	for i := range buf {
		buf[i] = 0
	}
	return buf, idx, true
}

// Release returns a checked-out buffer to the pool. It panics if the free
// ring is already full, which is how a double release shows up when every
// buffer is already free; a double release or a never-checked-out index
// while other buffers are still checked out is not detected.
func (p *ScratchPool) Release(idx int32) {
	if !p.free.Enqueue(idx) {
		panic("ringbuffer: scratch pool invariant violated (double release?)")
	}
}
