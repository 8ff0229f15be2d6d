package ringbuffer

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/fastrand"
)

// FlushToken is the in-band sentinel carried only by `filled` queues,
// signalling end-of-stream (spec §3, §4.6). Real slot indices are always
// >= 0, so a negative value is a safe, distinguishable marker.
const FlushToken int32 = -1

// TokenQueue is the FIFO of slot indices (plus flush sentinels) specified
// in spec §4.2: Put never blocks, GetNonblocking reports emptiness instead
// of blocking, and GetBlocking parks until a token is available or the
// queue is closed.
//
// It is a thin, closeable wrapper around the lock-free MPMC ring: the ring
// gives FIFO order and safe concurrent enqueue/dequeue; TokenQueue adds the
// "no token available, and no token will ever become available again"
// signal that a flush needs (spec §4.6 bullet 3: "every blocked session on
// this buffer returns 'no token' within bounded time").
type TokenQueue struct {
	ring   *MPMC[int32]
	closed atomic.Bool

	mu   sync.Mutex
	wake chan struct{} // closed and replaced on every Put/Close to broadcast a wakeup; in-process fallback

	// wakeAddr, when non-nil, lives in the same shared-memory segment as
	// the ring itself and is used to park/wake blocked callers across OS
	// processes via futex (linux/amd64+arm64; see futex_linux.go). For
	// purely in-process queues it stays nil, and on other platforms the
	// futex calls report unsupported; in both cases the channel broadcast
	// above is the only wake path.
	wakeAddr *uint32
}

// NewTokenQueue creates an in-process token queue of the given capacity
// (must be a power of two and comfortably larger than the slot count, since
// flush sentinels share the ring with real tokens).
func NewTokenQueue(capacity uint64) *TokenQueue {
	return newTokenQueueOn(NewMPMC[int32](capacity), nil)
}

// NewTokenQueueOver creates a token queue backed by shared memory (see
// ringbuffer.NewMPMCOver), making it visible and correct across OS
// processes that have mapped the same region. enqueueAddr/dequeueAddr must
// point into that same shared region (see internal/shmseg's
// *EnqueueAddr/*DequeueAddr) so every process shares the ring's actual
// head/tail, not an independent local copy. wakeAddr, if non-nil, must also
// point into that region and is used for the cross-process futex wake. With
// nil, blocked callers wait on an in-process channel that only a Put or
// Close made through this process's TokenQueue wakes; a Put from another
// process does not wake them.
func NewTokenQueueOver(mem []byte, capacity uint64, fresh bool, wakeAddr *uint32, enqueueAddr, dequeueAddr *atomic.Uint64) *TokenQueue {
	ring := NewMPMCOver[int32](mem, capacity, enqueueAddr, dequeueAddr)
	if fresh {
		ring.InitSequence()
	}
	return newTokenQueueOn(ring, wakeAddr)
}

func newTokenQueueOn(ring *MPMC[int32], wakeAddr *uint32) *TokenQueue {
	return &TokenQueue{ring: ring, wake: make(chan struct{}), wakeAddr: wakeAddr}
}

// Put enqueues a token without blocking. Capacity is always sufficient in
// normal operation because exactly slot_count real tokens circulate and
// flush sentinels, while unbounded in principle, are rare (spec §4.2); a
// full ring here indicates a slot-count/queue-capacity misconfiguration and
// is an InvariantViolation.
func (q *TokenQueue) Put(token int32) {
	if !q.ring.Enqueue(token) {
		panic("ringbuffer: token queue full, invariant violated")
	}
	q.broadcast()
}

// GetNonblocking dequeues immediately or reports no token without waiting.
func (q *TokenQueue) GetNonblocking() (int32, bool) {
	return q.ring.Dequeue()
}

// GetBlocking dequeues, parking the caller while the queue is empty. It
// returns (0, false) once the queue has been closed (flush) and drained,
// never blocking forever past that point (spec §4.6's bounded-time
// contract).
func (q *TokenQueue) GetBlocking() (int32, bool) {
	var spins uint32
	for {
		if v, ok := q.ring.Dequeue(); ok {
			return v, true
		}
		if q.closed.Load() {
			// Closing can race a concurrent Put; give the ring one more
			// chance before giving up, so a token enqueued just before
			// Close is never lost.
			if v, ok := q.ring.Dequeue(); ok {
				return v, true
			}
			return 0, false
		}

		// Brief adaptive spin before parking: under load the ring drains
		// fast enough that parking is wasted latency; fastrand jitters the
		// spin budget so many parked goroutines don't all retry in lockstep.
		if spins < 64 {
			spins += 1 + fastrand.Uint32n(4)
			continue
		}
		q.park()
	}
}

// Close marks the queue closed and wakes every blocked GetBlocking caller.
// Idempotent: closing twice is a no-op after the first call, matching the
// "flush idempotence" property (spec §8).
func (q *TokenQueue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		q.broadcast()
	}
}

// Closed reports whether Close has been called.
func (q *TokenQueue) Closed() bool {
	return q.closed.Load()
}

// Len is a best-effort depth, suitable only for statistics.
func (q *TokenQueue) Len() uint64 {
	return q.ring.Len()
}

// Capacity returns the queue's fixed ring capacity.
func (q *TokenQueue) Capacity() uint64 {
	return q.ring.Capacity()
}

func (q *TokenQueue) park() {
	if q.wakeAddr != nil {
		last := atomic.LoadUint32(q.wakeAddr)
		// A Put or Close between the caller's failed Dequeue and the load
		// above has already bumped the wake word; re-check so it is not
		// missed.
		if q.ring.Len() > 0 || q.closed.Load() {
			return
		}
		if futexWait(q.wakeAddr, last) == nil {
			return
		}
		// futex unsupported on this platform: fall through to the
		// in-process channel, which wakes on Puts/Closes made in this
		// process but does not see cross-process Puts.
	}
	q.mu.Lock()
	ch := q.wake
	q.mu.Unlock()
	// Same re-check for the channel path: a broadcast that swapped the
	// channel before we took it would otherwise never wake us.
	if q.ring.Len() > 0 || q.closed.Load() {
		return
	}
	<-ch
}

func (q *TokenQueue) broadcast() {
	if q.wakeAddr != nil {
		atomic.AddUint32(q.wakeAddr, 1)
		futexWake(q.wakeAddr, 1<<30)
	}
	q.mu.Lock()
	ch := q.wake
	q.wake = make(chan struct{})
	q.mu.Unlock()
	close(ch)
}
