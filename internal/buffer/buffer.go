// Package buffer implements the mimoring Buffer object (spec §3-§4): slot
// storage, the empty/filled token queues, the counters and overwrite
// policy, and the flush/shutdown cascade. It is the component original
// mimocorb2/mimo_buffer.py's mimoBuffer class and ringbuffer.py's RingBuffer
// class both implement; this generalizes and merges the two (see
// SPEC_FULL.md's "Supplemented features").
package buffer

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/mimoring/mimoring"
	"github.com/mimoring/mimoring/internal/dtype"
	"github.com/mimoring/mimoring/internal/shmseg"
	"github.com/mimoring/mimoring/internal/stats"
)

// TrashToken is the sentinel write-session token used while the buffer is
// paused (see Pause/Resume): the write lands on a disposable scratch slot
// instead of a real one, and ReturnWriteToken recognizes it and skips the
// normal counter/filled-queue bookkeeping.
const TrashToken int32 = -2

// Buffer is a MIMO shared-memory ring buffer: slot_count fixed-size slots,
// each holding one data_dtype record of data_length and one fixed metadata
// record, mediated by the empty/filled token queues.
type Buffer struct {
	name       string
	slotCount  int
	dataLength int
	dataDtype  dtype.Dtype
	slotBytes  int
	overwrite  bool

	seg    *shmseg.Segment
	layout shmseg.Layout
	mem    []byte
	owned  bool

	empty  *ringbuffer.TokenQueue
	filled *ringbuffer.TokenQueue

	audit   *ringbuffer.AuditLog
	scratch *ringbuffer.ScratchPool

	trash []byte

	// eventCount through totalDeadtimeBits all point into the segment
	// header (see internal/shmseg/shared_state.go) instead of being plain
	// struct fields, so an Attach'd process observes the same counters,
	// flags, and running deadtime total as the buffer's creator (spec §6)
	// rather than an independent, always-zero copy.
	eventCount        *atomic.Uint64
	overwriteCount    *atomic.Uint64
	pausedCount       *atomic.Uint64
	flushSent         *atomic.Bool
	flushReceived     *atomic.Bool
	paused            *atomic.Bool
	totalDeadtimeBits *atomic.Uint64

	tracker *stats.Tracker
	clock   func() time.Time
}

// New constructs a fresh Buffer per Config, validating it (spec §7
// ConfigError) and allocating its backing memory (spec §7
// SharedMemoryError when Config.Shared and the OS refuses the mapping or
// the name collides). The caller that calls New owns the segment: only it
// should ever call Close.
func New(cfg Config) (*Buffer, error) {
	return build(cfg, func(name string, size int) (*shmseg.Segment, error) {
		return shmseg.Create(name, size)
	}, true)
}

// Attach opens a Buffer whose segment was already created by another
// process's New call, for the same Config (spec §6: separate processes
// reach the same buffer by name). It does not re-initialize the empty
// queue — doing so would hand out slots the owning process may already be
// circulating — and its Close only unmaps this process's view, since only
// the creator unlinks the segment (spec §5 "Resource lifecycle").
func Attach(cfg Config) (*Buffer, error) {
	return build(cfg, func(name string, size int) (*shmseg.Segment, error) {
		return shmseg.Open(name, size)
	}, false)
}

func build(cfg Config, openSeg func(name string, size int) (*shmseg.Segment, error), fresh bool) (*Buffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dt, err := dtype.New(cfg.DataDtype)
	if err != nil {
		return nil, &ConfigError{msg: err.Error()}
	}

	slotBytes := cfg.DataLength*dt.Size + dtype.Metadata.Size
	layout, err := shmseg.ComputeLayout(cfg.SlotCount, slotBytes)
	if err != nil {
		return nil, &ConfigError{msg: err.Error()}
	}

	var seg *shmseg.Segment
	var mem []byte
	if cfg.Shared {
		seg, err = openSeg(cfg.Name, layout.TotalSize)
		if err != nil {
			return nil, &SharedMemoryError{msg: "failed to map segment " + cfg.Name, err: err}
		}
		mem = seg.Mem
	} else if !fresh {
		return nil, configErrorf("Attach requires Config.Shared = true")
	} else {
		mem = make([]byte, layout.TotalSize)
	}

	empty := ringbuffer.NewTokenQueueOver(mem[layout.EmptyOffset:layout.EmptyOffset+int(ringbuffer.SlotBytes[int32](layout.QueueCapacity))], layout.QueueCapacity, fresh, shmseg.WakeEmptyAddr(mem), shmseg.EmptyEnqueueAddr(mem), shmseg.EmptyDequeueAddr(mem))
	filled := ringbuffer.NewTokenQueueOver(mem[layout.FilledOffset:layout.FilledOffset+int(ringbuffer.SlotBytes[int32](layout.QueueCapacity))], layout.QueueCapacity, fresh, shmseg.WakeFilledAddr(mem), shmseg.FilledEnqueueAddr(mem), shmseg.FilledDequeueAddr(mem))

	if fresh {
		// empty starts full with every index 0..N (spec §3).
		for i := int32(0); i < int32(cfg.SlotCount); i++ {
			empty.Put(i)
		}
	}

	b := &Buffer{
		name:              cfg.Name,
		slotCount:         cfg.SlotCount,
		dataLength:        cfg.DataLength,
		dataDtype:         dt,
		slotBytes:         slotBytes,
		overwrite:         cfg.overwrite(),
		seg:               seg,
		layout:            layout,
		mem:               mem,
		owned:             fresh,
		empty:             empty,
		filled:            filled,
		audit:             ringbuffer.NewAuditLog(nextPow2(uint64(cfg.SlotCount) * 4)),
		scratch:           ringbuffer.NewScratchPool(nextPow2(uint64(cfg.SlotCount)), slotBytes),
		trash:             make([]byte, slotBytes),
		eventCount:        shmseg.EventCountAddr(mem),
		overwriteCount:    shmseg.OverwriteCountAddr(mem),
		pausedCount:       shmseg.PausedCountAddr(mem),
		flushSent:         shmseg.FlushSentAddr(mem),
		flushReceived:     shmseg.FlushReceivedAddr(mem),
		paused:            shmseg.PausedAddr(mem),
		totalDeadtimeBits: shmseg.TotalDeadtimeBitsAddr(mem),
		tracker:           stats.NewTracker(nil),
		clock:             time.Now,
	}
	return b, nil
}

func nextPow2(n uint64) uint64 {
	if n < 2 {
		return 2
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Name returns the buffer's unique identifier.
func (b *Buffer) Name() string { return b.name }

// SlotCount returns the number of slots.
func (b *Buffer) SlotCount() int { return b.slotCount }

// DataLength returns the per-slot data array length.
func (b *Buffer) DataLength() int { return b.dataLength }

// DataDtype returns the data record descriptor.
func (b *Buffer) DataDtype() dtype.Dtype { return b.dataDtype }

// slotOffset returns the byte offset of slot idx within the segment.
func (b *Buffer) slotOffset(idx int32) int {
	return b.layout.SlotsOffset + int(idx)*b.slotBytes
}

func (b *Buffer) slotBuf(idx int32) []byte {
	off := b.slotOffset(idx)
	return b.mem[off : off+b.slotBytes]
}

// SlotView returns the zero-copy data and metadata views for slot idx.
// Mutating through them is only safe for the unique current holder of a
// write-session on that slot (spec §4.1).
func (b *Buffer) SlotView(idx int32) (dtype.View, dtype.MetadataView) {
	buf := b.slotBuf(idx)
	dataBuf := buf[:b.dataLength*b.dataDtype.Size]
	metaBuf := buf[b.dataLength*b.dataDtype.Size:]
	return dtype.NewView(dataBuf, b.dataDtype, b.dataLength), dtype.NewMetadataView(metaBuf)
}

// TrashView returns the views over the disposable slot used while paused.
func (b *Buffer) TrashView() (dtype.View, dtype.MetadataView) {
	dataBuf := b.trash[:b.dataLength*b.dataDtype.Size]
	metaBuf := b.trash[b.dataLength*b.dataDtype.Size:]
	return dtype.NewView(dataBuf, b.dataDtype, b.dataLength), dtype.NewMetadataView(metaBuf)
}

// GetWriteToken implements spec §4.3's acquire algorithm. With
// overwrite=true it never blocks outside of flush shutdown: if the
// overwrite reclaim races a reader and loses — filled is momentarily empty,
// or the only filled slot is the flush sentinel — the writer retries from
// step 1 instead of falling through to the blocking path, since a retry of
// either branch can trivially succeed once filled fills back up.
func (b *Buffer) GetWriteToken() (int32, bool) {
	if b.flushSent.Load() {
		return 0, false
	}
	if b.paused.Load() {
		return TrashToken, true
	}

	for {
		if tok, ok := b.empty.GetNonblocking(); ok {
			b.resetTimestamp(tok)
			return tok, true
		}

		if !b.overwrite {
			break
		}

		tok, ok := b.filled.GetNonblocking()
		if !ok {
			continue // reader won the race; retry step 1
		}
		if tok == ringbuffer.FlushToken {
			b.filled.Put(ringbuffer.FlushToken) // never overwrite the flush sentinel
			continue
		}
		b.overwriteCount.Add(1)
		b.audit.Record(ringbuffer.AuditOverwrite, tok, b.clock())
		b.resetTimestamp(tok)
		return tok, true
	}

	tok, ok := b.empty.GetBlocking()
	if ok {
		b.resetTimestamp(tok)
	}
	return tok, ok
}

// resetTimestamp clears a slot's timestamp_ns before handing it to a
// writer, so ReturnWriteToken can tell "the worker set a custom
// timestamp_ns this cycle" apart from "this physical slot still carries a
// stale value from whatever last occupied it" (spec §6: "workers may
// overwrite, but the default is buffer-assigned").
func (b *Buffer) resetTimestamp(token int32) {
	_, meta := b.SlotView(token)
	meta.SetTimestampNs(0)
}

// ReturnWriteToken implements spec §4.3's release algorithm: stamp
// counter unconditionally, default the timestamp if the worker left it
// unset, accumulate deadtime, and publish the slot into `filled`. token ==
// TrashToken (paused) just counts the discard.
func (b *Buffer) ReturnWriteToken(token int32) {
	if token == TrashToken {
		b.pausedCount.Add(1)
		return
	}

	n := b.eventCount.Add(1)
	_, meta := b.SlotView(token)
	meta.SetCounter(n) // spec §8 "sequence monotonicity": always buffer-assigned
	if meta.TimestampNs() == 0 {
		meta.SetTimestampNs(uint64(b.clock().UnixNano()))
	}

	b.addDeadtime(meta.Deadtime())

	b.filled.Put(token)
}

// addDeadtime accumulates delta into the shared running deadtime total via
// a compare-and-swap loop over its float64 bit pattern, since Go has no
// atomic float type and the total must stay visible to every process
// attached to the buffer.
func (b *Buffer) addDeadtime(delta float64) {
	for {
		oldBits := b.totalDeadtimeBits.Load()
		newBits := math.Float64bits(math.Float64frombits(oldBits) + delta)
		if b.totalDeadtimeBits.CompareAndSwap(oldBits, newBits) {
			return
		}
	}
}

// GetReadToken implements spec §4.4's acquire algorithm.
func (b *Buffer) GetReadToken() (int32, bool) {
	tok, ok := b.filled.GetBlocking()
	if !ok {
		return 0, false
	}
	if tok == ringbuffer.FlushToken {
		b.flushReceived.Store(true)
		b.audit.Record(ringbuffer.AuditFlushObserved, ringbuffer.FlushToken, b.clock())
		b.filled.Put(ringbuffer.FlushToken) // re-broadcast for peer readers
		return 0, false
	}
	return tok, true
}

// ReturnReadToken implements spec §4.4's release: the slot goes back to
// `empty`, no counter mutation.
func (b *Buffer) ReturnReadToken(token int32) {
	b.empty.Put(token)
}

// GetObserveToken implements spec §4.5's non-blocking, non-consuming
// acquire.
func (b *Buffer) GetObserveToken() (int32, bool) {
	tok, ok := b.filled.GetNonblocking()
	if !ok {
		return 0, false
	}
	if tok == ringbuffer.FlushToken {
		b.filled.Put(ringbuffer.FlushToken)
		return 0, false
	}
	return tok, true
}

// ReturnObserveToken implements spec §4.5's release: re-enqueue at the
// tail of `filled`, since the slot was never consumed.
func (b *Buffer) ReturnObserveToken(token int32) {
	b.filled.Put(token)
}

// Scratch returns the observer snapshot-copy pool.
func (b *Buffer) Scratch() *ringbuffer.ScratchPool { return b.scratch }

// ObserveSnapshot implements spec §4.5's full observe-and-copy contract:
// "observers must copy out any data they need before releasing", since the
// borrowed slot can be reclaimed by an overwriting writer the instant it
// goes back on filled. It takes a non-blocking, non-consuming look at the
// oldest filled slot (the head of filled), copies it into a Scratch-pool buffer, and
// returns the original slot to filled immediately — callers get the
// snapshot, never the live slot, so the copy is enforced here rather than
// left to caller discipline. release must be called exactly once, after
// the caller is done reading the snapshot. ok is false if no filled slot
// or no scratch buffer was available; release is nil in that case.
func (b *Buffer) ObserveSnapshot() (data dtype.View, meta dtype.MetadataView, release func(), ok bool) {
	tok, ok := b.GetObserveToken()
	if !ok {
		return dtype.View{}, dtype.MetadataView{}, nil, false
	}

	scratchBuf, idx, ok := b.scratch.Checkout()
	if !ok {
		b.ReturnObserveToken(tok)
		return dtype.View{}, dtype.MetadataView{}, nil, false
	}

	copy(scratchBuf, b.slotBuf(tok))
	b.ReturnObserveToken(tok)

	dataBuf := scratchBuf[:b.dataLength*b.dataDtype.Size]
	metaBuf := scratchBuf[b.dataLength*b.dataDtype.Size:]
	data = dtype.NewView(dataBuf, b.dataDtype, b.dataLength)
	meta = dtype.NewMetadataView(metaBuf)
	release = func() { b.scratch.Release(idx) }
	return data, meta, release, true
}

// SendFlushEvent implements spec §4.6: enqueue one flush sentinel into
// `filled`, and close `empty` so any writer blocked there under
// overwrite=false is woken (see SPEC_FULL.md Open Question #2). Idempotent:
// a second call is a no-op (spec §8 "flush idempotence").
func (b *Buffer) SendFlushEvent() {
	if b.flushSent.CompareAndSwap(false, true) {
		b.filled.Put(ringbuffer.FlushToken)
		b.audit.Record(ringbuffer.AuditFlushSent, ringbuffer.FlushToken, b.clock())
		b.empty.Close()
	}
}

// FlushReceived reports whether a reader has consumed the flush sentinel.
func (b *Buffer) FlushReceived() bool { return b.flushReceived.Load() }

// Pause switches writers onto the disposable trash slot (supplemented from
// original_source/mimo_buffer.py; see SPEC_FULL.md).
func (b *Buffer) Pause() { b.paused.Store(true) }

// Resume reverts Pause.
func (b *Buffer) Resume() { b.paused.Store(false) }

// Paused reports the current pause state.
func (b *Buffer) Paused() bool { return b.paused.Load() }

// AuditEvents drains the buffer's diagnostic trail (overwrite/flush
// events). Must be called from a single consumer, per AuditLog's contract.
func (b *Buffer) AuditEvents() []ringbuffer.AuditEvent { return b.audit.Drain() }

// Stats implements spec §4.7's get_stats().
func (b *Buffer) Stats() stats.Record {
	return b.tracker.Snapshot(
		b.eventCount.Load(),
		b.overwriteCount.Load(),
		b.filled.Len(),
		b.empty.Len(),
		b.flushReceived.Load(),
		b.pausedCount.Load(),
		b.paused.Load(),
		b.readTotalDeadtime(),
	)
}

func (b *Buffer) readTotalDeadtime() float64 {
	return math.Float64frombits(b.totalDeadtimeBits.Load())
}

// Close tears down the buffer's resources. A Buffer created with New
// unlinks its shared-memory segment entirely; one obtained with Attach only
// unmaps its own view, leaving the segment for its owner to unlink (spec §5
// "Resource lifecycle"). It is an error to call this while any session is
// live; callers are responsible for quiescing their own sessions first,
// since the buffer has no way to observe whether one is still open in
// another process.
func (b *Buffer) Close() error {
	if b.seg == nil {
		return nil
	}
	if b.owned {
		return b.seg.Unlink()
	}
	return b.seg.Close()
}
