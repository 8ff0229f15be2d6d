// Package stats computes the buffer statistics snapshot of spec §4.7:
// counters plus a rate-since-last-call figure derived from deltas against
// the previous call, the way mimocorb2's mimoBuffer.get_stats() does.
package stats

import (
	"sync"
	"time"
)

// Record is the snapshot spec §4.7 (`get_stats()`) returns, plus the
// pause/deadtime fields supplemented from original_source/mimo_buffer.py
// (see SPEC_FULL.md).
type Record struct {
	EventCount       uint64
	OverwriteCount   uint64
	FilledCount      uint64
	EmptyCount       uint64
	FlushReceived    bool
	RateHz           float64
	TimeSinceLastS   float64
	PausedCount      uint64
	Paused           bool
	AverageDeadtimeS float64
}

// Tracker holds the "since last call" state get_stats() needs for its rate
// figure: the previous call's wall-clock time, event count, and cumulative
// deadtime. Safe for concurrent Snapshot calls (each serializes on a
// mutex) — spec §4.7 only requires the snapshot's individual fields to be
// best-effort consistent, not the rate computation itself.
type Tracker struct {
	mu           sync.Mutex
	lastTime     time.Time
	lastEventCnt uint64
	lastDeadtime float64
	now          func() time.Time
	initialized  bool
}

// NewTracker creates a rate tracker. now defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Snapshot folds the buffer's current counters into a Record, computing
// RateHz and TimeSinceLastS against the previous Snapshot call. The first
// call has no previous call to compare against and reports both as zero.
func (t *Tracker) Snapshot(eventCount, overwriteCount, filledCount, emptyCount uint64,
	flushReceived bool, pausedCount uint64, paused bool, totalDeadtime float64) Record {

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.initialized {
		t.lastTime = now
		t.lastEventCnt = eventCount
		t.lastDeadtime = totalDeadtime
		t.initialized = true
	}

	elapsed := now.Sub(t.lastTime).Seconds()
	deltaEvents := eventCount - t.lastEventCnt
	deltaDeadtime := totalDeadtime - t.lastDeadtime

	var rate float64
	if elapsed > 0 {
		rate = float64(deltaEvents) / elapsed
	}

	var avgDeadtime float64
	if deltaEvents > 0 {
		avgDeadtime = deltaDeadtime / float64(deltaEvents)
	}

	rec := Record{
		EventCount:       eventCount,
		OverwriteCount:   overwriteCount,
		FilledCount:      filledCount,
		EmptyCount:       emptyCount,
		FlushReceived:    flushReceived,
		RateHz:           rate,
		TimeSinceLastS:   elapsed,
		PausedCount:      pausedCount,
		Paused:           paused,
		AverageDeadtimeS: avgDeadtime,
	}

	t.lastTime = now
	t.lastEventCnt = eventCount
	t.lastDeadtime = totalDeadtime

	return rec
}
