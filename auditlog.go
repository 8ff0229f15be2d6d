package ringbuffer

import (
	"sync/atomic"
	"time"
)

// AuditKind distinguishes the handful of buffer lifecycle events worth a
// diagnostic trail: why a session returned "no token", and when the buffer
// reached for an overwrite instead of waiting.
type AuditKind uint8

const (
	AuditOverwrite AuditKind = iota
	AuditFlushSent
	AuditFlushObserved
)

func (k AuditKind) String() string {
	switch k {
	case AuditOverwrite:
		return "overwrite"
	case AuditFlushSent:
		return "flush_sent"
	case AuditFlushObserved:
		return "flush_observed"
	default:
		return "unknown"
	}
}

// AuditEvent is one entry in a buffer's diagnostic trail.
type AuditEvent struct {
	Kind  AuditKind
	Token int32
	At    time.Time
}

// AuditLog is a bounded, single-consumer trail of buffer lifecycle events,
// built on the MPSC ring: many writer/reader goroutines record events
// concurrently, while a single consumer drains them for logging or
// diagnostics (internal/buffer exposes this as Buffer.AuditEvents). It is purely
// in-process — unlike TokenQueue, nothing here needs to cross OS processes,
// since each process only cares about its own view of why its own sessions
// stalled.
//
// A full log silently drops the newly recorded event, keeping the pending
// ones, rather than blocking a writer or reader on diagnostics; Dropped
// reports how many.
type AuditLog struct {
	ring    *MPSC[AuditEvent]
	dropped atomic.Uint64
}

// NewAuditLog creates an audit trail with room for capacity pending events
// (must be a power of two).
func NewAuditLog(capacity uint64) *AuditLog {
	return &AuditLog{ring: NewMPSC[AuditEvent](capacity)}
}

// Record appends an event, dropping it (and counting the drop) if the log
// is full. Safe to call from any number of goroutines.
func (l *AuditLog) Record(kind AuditKind, token int32, at time.Time) {
	if !l.ring.Enqueue(AuditEvent{Kind: kind, Token: token, At: at}) {
		l.dropped.Add(1)
	}
}

// Drain returns every event recorded since the last Drain. Must be called
// from a single consumer goroutine (the MPSC contract); internal/buffer
// calls it from Buffer.AuditEvents, whose callers inherit that rule.
func (l *AuditLog) Drain() []AuditEvent {
	var events []AuditEvent
	for {
		e, ok := l.ring.Dequeue()
		if !ok {
			return events
		}
		events = append(events, e)
	}
}

// Dropped reports how many events were discarded because the log was full.
func (l *AuditLog) Dropped() uint64 {
	return l.dropped.Load()
}
