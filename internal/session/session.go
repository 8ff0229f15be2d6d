// Package session provides the Writer/Reader/Observer access-session
// guards of spec §4.1: each wraps exactly one GetXToken/ReturnXToken pair
// behind a callback so a token is never leaked on an early return or panic.
//
// This generalizes original_source/mimocorb2/mimo_buffer.py's
// BufferWriter/BufferReader/BufferObserver context managers (__enter__
// acquires, __exit__ always releases) into Go's idiomatic equivalent: a
// function taking a closure and deferring the release, the way a teacher
// wraps a mutex's Lock/Unlock pair in a helper rather than asking callers
// to remember both calls themselves.
package session

import (
	"github.com/mimoring/mimoring/internal/buffer"
	"github.com/mimoring/mimoring/internal/dtype"
)

// Writer is a write-session guard over one Buffer (spec §4.3).
type Writer struct {
	buf *buffer.Buffer
}

// NewWriter wraps buf for write sessions.
func NewWriter(buf *buffer.Buffer) *Writer { return &Writer{buf: buf} }

// Do acquires a write token (blocking if every slot is in use and overwrite
// is disabled), runs fn with the slot's data and metadata views, and always
// releases the token afterward, even if fn panics. Returns false without
// calling fn if the underlying acquire reports no token, which
// GetWriteToken does once a flush event has been sent on the buffer.
func (w *Writer) Do(fn func(data dtype.View, meta dtype.MetadataView)) bool {
	tok, ok := w.buf.GetWriteToken()
	if !ok {
		return false
	}
	defer w.buf.ReturnWriteToken(tok)

	var data dtype.View
	var meta dtype.MetadataView
	if tok == buffer.TrashToken {
		data, meta = w.buf.TrashView()
	} else {
		data, meta = w.buf.SlotView(tok)
	}
	fn(data, meta)
	return true
}

// SendFlushEvent signals end-of-stream to every reader on the buffer
// (spec §4.6).
func (w *Writer) SendFlushEvent() { w.buf.SendFlushEvent() }

// Reader is a read-session guard over one Buffer (spec §4.4).
type Reader struct {
	buf *buffer.Buffer
}

// NewReader wraps buf for read sessions.
func NewReader(buf *buffer.Buffer) *Reader { return &Reader{buf: buf} }

// Do blocks for a filled slot, runs fn with its views, and releases the
// slot back to `empty` afterward. Returns false without calling fn once the
// buffer has been flushed and drained (spec §4.6): that is the session
// layer's signal for the reader's own loop to stop.
func (r *Reader) Do(fn func(data dtype.View, meta dtype.MetadataView)) bool {
	tok, ok := r.buf.GetReadToken()
	if !ok {
		return false
	}
	defer r.buf.ReturnReadToken(tok)

	data, meta := r.buf.SlotView(tok)
	fn(data, meta)
	return true
}

// Observer is a non-blocking, non-consuming observe-session guard over one
// Buffer (spec §4.5).
type Observer struct {
	buf *buffer.Buffer
}

// NewObserver wraps buf for observe sessions.
func NewObserver(buf *buffer.Buffer) *Observer { return &Observer{buf: buf} }

// Do takes a best-effort look at the oldest filled slot (the head of
// `filled`) without consuming it. Unlike Writer/Reader, fn never sees the live slot: the
// buffer copies it into a scratch buffer first and hands fn that snapshot,
// so the copy-before-release requirement of spec §4.5 is enforced by the
// library rather than left to the caller's discipline. Returns false if no
// filled slot, or no scratch buffer, is currently available.
func (o *Observer) Do(fn func(data dtype.View, meta dtype.MetadataView)) bool {
	data, meta, release, ok := o.buf.ObserveSnapshot()
	if !ok {
		return false
	}
	defer release()

	fn(data, meta)
	return true
}
