// Package eventpipe is the IPC channel: a one-way byte stream from
// workers to the supervisor carrying fixed-size, null-padded event
// records. It is built on os.Pipe() rather than a raw fork()-inherited
// pipe, because this repository spawns workers via self-exec
// (see internal/workerpool) — the pipe's write end is handed to each new
// child through exec.Cmd.ExtraFiles instead of being implicitly shared
// by a forked address space.
package eventpipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// RecordSize is the fixed record length, comfortably under PIPE_BUF so
// writes from multiple workers are atomic and never interleave mid-record.
const RecordSize = 128

// Kind identifies an event record's meaning. The wire encoding is a
// literal tag string, null-padded to RecordSize; only the tag is
// meaningful — any bytes after it (e.g. a trailing worker id) are
// ignored by the decoder.
type Kind int

const (
	// KindUnknown marks a record the supervisor does not recognize; it
	// is treated as a no-op rather than an error.
	KindUnknown Kind = iota
	KindConnected
	KindDone
)

const (
	tagConnected = "Process Connected"
	tagDone      = "Process Done"
)

// Encode renders kind as a RecordSize-byte, null-padded record.
func Encode(kind Kind) [RecordSize]byte {
	var rec [RecordSize]byte
	var tag string
	switch kind {
	case KindConnected:
		tag = tagConnected
	case KindDone:
		tag = tagDone
	default:
		return rec
	}
	copy(rec[:], tag)
	return rec
}

// Decode extracts the Kind from a record, matching only on the leading
// tag text and ignoring everything after the tag (null padding, a
// trailing worker id, or any other bytes).
func Decode(rec []byte) Kind {
	switch {
	case bytes.HasPrefix(rec, []byte(tagConnected)):
		return KindConnected
	case bytes.HasPrefix(rec, []byte(tagDone)):
		return KindDone
	default:
		return KindUnknown
	}
}

// Writer is the worker-side handle: write-only, one Emit per event.
type Writer struct {
	f *os.File
}

// NewWriter wraps an inherited write-end file descriptor.
func NewWriter(f *os.File) *Writer { return &Writer{f: f} }

// Emit writes one fixed-size record. A single write() of RecordSize bytes
// (well under PIPE_BUF) is atomic, so concurrent emits from different
// worker processes never interleave.
func (w *Writer) Emit(kind Kind) error {
	rec := Encode(kind)
	n, err := w.f.Write(rec[:])
	if err != nil {
		return fmt.Errorf("eventpipe: emit: %w", err)
	}
	if n != RecordSize {
		return fmt.Errorf("eventpipe: short write (%d of %d bytes)", n, RecordSize)
	}
	return nil
}

// Close closes the write end.
func (w *Writer) Close() error { return w.f.Close() }

// Reader is the supervisor-side handle: read-only, one Next per event.
type Reader struct {
	f *os.File
}

// NewReader wraps the pipe's read end.
func NewReader(f *os.File) *Reader { return &Reader{f: f} }

// Next blocks for exactly one record and returns its Kind. It returns
// io.EOF once every holder of the write end has closed it (in the
// supervisor that includes its own retained write end, not only the
// workers) and no further records are possible.
func (r *Reader) Next() (Kind, error) {
	var rec [RecordSize]byte
	if _, err := io.ReadFull(r.f, rec[:]); err != nil {
		return KindUnknown, err
	}
	return Decode(rec[:]), nil
}

// Close closes the read end.
func (r *Reader) Close() error { return r.f.Close() }

// New creates the pipe and returns both ends wrapped. The caller (the
// supervisor) keeps both objects: the Reader for its own event loop, and
// the underlying write-end *os.File (via Writer.File) to hand to each
// spawned worker's ExtraFiles.
func New() (*Writer, *Reader, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("eventpipe: create pipe: %w", err)
	}
	return NewWriter(w), NewReader(r), nil
}

// File exposes the underlying write-end file so the supervisor can pass it
// to exec.Cmd.ExtraFiles for each newly spawned worker. The supervisor
// itself never calls Emit on this handle — see SPEC_FULL.md (C2) for why the
// write end cannot be literally closed in the supervisor's copy the way a
// forked process would, when workers are spawned via self-exec over the
// whole process lifetime (variant a's top-up).
func (w *Writer) File() *os.File { return w.f }
