// Package mllpframe implements MLLP (Minimal Lower Layer Protocol) framing,
// the byte-level envelope HL7 v2 messages use for transport over TCP.
package mllpframe

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MLLP framing bytes as defined in the HL7 v2.x standard.
const (
	// StartBlock is the start-of-record byte (0x0B, vertical tab).
	StartBlock = 0x0B

	// EndBlock is the end-of-record byte (0x1C, file separator).
	EndBlock = 0x1C

	// CarriageReturn follows EndBlock to complete the trailer (0x0D).
	CarriageReturn = 0x0D
)

// ErrDesync describes a resync event. ReadRecord never returns it: bytes
// before a start block are discarded silently, and no log line is written
// for them.
var ErrDesync = errors.New("mllpframe: discarded bytes before start block")

// DefaultMaxRecordSize bounds a single record so a peer that never sends a
// trailer cannot grow the read buffer without limit.
const DefaultMaxRecordSize = 16 * 1024 * 1024

// Frame wraps a payload with MLLP framing: StartBlock, payload, EndBlock,
// CarriageReturn.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, StartBlock)
	out = append(out, payload...)
	out = append(out, EndBlock, CarriageReturn)
	return out
}

// Reader deframes a stream of MLLP records. It tolerates garbage between
// records by discarding bytes until the next StartBlock, and treats an
// EndBlock not immediately followed by CarriageReturn as ordinary payload
// content (the established de facto interpretation of the reference
// implementation this proxy is compatible with).
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

// NewReader creates a Reader that deframes records from r. maxSize <= 0
// selects DefaultMaxRecordSize.
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxRecordSize
	}
	return &Reader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ErrRecordTooLarge is returned when a record exceeds the configured maximum size.
var ErrRecordTooLarge = errors.New("mllpframe: record exceeds maximum size")

// ReadRecord reads the next MLLP-framed record and returns its payload
// (the bytes strictly between StartBlock and the EndBlock/CarriageReturn
// trailer). It returns io.EOF once the stream ends, whether at a record
// boundary or mid-record (a partial buffer is discarded, never returned).
func (r *Reader) ReadRecord() ([]byte, error) {
	if err := r.syncToStart(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}

		if b != EndBlock {
			if buf.Len() >= r.maxSize {
				return nil, ErrRecordTooLarge
			}
			buf.WriteByte(b)
			continue
		}

		next, err := r.r.ReadByte()
		if err != nil {
			return nil, io.EOF
		}
		if next != CarriageReturn {
			// Not a valid trailer; both bytes are part of the payload.
			buf.WriteByte(b)
			buf.WriteByte(next)
			continue
		}
		return buf.Bytes(), nil
	}
}

// syncToStart discards bytes until StartBlock is seen, tolerating
// keep-alive noise and garbage between records.
func (r *Reader) syncToStart() error {
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return io.EOF
		}
		if b == StartBlock {
			return nil
		}
	}
}

// Unwrap strips a well-formed frame's start/trailer bytes and returns the
// payload, or ok=false if record isn't shaped like one (too short, or
// missing the expected sentinels at either end). Used to recover the
// original HL7 text from a retry-queue entry, which spec.md §3 stores
// pre-framed.
func Unwrap(record []byte) (payload []byte, ok bool) {
	if len(record) < 3 {
		return nil, false
	}
	if record[0] != StartBlock {
		return nil, false
	}
	n := len(record)
	if record[n-2] != EndBlock || record[n-1] != CarriageReturn {
		return nil, false
	}
	return record[1 : n-2], true
}

// Writer frames and writes HL7 payloads to the underlying stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer that writes framed records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRecord frames payload and writes it in a single call, so a
// concurrent writer to the same underlying connection cannot interleave
// partial frames.
func (w *Writer) WriteRecord(payload []byte) error {
	_, err := w.w.Write(Frame(payload))
	return err
}
