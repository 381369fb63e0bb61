// Package peerstream models spec.md §3's "peer stream": a connected
// bidirectional byte stream plus a write mutex, and the single-slot
// "current stream" reference each side of the proxy publishes into.
//
// Slot uses a closed-channel broadcast instead of the shared mutable
// pointer spec.md §9 flags for replacement by message passing: callers
// that need to notice a stream coming or going select on Changed()
// rather than polling Get().
package peerstream

import (
	"io"
	"net"
	"sync"
)

// Stream wraps one accepted or dialed connection. Writes are serialized so
// ACK replies, forwarded records, and queue drains can share it safely
// (spec.md §4.3 "write mutex").
type Stream struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// Wrap adapts conn into a Stream.
func Wrap(conn net.Conn) *Stream {
	return &Stream{conn: conn}
}

// Write sends a fully framed record. Safe for concurrent callers.
func (s *Stream) Write(framed []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(framed)
	return err
}

// Reader exposes the underlying connection for a single-reader deframer.
func (s *Stream) Reader() io.Reader { return s.conn }

// Close closes the underlying connection.
func (s *Stream) Close() error { return s.conn.Close() }

// RemoteAddr returns the peer's address, or "" if unknown.
func (s *Stream) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// Slot holds the current stream for one side of the proxy (spec.md §3
// "Peer stream ... acquisition replaces any previous reference"). Set(nil)
// clears it, e.g. when a connector's session ends.
type Slot struct {
	mu      sync.Mutex
	current *Stream
	changed chan struct{}
}

// NewSlot returns an empty Slot.
func NewSlot() *Slot {
	return &Slot{changed: make(chan struct{})}
}

// Get returns the current stream, or nil if the side is disconnected.
func (s *Slot) Get() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the current stream and wakes anyone waiting on Changed().
func (s *Slot) Set(st *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = st
	close(s.changed)
	s.changed = make(chan struct{})
}

// Changed returns a channel that closes the next time Set is called.
func (s *Slot) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}
