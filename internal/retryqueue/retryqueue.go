// Package retryqueue buffers outbound HL7 records for a peer that is
// currently disconnected, draining them in FIFO order once the peer
// reconnects (spec.md §3 invariants I3/I4, §4.5).
//
// The queue itself needs nothing beyond container/list and sync: no pack
// library models a bounded, drain-on-reconnect FIFO, so this stays on the
// standard library (see SPEC_FULL.md's "Standard-library-only components").
package retryqueue

import (
	"container/list"
	"sync"
)

// Queue is a FIFO of pending payloads, safe for concurrent producers and a
// single drain loop.
type Queue struct {
	mu       sync.Mutex
	items    *list.List
	maxDepth int

	dropped uint64
}

// New creates a Queue. maxDepth <= 0 means unbounded (spec.md's reference
// behavior); maxDepth > 0 drops the oldest entry to make room for a new one,
// resolving the §9 "Queue with backpressure" Open Question per SPEC_FULL.md.
func New(maxDepth int) *Queue {
	return &Queue{items: list.New(), maxDepth: maxDepth}
}

// Push enqueues payload at the tail. If the queue is at MaxQueueDepth, the
// oldest entry is dropped first and Dropped() is incremented.
func (q *Queue) Push(payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxDepth > 0 && q.items.Len() >= q.maxDepth {
		q.items.Remove(q.items.Front())
		q.dropped++
	}
	q.items.PushBack(payload)
}

// PushFront re-queues payload at the head, used when a drain attempt's
// write fails and the record must be retried first on the next attempt
// (spec.md §4.5 "failed writes go back to the head of the queue").
func (q *Queue) PushFront(payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items.PushFront(payload)
}

// Pop removes and returns the head of the queue, or (nil, false) if empty.
func (q *Queue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	q.items.Remove(front)
	return front.Value.([]byte), true
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Dropped reports the total number of entries evicted to satisfy
// MaxQueueDepth since the queue was created.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
