// Package queue buffers per-file range writes between scan workers and the
// range store writer.
package queue

import (
	"context"
	"io"
	"sync"
	"time"

	"rangefinder/internal/core/ports"
)

var _ ports.WriteQueuePort = (*MemoryQueue)(nil)

// MemoryQueue is a bounded FIFO of extracted file records awaiting
// persistence. Scan workers enqueue; a single writer drains in batches.
type MemoryQueue struct {
	pending chan ports.WriteRequest
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryQueue holds at most capacity records (minimum one).
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{pending: make(chan ports.WriteRequest, max(capacity, 1))}
}

// Enqueue never blocks a scan worker. A full or closed queue drops the record
// and the caller writes it synchronously instead.
func (q *MemoryQueue) Enqueue(req ports.WriteRequest) ports.EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ports.EnqueueDropped
	}
	select {
	case q.pending <- req:
		return ports.EnqueueAccepted
	default:
		return ports.EnqueueDropped
	}
}

// DequeueBatch waits up to wait for the first record, then takes whatever
// else is immediately available up to maxItems. It returns io.EOF once the
// queue is closed and drained, alongside any final records.
func (q *MemoryQueue) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]ports.WriteRequest, error) {
	first, ok, err := q.next(ctx, wait)
	if !ok {
		return nil, err
	}

	batch := make([]ports.WriteRequest, 1, max(maxItems, 1))
	batch[0] = first
	for len(batch) < cap(batch) {
		select {
		case req, open := <-q.pending:
			if !open {
				return batch, io.EOF
			}
			batch = append(batch, req)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// next takes one record, waiting up to wait when none is pending. ok is false
// when nothing was taken; err is then io.EOF, ctx.Err() or nil on timeout.
func (q *MemoryQueue) next(ctx context.Context, wait time.Duration) (ports.WriteRequest, bool, error) {
	select {
	case req, open := <-q.pending:
		if !open {
			return ports.WriteRequest{}, false, io.EOF
		}
		return req, true, nil
	default:
	}
	if wait <= 0 {
		return ports.WriteRequest{}, false, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case req, open := <-q.pending:
		if !open {
			return ports.WriteRequest{}, false, io.EOF
		}
		return req, true, nil
	case <-ctx.Done():
		return ports.WriteRequest{}, false, ctx.Err()
	case <-timer.C:
		return ports.WriteRequest{}, false, nil
	}
}

// Close stops intake; records already queued remain available to DequeueBatch.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	return nil
}

// Len reports how many records await the writer.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.pending)
}
