// Package queue is the bounded intake buffer between source adapters
// and the normalization pipeline. Producers never block; when the
// buffer is full the record is dropped and counted, backpressure is
// the caller's signal to slow down.
package queue

import (
	"context"
	"sync"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10000
)

// Record is the payload type flowing through the queue.
type Record = model.RawRecord

// Queue provides non-blocking enqueue and channel-based dequeue
// semantics for raw feed records.
type Queue interface {
	// Enqueue adds a record. Returns false if the queue is full or
	// closed and the record was dropped.
	Enqueue(ctx context.Context, r Record) bool

	// Dequeue returns a channel receiving records as they become
	// available. The channel closes when the queue closes.
	Dequeue(ctx context.Context) <-chan Record

	// Len returns the current number of buffered records.
	Len(ctx context.Context) int

	// Close shuts the queue down. Buffered records remain consumable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue over a buffered channel.
type InMemoryQueue struct {
	records  chan Record
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an in-memory queue with configuration
// options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.records = make(chan Record, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a record to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Record) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDropped()
		return false
	}

	select {
	case q.records <- r:
		size := len(q.records)
		metrics.UpdateQueueSize(size)
		metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
		return true
	case <-ctx.Done():
		metrics.RecordQueueDropped()
		return false
	default:
		metrics.RecordQueueDropped()
		return false
	}
}

// Dequeue returns a channel receiving records as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Record {
	out := make(chan Record)
	go func() {
		defer close(out)
		for r := range q.records {
			select {
			case out <- r:
				size := len(q.records)
				metrics.UpdateQueueSize(size)
				metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of buffered records.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	_ = ctx
	return len(q.records)
}

// Close shuts the queue down.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.records)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
