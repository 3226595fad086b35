package search

import (
	"context"
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO shared by producers and consumers. Push never
// blocks; Pop blocks until an item is available or the context ends.
//
// Consumers call Done after they finish with a popped item. Pending counts
// items that were pushed but not yet marked done, which lets callers tell
// whether all queued work has been fully processed.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	ready chan struct{}
	done  chan struct{}

	pending   atomic.Int64
	closeOnce sync.Once
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v. It returns false if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.pending.Add(1)
	q.mu.Unlock()
	q.signal()
	return true
}

// PushAll appends vs in order. It returns false if the queue is closed.
func (q *Queue[T]) PushAll(vs []T) bool {
	if len(vs) == 0 {
		return true
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, vs...)
	q.pending.Add(int64(len(vs)))
	q.mu.Unlock()
	q.signal()
	return true
}

// Pop removes and returns the oldest item. ok is false when the context is
// done, or when the queue is closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v = q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0
			if !more {
				q.items = nil
			}
			q.mu.Unlock()
			if more {
				// wake the next consumer
				q.signal()
			}
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return v, false
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Done marks one popped item as fully processed.
func (q *Queue[T]) Done() {
	q.pending.Add(-1)
}

// Pending returns the number of items pushed and not yet marked done.
func (q *Queue[T]) Pending() int {
	return int(q.pending.Load())
}

// Len returns the number of items waiting to be popped.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new items. Consumers drain what is left and then
// Pop reports !ok.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
