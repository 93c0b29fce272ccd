package stream

import (
	"context"
	"sync"
)

// CommandQueue is an unbounded FIFO. Producers never block; a single consumer
// waits in Dequeue.
type CommandQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func NewCommandQueue[T any]() *CommandQueue[T] {
	return &CommandQueue[T]{signal: make(chan struct{}, 1)}
}

// -----------------------------------------------------------------------------

// Enqueue appends item to the tail.
func (q *CommandQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.notify()
}

// Requeue puts item back at the head, for a command that could not be sent.
func (q *CommandQueue[T]) Requeue(item T) {
	q.mu.Lock()
	q.items = append([]T{item}, q.items...)
	q.mu.Unlock()
	q.notify()
}

// Dequeue blocks until an item is available or ctx is done.
func (q *CommandQueue[T]) Dequeue(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.notify()
			}
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Wait blocks until the queue holds an item or ctx is done. The item stays
// queued.
func (q *CommandQueue[T]) Wait(ctx context.Context) error {
	for {
		if q.Len() > 0 {
			return nil
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of pending items.
func (q *CommandQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *CommandQueue[T]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
