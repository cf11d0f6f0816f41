package participant

import (
    "context"
    "errors"
    "sync"
)

var errQueueClosed = errors.New("queue closed")

// queue is an unbounded FIFO. Producers never block; consumers either wait
// in pop or watch ready and drain with tryPop.
type queue[T any] struct {
    mu     sync.Mutex
    items  []T
    closed bool
    ready  chan struct{}
}

func newQueue[T any]() *queue[T] { return &queue[T]{ready: make(chan struct{}, 1)} }

func (q *queue[T]) signal() {
    select { case q.ready <- struct{}{}: default: }
}

// push reports false when the queue is already closed.
func (q *queue[T]) push(v T) bool {
    q.mu.Lock(); defer q.mu.Unlock()
    if q.closed { return false }
    q.items = append(q.items, v)
    q.signal()
    return true
}

// close keeps queued items poppable.
func (q *queue[T]) close() {
    q.mu.Lock(); defer q.mu.Unlock()
    if q.closed { return }
    q.closed = true
    q.signal()
}

func (q *queue[T]) tryPop() (T, bool) {
    q.mu.Lock(); defer q.mu.Unlock()
    var zero T
    if len(q.items) == 0 { return zero, false }
    v := q.items[0]
    q.items[0] = zero
    q.items = q.items[1:]
    return v, true
}

// pop blocks until an item is available, the queue is closed and empty, or
// ctx is done.
func (q *queue[T]) pop(ctx context.Context) (T, error) {
    for {
        q.mu.Lock()
        if len(q.items) > 0 {
            var zero T
            v := q.items[0]
            q.items[0] = zero
            q.items = q.items[1:]
            if len(q.items) > 0 || q.closed { q.signal() }
            q.mu.Unlock()
            return v, nil
        }
        if q.closed {
            q.signal()
            q.mu.Unlock()
            var zero T
            return zero, errQueueClosed
        }
        q.mu.Unlock()
        select {
        case <-ctx.Done():
            var zero T
            return zero, ctx.Err()
        case <-q.ready:
        }
    }
}

// drain empties the queue and returns what was in it.
func (q *queue[T]) drain() []T {
    q.mu.Lock(); defer q.mu.Unlock()
    out := q.items
    q.items = nil
    return out
}
