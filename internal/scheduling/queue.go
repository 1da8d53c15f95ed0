package scheduling

import (
	"context"
	"sync"
)

// FIFOQueue is a bounded circular queue of pending invocations for one
// function. Enqueue rejects when full (backpressure); existing entries are
// never evicted. There is a single consumer, the function's scheduling loop.
type FIFOQueue struct {
	mu       sync.Mutex
	data     []*trackedInvocation
	capacity int
	head     int
	tail     int
	size     int
	notEmpty chan struct{}
}

// NewFIFOQueue creates a queue admitting up to n pending invocations.
func NewFIFOQueue(n int) *FIFOQueue {
	return &FIFOQueue{
		data:     make([]*trackedInvocation, n),
		capacity: n,
		notEmpty: make(chan struct{}, 1),
	}
}

// Enqueue pushes an invocation to the back. Returns false when the queue is
// full, without blocking.
func (q *FIFOQueue) Enqueue(t *trackedInvocation) bool {
	q.mu.Lock()
	if q.size == q.capacity {
		q.mu.Unlock()
		return false
	}

	q.data[q.tail] = t
	q.tail = (q.tail + 1) % q.capacity
	q.size = q.size + 1
	q.mu.Unlock()

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	return true
}

// Dequeue pops the oldest invocation, blocking until one is available or ctx
// is canceled.
func (q *FIFOQueue) Dequeue(ctx context.Context) (*trackedInvocation, error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			t := q.data[q.head]
			q.data[q.head] = nil
			q.head = (q.head + 1) % q.capacity
			q.size = q.size - 1
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notEmpty:
		}
	}
}

// Remove deletes t wherever it sits in the queue, preserving the order of
// the remaining entries. Returns false if t is not queued.
func (q *FIFOQueue) Remove(t *trackedInvocation) bool {
	return q.Sweep(func(x *trackedInvocation) bool { return x == t }) > 0
}

// Sweep removes every entry for which drop returns true, compacting the
// queue so the freed slots admit new invocations again. Returns the number
// of removed entries. drop is called with the queue lock held.
func (q *FIFOQueue) Sweep(drop func(*trackedInvocation) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return 0
	}

	kept := make([]*trackedInvocation, 0, q.size)
	for i := 0; i < q.size; i++ {
		t := q.data[(q.head+i)%q.capacity]
		if !drop(t) {
			kept = append(kept, t)
		}
	}
	removed := q.size - len(kept)
	if removed == 0 {
		return 0
	}

	for i := range q.data {
		q.data[i] = nil
	}
	copy(q.data, kept)
	q.head = 0
	q.tail = len(kept) % q.capacity
	q.size = len(kept)
	return removed
}

// Len returns the current number of pending invocations.
func (q *FIFOQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
