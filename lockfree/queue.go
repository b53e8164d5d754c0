// Package lockfree holds the two primitives shared between the control
// thread and the real-time engines: a bounded single-producer/single-consumer
// queue and a triple-buffered value cell. Neither blocks, locks or allocates
// after construction.
package lockfree

import (
	"errors"
	"sync/atomic"
)

// ErrFull is returned by Push when the queue has no free slot.
var ErrFull = errors.New("queue full")

// Queue is a bounded SPSC ring. Exactly one goroutine may call Push and
// exactly one other goroutine may call Pop/Drain.
type Queue[T any] struct {
	_    [64]byte
	head atomic.Uint64 // next slot to read, owned by the consumer
	_    [56]byte
	tail atomic.Uint64 // next slot to write, owned by the producer
	_    [56]byte
	mask uint64
	buf  []T
}

// NewQueue returns a queue holding at least capacity values. The capacity is
// rounded up to a power of two (minimum 2).
func NewQueue[T any](capacity int) *Queue[T] {
	n := uint64(2)
	for n < uint64(capacity) {
		n <<= 1
	}
	return &Queue[T]{mask: n - 1, buf: make([]T, n)}
}

// Push appends v. It never blocks; a full queue returns ErrFull and leaves the
// queue unchanged.
func (q *Queue[T]) Push(v T) error {
	tail := q.tail.Load()
	if tail-q.head.Load() > q.mask {
		return ErrFull
	}
	q.buf[tail&q.mask] = v
	q.tail.Store(tail + 1)
	return nil
}

// Pop removes the oldest value.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	head := q.head.Load()
	if head == q.tail.Load() {
		return zero, false
	}
	i := head & q.mask
	v := q.buf[i]
	q.buf[i] = zero
	q.head.Store(head + 1)
	return v, true
}

// Drain hands every value queued at the time of the call to fn in FIFO order
// and returns how many were delivered. Values pushed while draining wait for
// the next call, so a busy producer cannot starve the consumer's caller.
func (q *Queue[T]) Drain(fn func(T)) int {
	var zero T
	head := q.head.Load()
	tail := q.tail.Load()
	for i := head; i != tail; i++ {
		slot := i & q.mask
		v := q.buf[slot]
		q.buf[slot] = zero
		q.head.Store(i + 1)
		fn(v)
	}
	return int(tail - head)
}

// Len is the number of queued values. It is exact only when called from the
// producer or consumer with the other side idle.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap is the number of slots.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}
