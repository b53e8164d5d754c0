package lockfree

import "sync/atomic"

const (
	slotMask  = 3
	freshFlag = 4
)

// TripleBuffer publishes the latest value from one writer to one reader.
// The writer fills its private slot and swaps it with the shared middle slot;
// the reader swaps the middle slot for its own only when something new was
// written. Neither side ever sees a slot the other is touching.
type TripleBuffer[T any] struct {
	slots [3]T
	write int          // writer's private slot
	read  int          // reader's private slot
	mid   atomic.Int32 // shared slot index | freshFlag
}

// NewTripleBuffer returns a buffer whose reads return initial until the first
// Write.
func NewTripleBuffer[T any](initial T) *TripleBuffer[T] {
	b := &TripleBuffer[T]{write: 0, read: 2}
	b.slots = [3]T{initial, initial, initial}
	b.mid.Store(1)
	return b
}

// Write publishes v. Only one goroutine may write.
func (b *TripleBuffer[T]) Write(v T) {
	b.slots[b.write] = v
	prev := b.mid.Swap(int32(b.write) | freshFlag)
	b.write = int(prev & slotMask)
}

// Read returns the most recently published value. Only one goroutine may
// read.
func (b *TripleBuffer[T]) Read() T {
	if b.mid.Load()&freshFlag != 0 {
		prev := b.mid.Swap(int32(b.read))
		b.read = int(prev & slotMask)
	}
	return b.slots[b.read]
}
