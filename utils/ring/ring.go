// Package ring implements a fixed capacity single-producer single-consumer
// byte ring. Produce and the consumer side (Peek, Consume) may run
// concurrently on two goroutines without locks: the producer only moves
// head, the consumer only moves tail, and both cursors grow monotonically.
package ring

import "sync/atomic"

// Buffer is a lock-free SPSC byte ring.
type Buffer struct {
	data []byte
	head atomic.Uint64 // total bytes produced
	tail atomic.Uint64 // total bytes consumed
}

// New allocates a ring holding up to capacity bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of buffered bytes. Safe from either side.
func (b *Buffer) Len() int {
	return int(b.head.Load() - b.tail.Load()) //nolint:gosec // bounded by capacity
}

// Free returns the space available to the producer.
func (b *Buffer) Free() int {
	return len(b.data) - b.Len()
}

// Produce appends p as a whole. It returns false, leaving the ring
// untouched, when p does not fit. Producer side only.
func (b *Buffer) Produce(p []byte) bool {
	head := b.head.Load()
	tail := b.tail.Load()
	if len(p) > len(b.data)-int(head-tail) { //nolint:gosec // bounded by capacity
		return false
	}
	if len(p) == 0 {
		return true
	}
	first, second := b.segments(head, len(p))
	n := copy(first, p)
	copy(second, p[n:])
	b.head.Store(head + uint64(len(p)))
	return true
}

// Peek returns up to n buffered bytes without consuming them, as at most two
// segments in FIFO order. The segments stay valid until the matching Consume.
// Consumer side only.
func (b *Buffer) Peek(n int) (first, second []byte) {
	tail := b.tail.Load()
	avail := int(b.head.Load() - tail) //nolint:gosec // bounded by capacity
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil, nil
	}
	return b.segments(tail, n)
}

// Consume drops up to n buffered bytes and returns how many were dropped.
// Consumer side only.
func (b *Buffer) Consume(n int) int {
	tail := b.tail.Load()
	avail := int(b.head.Load() - tail) //nolint:gosec // bounded by capacity
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	b.tail.Store(tail + uint64(n))
	return n
}

// Reset drops all buffered bytes. Consumer side only.
func (b *Buffer) Reset() {
	b.tail.Store(b.head.Load())
}

func (b *Buffer) segments(cursor uint64, n int) (first, second []byte) {
	size := uint64(len(b.data))
	start := int(cursor % size) //nolint:gosec // below capacity
	if start+n <= len(b.data) {
		return b.data[start : start+n], nil
	}
	return b.data[start:], b.data[:start+n-len(b.data)]
}
