// Package ringbuf implements the fixed-capacity channels between the control
// goroutine and the audio goroutine.
//
// Ring is a lock-free single-producer single-consumer queue of values. The
// read and write positions run freely and are only masked when indexing the
// buffer, so the ring is empty when they are equal and full when they differ
// by the capacity. Neither side ever blocks or allocates.
//
// Channel adds sequence numbers and acknowledgments on top of a Ring: the
// writer may ask to be told when the reader has fully processed a record.
package ringbuf

import "sync/atomic"

type Ring[T any] struct {
	buffer []T
	mask   uint64
	write  atomic.Uint64 // owned by the producer
	read   atomic.Uint64 // owned by the consumer
}

// NewRing creates a ring that holds at least capacity values. The capacity is
// rounded up to a power of two.
func NewRing[T any](capacity int) *Ring[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring[T]{buffer: make([]T, size), mask: uint64(size - 1)}
}

// TrySend enqueues v if there is room. It must only be called by the single
// producer. Returns false if the ring is full; queued values are unaffected.
func (r *Ring[T]) TrySend(v T) bool {
	w := r.write.Load()
	if w-r.read.Load() >= uint64(len(r.buffer)) {
		return false
	}
	r.buffer[w&r.mask] = v
	r.write.Store(w + 1)
	return true
}

// TryReceive dequeues the oldest value into v. It must only be called by the
// single consumer. Returns false if the ring is empty.
func (r *Ring[T]) TryReceive(v *T) bool {
	rd := r.read.Load()
	if rd == r.write.Load() {
		return false
	}
	var zero T
	*v = r.buffer[rd&r.mask]
	r.buffer[rd&r.mask] = zero // drop references held by the slot
	r.read.Store(rd + 1)
	return true
}

// Len returns the number of queued values. Only a snapshot when called
// concurrently with the other side.
func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

func (r *Ring[T]) Cap() int {
	return len(r.buffer)
}
