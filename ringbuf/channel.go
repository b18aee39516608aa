package ringbuf

import "sync/atomic"

type (
	// Channel is a Ring of records with sequence numbers. A writer that needs
	// to know when the reader has applied a record asks for an ack when
	// sending, and gets a Ticket to wait on.
	Channel[T any] struct {
		ring *Ring[item[T]]

		seq uint64 // last sequence number used, producer only

		pending uint64 // highest received seq that wants an ack, consumer only
		acked   atomic.Uint64
		signal  chan struct{}
	}

	// Ticket identifies a sent record. The zero Ticket is always acknowledged.
	Ticket uint64

	item[T any] struct {
		value T
		seq   uint64
		ack   bool
	}
)

func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		ring:   NewRing[item[T]](capacity),
		signal: make(chan struct{}, 1),
	}
}

// TrySend enqueues v without blocking. If ack is true the reader will
// acknowledge it after processing. Returns false if the channel is full.
func (c *Channel[T]) TrySend(v T, ack bool) (Ticket, bool) {
	if !c.ring.TrySend(item[T]{value: v, seq: c.seq + 1, ack: ack}) {
		return 0, false
	}
	c.seq++
	return Ticket(c.seq), true
}

// TryReceive dequeues the oldest record without blocking.
func (c *Channel[T]) TryReceive(v *T) bool {
	var it item[T]
	if !c.ring.TryReceive(&it) {
		return false
	}
	if it.ack {
		c.pending = it.seq
	}
	*v = it.value
	return true
}

// Ack acknowledges every record received so far that asked for it. The reader
// calls it once all drained records have been fully applied. Never blocks.
func (c *Channel[T]) Ack() {
	if c.pending <= c.acked.Load() {
		return
	}
	c.acked.Store(c.pending)
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Acked reports whether the record with the given ticket, and so every record
// before it, has been acknowledged. Records sent without ack are covered by a
// later acknowledged record.
func (c *Channel[T]) Acked(t Ticket) bool {
	return uint64(t) <= c.acked.Load()
}

// Signal returns a channel that receives a value after acknowledgments. It is
// only a wake-up hint: check Acked after receiving.
func (c *Channel[T]) Signal() <-chan struct{} {
	return c.signal
}

// Last returns the ticket of the most recently sent record.
func (c *Channel[T]) Last() Ticket {
	return Ticket(c.seq)
}

func (c *Channel[T]) Len() int { return c.ring.Len() }
func (c *Channel[T]) Cap() int { return c.ring.Cap() }
