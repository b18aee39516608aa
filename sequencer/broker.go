package sequencer

import (
	"sync/atomic"
	"time"

	"github.com/vsariola/stepseq/ringbuf"
)

type (
	// Broker holds the two channels between a Sequence and its Player. The
	// command channel carries Commands from the control goroutine to the
	// audio goroutine, and the audio goroutine acknowledges them once applied.
	// The notification ring carries Notifications the other way. Both are
	// fixed-capacity rings, so neither side ever blocks on the other: the
	// audio goroutine drops a notification if the ring is full, and the
	// control goroutine retries a command with a short sleep.
	Broker struct {
		ToPlayer   *ringbuf.Channel[Command]
		ToSequence *ringbuf.Ring[Notification]

		// dropped counts notifications that did not fit in ToSequence.
		dropped atomic.Uint64
	}
)

func NewBroker(commands, notifications int) *Broker {
	return &Broker{
		ToPlayer:   ringbuf.NewChannel[Command](commands),
		ToSequence: ringbuf.NewRing[Notification](notifications),
	}
}

// Notify queues a notification without blocking. Called only by the audio
// goroutine.
func (b *Broker) Notify(n Notification) bool {
	if !b.ToSequence.TrySend(n) {
		b.dropped.Add(1)
		return false
	}
	return true
}

// Dropped returns and resets the number of notifications lost since the last
// call.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Swap(0)
}

// retrySend tries to send c until it fits in the channel or timeout expires.
// Between tries it calls wait with an exponentially growing interval; wait is
// expected to sleep or to do some useful work for about that long.
func retrySend(ch *ringbuf.Channel[Command], c Command, ack bool, timeout, interval, maxInterval time.Duration, wait func(time.Duration)) (ringbuf.Ticket, bool) {
	deadline := time.Now().Add(timeout)
	for {
		if t, ok := ch.TrySend(c, ack); ok {
			return t, true
		}
		if time.Now().After(deadline) {
			return 0, false
		}
		wait(interval)
		interval = min(2*interval, maxInterval)
	}
}
