package sequencer

import (
	"time"

	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/pool"
)

// DispatchNotifications drains the notification ring and fires every
// notification on the event bus. It returns the number of notifications
// drained. Safe to call from any goroutine; concurrent calls are serialized.
func (s *Sequence) DispatchNotifications() int {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	if d := s.broker.Dropped(); d > 0 {
		s.logger.Warn("sequencer: notification ring overflowed", "dropped", d)
	}
	n := 0
	var note Notification
	for s.broker.ToSequence.TryReceive(&note) {
		n++
		if note.Kind == TrackFailed {
			s.logger.Warn("sequencer: resampler failed, track disabled until its sample is set again", "track", note.Track)
		}
		if s.bus == nil {
			continue
		}
		e := event.Event{
			Subject: event.Subject{Source: s.source, Name: note.Kind.String()},
			Track:   note.Track,
			Beat:    note.Beat,
			Value:   note.Value,
			Flag:    note.Flag,
		}
		if err := s.bus.Fire(e, nil); err != nil {
			s.logger.Debug("sequencer: cannot fire notification", "kind", note.Kind, "err", err)
		}
	}
	return n
}

// AttachPump schedules DispatchNotifications on p every interval. Call the
// returned function to stop it.
func (s *Sequence) AttachPump(p *pool.Pool, interval time.Duration) (cancel func(), err error) {
	return p.Schedule(interval, func() bool {
		s.DispatchNotifications()
		return true
	})
}
