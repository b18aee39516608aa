package sequencer

import (
	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/resample"
	"github.com/vsariola/stepseq/ringbuf"
)

type (
	// pendingFree is something the audio goroutine may still reference until
	// the command with the given ticket has been acknowledged.
	pendingFree struct {
		ticket    ringbuf.Ticket
		sample    *stepseq.Sample
		resampler resample.Resampler
		ports     []stepseq.Port
	}
)

func (s *Sequence) deferFree(t ringbuf.Ticket, sample *stepseq.Sample, r resample.Resampler, ports ...stepseq.Port) {
	if sample == nil && r == nil && len(ports) == 0 {
		return
	}
	s.pending = append(s.pending, pendingFree{ticket: t, sample: sample, resampler: r, ports: ports})
}

// collect releases every pending item whose command has been acknowledged.
// With force, everything is released; the caller must make sure the audio
// goroutine is gone.
func (s *Sequence) collect(force bool) {
	kept := s.pending[:0]
	for _, f := range s.pending {
		if !force && !s.broker.ToPlayer.Acked(f.ticket) {
			kept = append(kept, f)
			continue
		}
		f.sample.Release()
		if f.resampler != nil {
			if err := f.resampler.Close(); err != nil {
				s.logger.Warn("sequencer: cannot close resampler", "err", err)
			}
		}
		for _, p := range f.ports {
			if err := s.backend.UnregisterPort(p); err != nil {
				s.logger.Warn("sequencer: cannot unregister port", "port", p, "err", err)
			}
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
}
