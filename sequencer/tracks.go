package sequencer

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/resample"
)

// Resize changes the number of tracks and beats. Tracks are removed from or
// added to the end; patterns and masks are truncated or extended. With
// duplicate, a growing pattern repeats the old one instead of being padded
// with empty beats. If the ports of the new tracks cannot be registered,
// nothing changes and a *StructuralError is returned.
func (s *Sequence) Resize(tracksNum, beatsNum, measureLen int, duplicate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tracksNum < 0 {
		return rejected("tracks", tracksNum)
	}
	origins := make([]int, tracksNum)
	for i := range origins {
		origins[i] = -1
		if i < len(s.tracks) {
			origins[i] = i
		}
	}
	return s.reshape("resize", origins, beatsNum, measureLen, duplicate)
}

// AddTrack appends an empty track and returns its index.
func (s *Sequence) AddTrack(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.tracks)
	origins := make([]int, n+1)
	for i := 0; i < n; i++ {
		origins[i] = i
	}
	origins[n] = -1
	if err := s.reshape("add track", origins, s.beatsNum, s.measureLen, false); err != nil {
		return -1, err
	}
	if name != "" {
		s.tracks[n].name = name
	}
	return n, nil
}

// RemoveTrack removes track i; the tracks after it move up by one.
func (s *Sequence) RemoveTrack(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.model(i); err != nil {
		return err
	}
	origins := make([]int, 0, len(s.tracks)-1)
	for j := range s.tracks {
		if j != i {
			origins = append(origins, j)
		}
	}
	return s.reshape("remove track", origins, s.beatsNum, s.measureLen, false)
}

// reshape replaces the track array with one where track i is the old track
// origins[i], or a new track if origins[i] is -1. The caller holds s.mu.
func (s *Sequence) reshape(op string, origins []int, beatsNum, measureLen int, duplicate bool) error {
	if beatsNum < 1 {
		return rejected("beats", beatsNum)
	}
	if measureLen < 1 {
		return rejected("measure", measureLen)
	}
	kept := make([]bool, len(s.tracks))
	for _, o := range origins {
		if o >= len(s.tracks) {
			return rejected("track", o)
		}
		if o >= 0 {
			kept[o] = true
		}
	}
	var removed []int
	for i, k := range kept {
		if !k {
			removed = append(removed, i)
		}
	}
	fail := func(err error) error {
		if len(removed) > 0 {
			if _, uerr := s.send(Command{Kind: CmdUnlockTracks, Tracks: removed}); uerr != nil {
				err = errors.Join(err, uerr)
			}
		}
		s.err = &StructuralError{Op: op, Err: err}
		s.logger.Warn("sequencer: structural change rolled back", "op", op, "err", err)
		return s.err
	}
	if len(removed) > 0 {
		if _, err := s.send(Command{Kind: CmdLockTracks, Tracks: removed}); err != nil {
			return fail(err)
		}
	}
	var created []stepseq.Port
	models := make([]*trackModel, len(origins))
	tracks := make([]*Track, len(origins))
	for i, o := range origins {
		m := &trackModel{name: fmt.Sprintf("Track %d", i+1), gain: 1, ports: [2]stepseq.Port{stepseq.NoPort, stepseq.NoPort}}
		if o >= 0 {
			old := *s.tracks[o]
			m = &old
			m.pattern = resizeBeats(old.pattern, beatsNum, duplicate, false)
			if old.mask != nil {
				m.mask = resizeBeats(old.mask, beatsNum, duplicate, true)
			}
		} else {
			m.pattern = make([]bool, beatsNum)
			for c, side := range [2]string{"L", "R"} {
				p, err := s.backend.RegisterPort(fmt.Sprintf("track_%d_%s", i+1, side), c)
				if err != nil {
					for _, p := range created {
						s.backend.UnregisterPort(p)
					}
					return fail(err)
				}
				created = append(created, p)
				m.ports[c] = p
			}
		}
		m.audio = newTrack(slices.Clone(m.pattern), slices.Clone(m.mask), m.ports, s.blockSize)
		models[i], tracks[i] = m, m.audio
	}
	t, err := s.send(Command{Kind: CmdResize, Resize: &ResizeArgs{Tracks: tracks, Origins: origins, BeatsNum: beatsNum, MeasureLen: measureLen}})
	if err != nil && !errors.Is(err, ErrAckTimeout) {
		for _, p := range created {
			s.backend.UnregisterPort(p)
		}
		return fail(err)
	}
	for _, i := range removed {
		m := s.tracks[i]
		s.deferFree(t, m.sample, m.resampler, m.ports[0], m.ports[1])
	}
	s.tracks, s.beatsNum, s.measureLen = models, beatsNum, measureLen
	s.collect(false)
	s.logger.Debug("sequencer: reshaped", "op", op, "tracks", len(models), "beats", beatsNum, "measure", measureLen)
	return err
}

// resizeBeats copies a pattern or mask to a new length. New beats are fill,
// or a repetition of the old beats with duplicate.
func resizeBeats(old []bool, n int, duplicate, fill bool) []bool {
	ret := make([]bool, n)
	copy(ret, old)
	for i := len(old); i < n; i++ {
		if duplicate && len(old) > 0 {
			ret[i] = old[i%len(old)]
		} else {
			ret[i] = fill
		}
	}
	return ret
}

// SwapTracks exchanges the places of tracks a and b.
func (s *Sequence) SwapTracks(a, b int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.model(a); err != nil {
		return err
	}
	if _, err := s.model(b); err != nil {
		return err
	}
	if a == b {
		return nil
	}
	_, err := s.send(Command{Kind: CmdSwapTracks, Track: a, Arg: b})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		s.tracks[a], s.tracks[b] = s.tracks[b], s.tracks[a]
	}
	return err
}

// LockTrack makes the player skip the track until UnlockTrack.
func (s *Sequence) LockTrack(i int) error {
	return s.trackCommand(i, Command{Kind: CmdLockTrack, Track: i}, nil)
}

func (s *Sequence) UnlockTrack(i int) error {
	return s.trackCommand(i, Command{Kind: CmdUnlockTrack, Track: i}, nil)
}

// SetSample replaces the sample of track i; nil removes it. The sequence
// takes its own reference, so the caller may release theirs.
func (s *Sequence) SetSample(i int, sample *stepseq.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return err
	}
	return s.setSample(m, i, sample)
}

func (s *Sequence) setSample(m *trackModel, i int, sample *stepseq.Sample) error {
	args := &SampleArgs{Step: 1}
	if sample != nil {
		r, err := s.newResampler(sample.Channels)
		if err != nil {
			s.err = &StructuralError{Op: "set sample", Err: err}
			return s.err
		}
		args.Sample = sample.Retain()
		args.Resampler = r
		args.Step = 1 / s.ratio(sample, m.pitch)
		args.Scratch = make([]float32, s.blockSize*sample.Channels)
	}
	t, err := s.send(Command{Kind: CmdSetSample, Track: i, Sample: args})
	if err != nil && !errors.Is(err, ErrAckTimeout) {
		args.Sample.Release()
		if args.Resampler != nil {
			args.Resampler.Close()
		}
		return err
	}
	s.deferFree(t, m.sample, m.resampler)
	m.sample, m.resampler = args.Sample, args.Resampler
	s.collect(false)
	return err
}

func (s *Sequence) newResampler(channels int) (resample.Resampler, error) {
	r, err := resample.New(s.resampler, channels)
	if errors.Is(err, resample.ErrUnavailable) {
		s.logger.Warn("sequencer: falling back to linear resampler", "type", s.resampler)
		return resample.New(resample.LinearType, channels)
	}
	return r, err
}

// ratio is output frames per input frame for sample played at pitch.
func (s *Sequence) ratio(sample *stepseq.Sample, pitch float64) float64 {
	return float64(s.framerate) / float64(sample.Framerate) / math.Exp2(pitch/12)
}

// Sample returns the sample of track i, without taking a reference.
func (s *Sequence) Sample(i int) (*stepseq.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return nil, err
	}
	return m.sample, nil
}

// SetResamplerType changes the resampler of every track with a sample and of
// samples set later.
func (s *Sequence) SetResamplerType(t resample.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t < 0 || t >= resample.NumTypes {
		return rejected("resampler", t)
	}
	s.resampler = t
	for i, m := range s.tracks {
		if m.sample == nil {
			continue
		}
		if err := s.setSample(m, i, m.sample); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequence) ResamplerType() resample.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resampler
}

// EnableMask turns on the beat mask of track i with every beat audible.
func (s *Sequence) EnableMask(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return err
	}
	if m.mask != nil {
		return nil
	}
	mask := resizeBeats(nil, s.beatsNum, false, true)
	_, err = s.send(Command{Kind: CmdEnableMask, Track: i, Mask: slices.Clone(mask)})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		m.mask = mask
	}
	return err
}

func (s *Sequence) DisableMask(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return err
	}
	if m.mask == nil {
		return nil
	}
	_, err = s.send(Command{Kind: CmdDisableMask, Track: i})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		m.mask = nil
	}
	return err
}

func (s *Sequence) MaskEnabled(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return false, err
	}
	return m.mask != nil, nil
}

// SetMaskBeat makes beat b of track i audible (on) or silent. The mask must
// be enabled.
func (s *Sequence) SetMaskBeat(i, b int, on bool) error {
	return s.trackCommand(i, Command{Kind: CmdSetMaskBeat, Track: i, Arg: b, On: on}, func(m *trackModel) error {
		if m.mask == nil {
			return rejected("mask of track", i)
		}
		if b < 0 || b >= len(m.mask) {
			return rejected("beat", b)
		}
		m.mask[b] = on
		return nil
	})
}

func (s *Sequence) MaskBeat(i, b int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return false, err
	}
	if b < 0 || b >= len(m.mask) {
		return false, rejected("beat", b)
	}
	return m.mask[b], nil
}

// SetBeat turns beat b of track i on or off.
func (s *Sequence) SetBeat(i, b int, on bool) error {
	return s.trackCommand(i, Command{Kind: CmdSetBeat, Track: i, Arg: b, On: on}, func(m *trackModel) error {
		if b < 0 || b >= len(m.pattern) {
			return rejected("beat", b)
		}
		m.pattern[b] = on
		return nil
	})
}

func (s *Sequence) Beat(i, b int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return false, err
	}
	if b < 0 || b >= len(m.pattern) {
		return false, rejected("beat", b)
	}
	return m.pattern[b], nil
}

// SetVolumeDB sets the volume of track i, clamped to [DBMin, DBMax].
func (s *Sequence) SetVolumeDB(i int, db float64) error {
	if math.IsNaN(db) {
		return rejected("volume", db)
	}
	gain := stepseq.DBToGain(stepseq.ClampDB(db))
	return s.trackCommand(i, Command{Kind: CmdSetVolume, Track: i, Value: gain}, func(m *trackModel) error {
		m.gain = gain
		return nil
	})
}

// MultiplyVolume scales the gain of track i by factor, within the volume
// limits.
func (s *Sequence) MultiplyVolume(i int, factor float64) error {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return rejected("volume factor", factor)
	}
	return s.trackCommand(i, Command{Kind: CmdMultiplyVolume, Track: i, Value: factor}, func(m *trackModel) error {
		m.gain = stepseq.ClampGain(m.gain * factor)
		return nil
	})
}

func (s *Sequence) VolumeDB(i int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return 0, err
	}
	return stepseq.GainToDB(m.gain), nil
}

// SetPitch transposes track i by the given number of semitones.
func (s *Sequence) SetPitch(i int, semitones float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return err
	}
	if math.IsNaN(semitones) || math.IsInf(semitones, 0) {
		return rejected("pitch", semitones)
	}
	ratio := math.Exp2(-semitones / 12)
	if m.sample != nil {
		ratio = s.ratio(m.sample, semitones)
	}
	_, err = s.send(Command{Kind: CmdSetResamplerRatio, Track: i, Value: ratio, Pitch: semitones})
	if err == nil || errors.Is(err, ErrAckTimeout) {
		m.pitch = semitones
	}
	return err
}

func (s *Sequence) Pitch(i int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return 0, err
	}
	return m.pitch, nil
}

// SetSmoothing lets the sample of track i ring past its beat until just
// before the next trigger.
func (s *Sequence) SetSmoothing(i int, on bool) error {
	return s.trackCommand(i, Command{Kind: CmdSetSmoothing, Track: i, On: on}, func(m *trackModel) error {
		m.smoothing = on
		return nil
	})
}

func (s *Sequence) Smoothing(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return false, err
	}
	return m.smoothing, nil
}

func (s *Sequence) Mute(i int, muted bool) error {
	return s.trackCommand(i, Command{Kind: CmdMuteTrack, Track: i, On: muted}, func(m *trackModel) error {
		m.muted = muted
		return nil
	})
}

func (s *Sequence) Muted(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return false, err
	}
	return m.muted, nil
}

// Solo puts track i in or out of solo. While any track is solo, only solo
// tracks are heard.
func (s *Sequence) Solo(i int, solo bool) error {
	return s.trackCommand(i, Command{Kind: CmdSoloTrack, Track: i, On: solo}, func(m *trackModel) error {
		m.solo = solo
		return nil
	})
}

func (s *Sequence) Soloed(i int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return false, err
	}
	return m.solo, nil
}

func (s *Sequence) SetTrackName(i int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return err
	}
	m.name = name
	return nil
}

func (s *Sequence) TrackName(i int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return "", err
	}
	return m.name, nil
}

// Level returns the peak output level of track i in the last block.
func (s *Sequence) Level(i int) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return 0, err
	}
	return m.audio.Level(), nil
}

// trackCommand validates track i, lets update validate the rest and change the
// mirror, and sends c. The mirror is restored if c could not be sent.
func (s *Sequence) trackCommand(i int, c Command, update func(m *trackModel) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.model(i)
	if err != nil {
		return err
	}
	saved := *m
	saved.pattern, saved.mask = slices.Clone(m.pattern), slices.Clone(m.mask)
	if update != nil {
		if err := update(m); err != nil {
			return err
		}
	}
	if _, err := s.send(c); err != nil {
		if !errors.Is(err, ErrAckTimeout) {
			*m = saved
		}
		return err
	}
	return nil
}
