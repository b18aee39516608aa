package sequencer

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/vsariola/stepseq"
)

type (
	// Player is the audio side of a sequence, run by the audio backend's
	// callback. It is controlled by Commands from the Sequence and reports
	// back with Notifications, both through the Broker. Apart from the ring
	// buffers and a few atomics, everything in Player belongs to whichever
	// goroutine holds the owner token: normally the audio callback, or the
	// control goroutine while no callback is running.
	Player struct {
		broker  *Broker
		backend stepseq.AudioBackend

		tracks     []*Track
		beatsNum   int
		measureLen int
		bpm        float64
		looping    bool
		enabled    bool

		transportAware bool
		transportQuery bool
		started        bool   // internal transport
		position       uint64 // internal transport, frames
		ended          bool

		framerate    int
		attackFrames int

		beat        atomic.Int32 // last triggered beat, for the UI
		owner       atomic.Int32
		lastProcess atomic.Int64 // unix nanoseconds of the last callback
	}
)

const maxBpm = 1000

func newPlayer(broker *Broker, backend stepseq.AudioBackend, attackFrames int) *Player {
	p := &Player{
		broker:       broker,
		backend:      backend,
		bpm:          120,
		measureLen:   4,
		framerate:    backend.Framerate(),
		attackFrames: max(attackFrames, 1),
		looping:      true,
	}
	p.beat.Store(-1)
	return p
}

// Process renders one block. It is the stepseq.Processor of the backend and
// must only be called from the audio goroutine.
func (p *Player) Process(nframes int) int {
	if !p.owner.CompareAndSwap(0, 1) {
		// the control goroutine is servicing the channel; skip this block
		return nframes
	}
	defer p.owner.Store(0)
	p.lastProcess.Store(time.Now().UnixNano())
	p.processMessages()
	pos, started := p.transport()
	if !p.enabled || !started || p.beatsNum == 0 {
		for _, t := range p.tracks {
			if !t.locked {
				t.level.Store(0)
			}
		}
		return nframes
	}
	p.render(pos, nframes)
	if !p.transportQuery && p.started {
		p.position += uint64(nframes)
	}
	return nframes
}

// service applies pending commands without rendering. Called by the control
// goroutine when no audio callback is running; returns false if the audio
// goroutine holds the token.
func (p *Player) service() bool {
	if !p.owner.CompareAndSwap(0, 1) {
		return false
	}
	defer p.owner.Store(0)
	p.processMessages()
	return true
}

// idleSince returns how long ago the audio callback last ran.
func (p *Player) idleSince(now time.Time) time.Duration {
	last := p.lastProcess.Load()
	if last == 0 {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(time.Unix(0, last))
}

func (p *Player) transport() (pos uint64, started bool) {
	if p.transportQuery {
		return p.backend.Position(), p.backend.IsStarted()
	}
	return p.position, p.started
}

func (p *Player) beatFrames() int {
	return max(int(60*float64(p.framerate)/p.bpm/float64(p.measureLen)), 1)
}

func (p *Player) soloMode() bool {
	for _, t := range p.tracks {
		if !t.locked && t.solo {
			return true
		}
	}
	return false
}

// render splits the block at every beat boundary and renders the pieces.
func (p *Player) render(pos uint64, nframes int) {
	beatFrames := p.beatFrames()
	soloMode := p.soloMode()
	bufs := [2][]float32{}
	for _, t := range p.tracks {
		t.peak = 0
	}
	for frame := 0; frame < nframes; {
		abs := pos + uint64(frame)
		absBeat := int(abs / uint64(beatFrames))
		offset := int(abs % uint64(beatFrames))
		if offset == 0 && !p.trigger(absBeat, soloMode) {
			break
		}
		n := min(nframes-frame, beatFrames-offset)
		for i, t := range p.tracks {
			if t.locked {
				continue
			}
			for c := range bufs {
				bufs[c] = p.backend.OutputBuffer(t.ports[c], nframes)
			}
			s := segment{frame: frame, frames: n, playing: t.playing(soloMode), release: -1, attack: p.attackFrames}
			if k := p.fadeOut(t, absBeat); k >= 0 {
				// inside the last attackFrames the ramp is already running
				s.release = max(k*beatFrames-offset-p.attackFrames, 0)
			}
			if !t.render(bufs[0], bufs[1], s) {
				p.notify(Notification{Kind: TrackFailed, Track: i, Beat: -1})
			}
		}
		frame += n
	}
	for _, t := range p.tracks {
		if !t.locked {
			t.level.Store(math.Float32bits(t.peak))
		}
	}
}

// trigger starts the beat absBeat, counted from the start of the song. It
// returns false if the transport stopped at the end of a non-looping song.
func (p *Player) trigger(absBeat int, soloMode bool) bool {
	beat := absBeat
	if p.looping {
		beat %= p.beatsNum
	} else if absBeat >= p.beatsNum {
		if !p.ended {
			p.ended = true
			p.releaseAll()
			p.notify(Notification{Kind: Ended, Track: -1, Beat: p.beatsNum})
		}
		if !p.transportQuery {
			p.started, p.position, p.ended = false, 0, false
			p.notify(Notification{Kind: TransportChanged, Track: -1, Beat: -1, Flag: false})
			return false
		}
		return true
	}
	p.ended = false
	p.beat.Store(int32(beat))
	for i, t := range p.tracks {
		if t.locked {
			continue
		}
		off, on := t.trigger(beat, t.playing(soloMode))
		if off >= 0 {
			p.notify(Notification{Kind: BeatOff, Track: i, Beat: off})
		}
		if on {
			p.notify(Notification{Kind: BeatOn, Track: i, Beat: beat})
		}
	}
	return true
}

// nextTrigger returns the number of beats from absBeat to the next beat that
// will retrigger t, or -1 if there is none.
func (p *Player) nextTrigger(t *Track, absBeat int) int {
	for k := 1; k <= p.beatsNum; k++ {
		b := absBeat + k
		if p.looping {
			b %= p.beatsNum
		} else if b >= p.beatsNum {
			return -1
		}
		if b < len(t.pattern) && t.pattern[b] {
			return k
		}
	}
	return -1
}

// fadeOut returns the number of beats from absBeat to the next beat boundary
// at which the sound of t has to be silent, or -1 if it may keep ringing. That
// is the next retrigger with smoothing, the next beat when it triggers a
// masked sound without smoothing, and the end of a song that does not loop.
func (p *Player) fadeOut(t *Track, absBeat int) int {
	if !t.ringing {
		return -1
	}
	end := -1
	if !p.looping && !p.transportQuery && absBeat < p.beatsNum {
		end = p.beatsNum - absBeat
	}
	if t.smoothing {
		if k := p.nextTrigger(t, absBeat); k >= 0 {
			return k
		}
		return end
	}
	if t.activeBeat < 0 {
		return -1
	}
	next := absBeat + 1
	if p.looping {
		next %= p.beatsNum
	} else if next >= p.beatsNum {
		return end
	}
	if next < len(t.pattern) && t.pattern[next] && !t.unmasked(next) {
		return 1
	}
	return -1
}

func (p *Player) releaseAll() {
	for i, t := range p.tracks {
		if t.locked {
			continue
		}
		if off := t.release(); off >= 0 {
			p.notify(Notification{Kind: BeatOff, Track: i, Beat: off})
		}
	}
	p.beat.Store(-1)
}

// notify never blocks: the audio goroutine must not wait for the control
// goroutine.
func (p *Player) notify(n Notification) {
	p.broker.Notify(n)
}

func (p *Player) processMessages() {
	var c Command
	for p.broker.ToPlayer.TryReceive(&c) {
		p.apply(&c)
		c = Command{}
	}
	p.broker.ToPlayer.Ack()
}

func (p *Player) track(i int) *Track {
	if i < 0 || i >= len(p.tracks) {
		return nil
	}
	return p.tracks[i]
}

func (p *Player) apply(c *Command) {
	switch c.Kind {
	case CmdSetBpm:
		if c.Value <= 0 || c.Value > maxBpm || c.Value == p.bpm {
			return
		}
		p.bpm = c.Value
		p.notify(Notification{Kind: BpmChanged, Track: -1, Beat: -1, Value: c.Value})
	case CmdSetTransport:
		if p.transportAware == c.On && p.transportQuery == c.On2 {
			return
		}
		p.transportAware, p.transportQuery = c.On, c.On2
		_, started := p.transport()
		p.notify(Notification{Kind: TransportChanged, Track: -1, Beat: -1, Flag: started})
	case CmdSetLooping:
		if p.looping != c.On {
			p.looping = c.On
			p.notify(Notification{Kind: LoopingChanged, Track: -1, Beat: -1, Flag: c.On})
		}
	case CmdStart:
		if !p.started {
			p.started = true
			p.notify(Notification{Kind: TransportChanged, Track: -1, Beat: -1, Flag: true})
		}
	case CmdStop:
		if p.started {
			p.started = false
			p.releaseAll()
			p.notify(Notification{Kind: TransportChanged, Track: -1, Beat: -1, Flag: false})
		}
	case CmdRewind:
		p.position, p.ended = 0, false
		p.releaseAll()
	case CmdSetResamplerRatio:
		if t := p.track(c.Track); t != nil && c.Value > 0 {
			t.step = 1 / c.Value
			if t.pitch != c.Pitch {
				t.pitch = c.Pitch
				p.notify(Notification{Kind: TrackPitchChanged, Track: c.Track, Beat: -1, Value: c.Pitch})
			}
		}
	case CmdSetVolume, CmdMultiplyVolume:
		t := p.track(c.Track)
		if t == nil {
			return
		}
		g := float64(c.Value)
		if c.Kind == CmdMultiplyVolume {
			g = float64(t.gain) * c.Value
		}
		g = stepseq.ClampGain(g)
		if float32(g) != t.gain {
			t.gain = float32(g)
			p.notify(Notification{Kind: TrackVolumeChanged, Track: c.Track, Beat: -1, Value: stepseq.GainToDB(g)})
		}
	case CmdSetSmoothing:
		if t := p.track(c.Track); t != nil {
			t.smoothing = c.On
		}
	case CmdMuteTrack:
		if t := p.track(c.Track); t != nil && t.enabled == c.On {
			t.enabled = !c.On
			p.notify(Notification{Kind: TrackMuteChanged, Track: c.Track, Beat: -1, Flag: c.On})
		}
	case CmdSoloTrack:
		if t := p.track(c.Track); t != nil && t.solo != c.On {
			t.solo = c.On
			p.notify(Notification{Kind: TrackSoloChanged, Track: c.Track, Beat: -1, Flag: c.On})
		}
	case CmdSwapTracks:
		a, b := p.track(c.Track), p.track(c.Arg)
		if a == nil || b == nil || c.Track == c.Arg {
			return
		}
		p.tracks[c.Track], p.tracks[c.Arg] = b, a
		p.notify(Notification{Kind: Reordered, Track: c.Track, Beat: c.Arg})
	case CmdLockTracks, CmdUnlockTracks:
		for _, i := range c.Tracks {
			if t := p.track(i); t != nil {
				t.locked = c.Kind == CmdLockTracks
			}
		}
	case CmdLockTrack, CmdUnlockTrack:
		if t := p.track(c.Track); t != nil {
			t.locked = c.Kind == CmdLockTrack
		}
	case CmdResize:
		r := c.Resize
		for i, t := range r.Tracks {
			if o := r.Origins[i]; o >= 0 && o < len(p.tracks) {
				t.adopt(p.tracks[o], r.BeatsNum)
			}
		}
		p.tracks, p.beatsNum, p.measureLen = r.Tracks, r.BeatsNum, r.MeasureLen
		if b := int(p.beat.Load()); b >= p.beatsNum {
			p.beat.Store(-1)
		}
	case CmdSetSample:
		t := p.track(c.Track)
		if t == nil {
			return
		}
		s := c.Sample
		t.sample, t.resampler, t.step = s.Sample, s.Resampler, s.Step
		if s.Scratch != nil {
			t.scratch = s.Scratch
		}
		t.inputPos, t.outputPos, t.ringing, t.failed = 0, 0, false, false
	case CmdEnableMask:
		if t := p.track(c.Track); t != nil {
			t.mask = c.Mask
		}
	case CmdDisableMask:
		if t := p.track(c.Track); t != nil {
			t.mask = nil
		}
	case CmdSetBeat:
		if t := p.track(c.Track); t != nil && c.Arg >= 0 && c.Arg < len(t.pattern) && t.pattern[c.Arg] != c.On {
			t.pattern[c.Arg] = c.On
			p.notify(Notification{Kind: BeatChanged, Track: c.Track, Beat: c.Arg, Flag: c.On})
		}
	case CmdSetMaskBeat:
		if t := p.track(c.Track); t != nil && c.Arg >= 0 && c.Arg < len(t.mask) && t.mask[c.Arg] != c.On {
			t.mask[c.Arg] = c.On
			p.notify(Notification{Kind: BeatChanged, Track: c.Track, Beat: c.Arg, Flag: c.On, Value: 1})
		}
	case CmdAckEnable:
		p.enabled = true
	case CmdAckDisable:
		if p.enabled {
			p.enabled = false
			p.releaseAll()
		}
	}
}
