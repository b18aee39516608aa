package sequencer

import (
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/resample"
)

// Track is the audio side of a sequencer track. The control goroutine builds
// a Track with its pattern, mask and ports and hands it over in a Resize
// command; after that every field except level belongs to the audio
// goroutine.
type Track struct {
	pattern []bool
	mask    []bool // nil: masking disabled; mask[b] true: beat b audible

	sample    *stepseq.Sample
	resampler resample.Resampler
	step      float64 // input frames per output frame
	pitch     float64
	inputPos  int
	outputPos int
	ringing   bool // the sample has data left to play

	gain      float32
	envelope  float32
	smoothing bool

	enabled bool
	solo    bool
	locked  bool
	failed  bool

	activeBeat     int // beat triggered at the current beat, or -1
	activeMaskBeat int // beat of the last trigger, kept while the sound rings
	announced      bool

	ports   [2]stepseq.Port
	scratch []float32 // resampler output, interleaved
	env     []float32 // per-frame envelope gain

	peak  float32
	level atomic.Uint32 // float32 bits of the last block's peak
}

func newTrack(pattern, mask []bool, ports [2]stepseq.Port, blockSize int) *Track {
	return &Track{
		pattern:        pattern,
		mask:           mask,
		ports:          ports,
		gain:           1,
		enabled:        true,
		activeBeat:     -1,
		activeMaskBeat: -1,
		step:           1,
		scratch:        make([]float32, 2*blockSize),
		env:            make([]float32, blockSize),
	}
}

// adopt moves the runtime state of old into t, which has just replaced it.
func (t *Track) adopt(old *Track, beatsNum int) {
	t.sample, t.resampler, t.step, t.pitch = old.sample, old.resampler, old.step, old.pitch
	t.inputPos, t.outputPos, t.ringing = old.inputPos, old.outputPos, old.ringing
	t.gain, t.envelope, t.smoothing = old.gain, old.envelope, old.smoothing
	t.enabled, t.solo, t.locked, t.failed = old.enabled, old.solo, old.locked, old.failed
	t.activeBeat, t.activeMaskBeat, t.announced = old.activeBeat, old.activeMaskBeat, old.announced
	if len(old.scratch) > len(t.scratch) {
		t.scratch = old.scratch
	}
	t.level.Store(old.level.Load())
	if t.activeBeat >= beatsNum {
		t.activeBeat = -1
	}
	if t.activeMaskBeat >= beatsNum {
		t.activeMaskBeat = -1
	}
}

// Level returns the peak amplitude of the track in the last processed block.
// Safe to call from any goroutine.
func (t *Track) Level() float32 {
	return math.Float32frombits(t.level.Load())
}

func (t *Track) playing(soloMode bool) bool {
	if soloMode {
		return t.solo
	}
	return t.enabled
}

func (t *Track) unmasked(beat int) bool {
	return t.mask == nil || beat < 0 || beat >= len(t.mask) || t.mask[beat]
}

// trigger starts a new beat. off is the beat that needs a BeatOff, or -1; on
// reports whether the new beat needs a BeatOn.
func (t *Track) trigger(beat int, playing bool) (off int, on bool) {
	off = t.release()
	if beat < 0 || beat >= len(t.pattern) || !t.pattern[beat] {
		return off, false
	}
	t.activeBeat, t.activeMaskBeat = beat, beat
	t.inputPos, t.outputPos = 0, 0
	if t.resampler != nil {
		t.resampler.Reset()
	}
	t.ringing = t.sample != nil && !t.failed
	if playing && t.unmasked(beat) {
		t.announced = true
		t.envelope = 1
		return off, true
	}
	t.envelope = 0
	return off, false
}

// release ends the current beat without starting a new one. It returns the
// beat that needs a BeatOff, or -1.
func (t *Track) release() (off int) {
	off = -1
	if t.announced {
		off = t.activeBeat
		t.announced = false
	}
	t.activeBeat = -1
	return off
}

// segment describes a run of frames inside a single beat.
type segment struct {
	frame   int  // first frame in the block
	frames  int  // number of frames
	playing bool // the track is audible in this block
	release int  // frames until the envelope starts falling; -1 for never
	attack  int  // declick ramp length in frames
}

// render writes one segment of the track into its port buffers. l and r are
// the port buffers of the whole block; either may be nil. It returns false if
// the resampler failed.
func (t *Track) render(l, r []float32, s segment) (ok bool) {
	if t.failed {
		return true
	}
	if t.sample == nil {
		if t.activeBeat >= 0 && s.playing {
			t.peak = 1
		}
		return true
	}
	ch := t.sample.Channels
	step := 1 / float32(max(s.attack, 1))
	open := s.playing && t.unmasked(t.activeMaskBeat)
	for done := 0; done < s.frames; {
		n := min(s.frames-done, len(t.env), len(t.scratch)/ch)
		if n <= 0 {
			return true
		}
		produced := 0
		if t.ringing {
			var consumed int
			var err error
			produced, consumed, err = t.resampler.Process(t.sample.Data, ch, t.inputPos, t.scratch[:n*ch], t.step)
			if err != nil {
				t.failed, t.ringing = true, false
				return false
			}
			t.inputPos += consumed
			t.outputPos += produced
			if produced < n {
				t.ringing = false
			}
		}
		for i := 0; i < n; i++ {
			var target float32
			if open && (t.smoothing || t.activeBeat >= 0) && (s.release < 0 || done+i < s.release) {
				target = 1
			}
			if t.envelope < target {
				t.envelope = min(t.envelope+step, target)
			} else if t.envelope > target {
				t.envelope = max(t.envelope-step, target)
			}
			t.env[i] = t.envelope
		}
		if produced > 0 {
			t.write(l, s.frame+done, n, produced, 0)
			t.write(r, s.frame+done, n, produced, min(1, ch-1))
		}
		done += n
	}
	return true
}

// write deinterleaves channel c of the scratch buffer into out[at:at+n],
// applying the envelope and the gain, and tracks the peak.
func (t *Track) write(out []float32, at, n, produced, c int) {
	if out == nil || at+n > len(out) {
		return
	}
	dst := out[at : at+n]
	ch := t.sample.Channels
	for i := 0; i < produced; i++ {
		dst[i] = t.scratch[i*ch+c]
	}
	for i := produced; i < n; i++ {
		dst[i] = 0
	}
	vek32.Mul_Inplace(dst, t.env[:n])
	vek32.MulNumber_Inplace(dst, t.gain)
	if p := peak(dst); p > t.peak {
		t.peak = p
	}
}

func peak(x []float32) float32 {
	if len(x) == 0 {
		return 0
	}
	return max(vek32.Max(x), -vek32.Min(x))
}
