//go:build samplerate

package resample

import (
	"fmt"

	"github.com/dh1tw/gosamplerate"
)

const (
	sincChunk    = 256 // input frames per converter call
	sincMaxRatio = 32
)

// Sinc uses libsamplerate's band-limited converter. The converter works on
// whole chunks, so output that does not fit in the caller's buffer is kept
// until the next call.
type Sinc struct {
	src      gosamplerate.Src
	channels int
	pending  []float32
	head     int
	ended    bool
}

func NewSinc(channels int) (Resampler, error) {
	src, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, channels, sincChunk*channels*sincMaxRatio)
	if err != nil {
		return nil, fmt.Errorf("cannot create sinc resampler: %w", err)
	}
	return &Sinc{src: src, channels: channels, pending: make([]float32, 0, sincChunk*channels*sincMaxRatio)}, nil
}

func (s *Sinc) Process(src []float32, channels, pos int, out []float32, step float64) (produced, consumed int, err error) {
	if channels != s.channels {
		return 0, 0, fmt.Errorf("sinc resampler built for %d channels, got %d", s.channels, channels)
	}
	ratio := 1 / step
	if ratio > sincMaxRatio || ratio < 1.0/256 {
		return 0, 0, fmt.Errorf("sinc resampler: step %v out of range", step)
	}
	frames := len(src) / channels
	n := len(out) / channels
	for produced < n {
		if s.head < len(s.pending) {
			k := copy(out[produced*channels:n*channels], s.pending[s.head:])
			s.head += k
			produced += k / channels
			continue
		}
		if s.ended {
			break
		}
		start := pos + consumed
		chunk := min(max(frames-start, 0), sincChunk)
		end := start+chunk >= frames
		data, err := s.src.Process(src[start*channels:(start+chunk)*channels], ratio, end)
		if err != nil {
			return produced, consumed, fmt.Errorf("sinc resampler: %w", err)
		}
		consumed += chunk
		s.pending = append(s.pending[:0], data...)
		s.head = 0
		if end && len(data) == 0 {
			s.ended = true
		}
	}
	return produced, consumed, nil
}

func (s *Sinc) Reset() {
	s.src.Reset()
	s.pending = s.pending[:0]
	s.head = 0
	s.ended = false
}

func (s *Sinc) Close() error {
	return gosamplerate.Delete(s.src)
}
