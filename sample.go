package stepseq

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// Sample is an immutable, reference counted block of audio. Data holds
// Frames*Channels interleaved float32 values. A Sample is created with one
// reference; every track that plays it holds one more. The data is dropped
// when the last reference is released.
type Sample struct {
	Name      string
	Channels  int
	Frames    int
	Framerate int
	Peak      float32
	Data      []float32

	refs atomic.Int32
}

var ErrInvalidSample = errors.New("invalid sample")

// NewSample wraps interleaved data into a Sample with a single reference. The
// caller must not modify data afterwards.
func NewSample(name string, channels, framerate int, data []float32) (*Sample, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidSample, channels)
	}
	if framerate <= 0 {
		return nil, fmt.Errorf("%w: framerate %d", ErrInvalidSample, framerate)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("%w: %d values is not a multiple of %d channels", ErrInvalidSample, len(data), channels)
	}
	s := &Sample{
		Name:      name,
		Channels:  channels,
		Frames:    len(data) / channels,
		Framerate: framerate,
		Data:      data,
	}
	for _, v := range data {
		if a := float32(math.Abs(float64(v))); a > s.Peak {
			s.Peak = a
		}
	}
	s.refs.Store(1)
	return s, nil
}

// Retain adds a reference and returns the sample for convenience.
func (s *Sample) Retain() *Sample {
	if s != nil {
		s.refs.Add(1)
	}
	return s
}

// Release drops a reference. It returns true if this was the last one, in
// which case the sample data is released.
func (s *Sample) Release() bool {
	if s == nil {
		return false
	}
	n := s.refs.Add(-1)
	if n < 0 {
		panic("stepseq: Sample released more times than retained")
	}
	if n == 0 {
		s.Data = nil
		return true
	}
	return false
}

// Refs returns the current reference count.
func (s *Sample) Refs() int {
	return int(s.refs.Load())
}

// Duration returns the length of the sample in seconds.
func (s *Sample) Duration() float64 {
	return float64(s.Frames) / float64(s.Framerate)
}
