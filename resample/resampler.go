// Package resample converts sample data between frame rates and pitches
// while it is being streamed, one output block at a time.
package resample

import (
	"errors"
	"fmt"
)

type (
	// Resampler streams interleaved frames from src, starting at frame pos,
	// into out. step is the number of input frames advanced per output frame:
	// 1 plays the data unchanged, 2 an octave up. It returns the number of
	// output frames produced and input frames consumed; produced is less than
	// len(out)/channels only when the input ran out.
	//
	// A Resampler carries state between calls, so it must be Reset when the
	// input position jumps.
	Resampler interface {
		Process(src []float32, channels, pos int, out []float32, step float64) (produced, consumed int, err error)
		Reset()
		Close() error
	}

	Type int
)

const (
	LinearType Type = iota
	SincType
	NumTypes
)

var typeNames = [...]string{"linear", "sinc"}

var (
	ErrUnavailable = errors.New("resampler not available in this build")
	ErrInvalidType = errors.New("invalid resampler type")
)

func (t Type) String() string {
	if t < 0 || t >= NumTypes {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for i, n := range typeNames {
		if n == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidType)
}

func (t Type) MarshalText() ([]byte, error) {
	if t < 0 || t >= NumTypes {
		return nil, ErrInvalidType
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// New creates a resampler of the given type for data with the given number
// of channels.
func New(t Type, channels int) (Resampler, error) {
	if channels < 1 {
		return nil, fmt.Errorf("cannot create resampler for %d channels", channels)
	}
	switch t {
	case LinearType:
		return &Linear{}, nil
	case SincType:
		return NewSinc(channels)
	}
	return nil, fmt.Errorf("New(%v): %w", t, ErrInvalidType)
}
