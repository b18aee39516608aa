//go:build !samplerate

package resample

// NewSinc needs libsamplerate; build with -tags=samplerate to enable it.
func NewSinc(channels int) (Resampler, error) {
	return nil, ErrUnavailable
}
