// Package offline is an audio backend without a device. Audio is rendered
// only when Render is called, faster than real time, which is what exporting
// a song and testing need.
package offline

import (
	"github.com/vsariola/stepseq"
)

type Backend struct {
	*stepseq.PortMixer
}

const DefaultBlockSize = 512

func New(framerate, blockSize int) *Backend {
	return NewLimited(framerate, blockSize, 0)
}

// NewLimited is New with at most maxPorts output ports.
func NewLimited(framerate, blockSize, maxPorts int) *Backend {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Backend{PortMixer: stepseq.NewPortMixer(framerate, blockSize, maxPorts)}
}

// Render renders the given number of frames and returns them as interleaved
// stereo.
func (b *Backend) Render(frames int) []float32 {
	out := make([]float32, 2*frames)
	b.PortMixer.Render(out)
	return out
}

// RenderInto fills out with interleaved stereo frames.
func (b *Backend) RenderInto(out []float32) {
	b.PortMixer.Render(out)
}

func (b *Backend) Close() error {
	b.SetProcessor(nil)
	return nil
}
