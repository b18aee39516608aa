// Package oto plays a sequence through the default audio device using
// ebitengine/oto.
package oto

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/stepseq"
)

// Backend is a stepseq.AudioBackend on an oto player. Oto pulls audio by
// calling Read from its own goroutine, which thereby becomes the audio
// goroutine.
type Backend struct {
	*stepseq.PortMixer

	mutex  sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	buf    []float32
}

// ErrFramerateMismatch is returned by New when the process already has an oto
// context running at another framerate.
var ErrFramerateMismatch = errors.New("oto context already running at another framerate")

// sharedContext is the oto context of the process. Oto allows only one.
type sharedContext struct {
	once      sync.Once
	ctx       *oto.Context
	framerate int
	err       error
}

var shared sharedContext

func (c *sharedContext) get(framerate, blockSize int, create func(framerate, blockSize int) (*oto.Context, error)) (*oto.Context, error) {
	c.once.Do(func() {
		c.framerate = framerate
		c.ctx, c.err = create(framerate, blockSize)
	})
	if c.err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", c.err)
	}
	if c.framerate != framerate {
		return nil, fmt.Errorf("cannot play at %d Hz: %w (%d Hz)", framerate, ErrFramerateMismatch, c.framerate)
	}
	return c.ctx, nil
}

func newContext(framerate, blockSize int) (*oto.Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   framerate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(blockSize) * time.Second / time.Duration(framerate),
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return ctx, nil
}

// New opens a player on the process-wide oto context, creating the context on
// first use. Later calls must use the same framerate.
func New(framerate, blockSize int) (*Backend, error) {
	ctx, err := shared.get(framerate, blockSize, newContext)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		PortMixer: stepseq.NewPortMixer(framerate, blockSize, 0),
		ctx:       ctx,
		buf:       make([]float32, 2*blockSize),
	}
	b.player = b.ctx.NewPlayer(b)
	b.player.Play()
	return b, nil
}

// Read implements io.Reader for the oto player.
func (b *Backend) Read(p []byte) (int, error) {
	n := len(p) / 8 * 2 // whole stereo frames
	if len(b.buf) < n {
		b.buf = make([]float32, n)
	}
	buf := b.buf[:n]
	b.Render(buf)
	floatsToBytes(p, buf)
	return 4 * n, nil
}

func (b *Backend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.player == nil {
		return nil
	}
	b.SetProcessor(nil)
	err := b.player.Close()
	b.player = nil
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
