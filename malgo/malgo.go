//go:build cgo

// Package malgo plays a sequence through miniaudio. It needs cgo.
package malgo

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/vsariola/stepseq"
)

// Backend is a stepseq.AudioBackend on a miniaudio playback device. The
// device's data callback is the audio goroutine.
type Backend struct {
	*stepseq.PortMixer

	mutex  sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buf    []float32
}

func New(framerate, blockSize int) (*Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot init audio context: %w", err)
	}
	b := &Backend{
		PortMixer: stepseq.NewPortMixer(framerate, blockSize, 0),
		ctx:       ctx,
		buf:       make([]float32, 2*blockSize),
	}
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatF32
	config.Playback.Channels = 2
	config.SampleRate = uint32(framerate)
	config.PeriodSizeInFrames = uint32(blockSize)
	device, err := malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{Data: b.data})
	if err != nil {
		b.freeContext()
		return nil, fmt.Errorf("cannot init playback device: %w", err)
	}
	b.device = device
	if err := device.Start(); err != nil {
		device.Uninit()
		b.freeContext()
		return nil, fmt.Errorf("cannot start playback device: %w", err)
	}
	return b, nil
}

func (b *Backend) data(out, _ []byte, frames uint32) {
	n := 2 * int(frames)
	if len(b.buf) < n {
		b.buf = make([]float32, n)
	}
	buf := b.buf[:n]
	b.Render(buf)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
}

func (b *Backend) freeContext() {
	_ = b.ctx.Uninit()
	b.ctx.Free()
}

func (b *Backend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.device == nil {
		return nil
	}
	b.SetProcessor(nil)
	b.device.Uninit()
	b.device = nil
	b.freeContext()
	return nil
}
