// Package wavfile reads WAV files into samples and writes rendered audio back
// as 16-bit PCM.
package wavfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/stepseq"
)

var ErrUnsupported = errors.New("unsupported WAV file")

// Load reads the WAV file at path. The sample is named after the file.
func Load(path string) (*stepseq.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load sample: %w", err)
	}
	defer f.Close()
	s, err := Decode(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("cannot load sample %s: %w", path, err)
	}
	return s, nil
}

// Decode reads an integer PCM WAV stream. The samples are scaled to [-1, 1).
func Decode(r io.ReadSeeker, name string) (*stepseq.Sample, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrUnsupported)
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupported, d.WavAudioFormat)
	}
	depth := int(d.BitDepth)
	if depth != 16 && depth != 24 && depth != 32 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, depth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("cannot decode PCM data: %w", err)
	}
	data := buf.AsFloat32Buffer().Data
	vek32.MulNumber_Inplace(data, 1/float32(int64(1)<<(depth-1)))
	return stepseq.NewSample(name, buf.Format.NumChannels, buf.Format.SampleRate, data)
}

// Write encodes interleaved float frames as 16-bit PCM. Values outside
// [-1, 1] are clipped.
func Write(w io.WriteSeeker, framerate, channels int, data []float32) error {
	if channels <= 0 || len(data)%channels != 0 {
		return fmt.Errorf("cannot write WAV: %d values do not fit %d channels", len(data), channels)
	}
	enc := wav.NewEncoder(w, framerate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: framerate},
		Data:           make([]int, len(data)),
		SourceBitDepth: 16,
	}
	for i, v := range data {
		buf.Data[i] = int(max(-1, min(v, 1)) * 32767)
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("cannot write WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("cannot write WAV: %w", err)
	}
	return nil
}

// Save writes data to a new file at path, replacing any existing one.
func Save(path string, framerate, channels int, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot save %s: %w", path, err)
	}
	if err := Write(f, framerate, channels, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
