package stepseq

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Raw encodes interleaved frames as little-endian float32, or as int16 if
// pcm16 is set.
func Raw(data []float32, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := writeRaw(buf, data, pcm16); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

// FloatWav encodes interleaved frames as a WAV file of IEEE floats.
func FloatWav(data []float32, framerate, channels int) ([]byte, error) {
	if channels <= 0 || len(data)%channels != 0 {
		return nil, fmt.Errorf("FloatWav failed: %d values do not fit %d channels", len(data), channels)
	}
	buf := new(bytes.Buffer)
	floatWavHeader(buf, len(data), framerate, channels)
	if err := writeRaw(buf, data, false); err != nil {
		return nil, fmt.Errorf("FloatWav failed: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRaw(buf *bytes.Buffer, data []float32, pcm16 bool) error {
	if !pcm16 {
		return binary.Write(buf, binary.LittleEndian, data)
	}
	ints := make([]int16, len(data))
	for i, v := range data {
		ints[i] = int16(min(max(int(v*math.MaxInt16), math.MinInt16), math.MaxInt16))
	}
	return binary.Write(buf, binary.LittleEndian, ints)
}

// floatWavHeader writes the header of a float32 WAV file holding samples
// values.
func floatWavHeader(buf *bytes.Buffer, samples, framerate, channels int) {
	// http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	const bytesPerSample = 4
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	binary.Write(buf, le, uint32(50+bytesPerSample*samples))
	buf.WriteString("WAVEfmt ")
	binary.Write(buf, le, uint32(18))
	binary.Write(buf, le, uint16(3)) // IEEE float
	binary.Write(buf, le, uint16(channels))
	binary.Write(buf, le, uint32(framerate))
	binary.Write(buf, le, uint32(framerate*channels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, le, uint16(channels*bytesPerSample))           // blockAlign
	binary.Write(buf, le, uint16(8*bytesPerSample))                  // bits per sample
	binary.Write(buf, le, uint16(0))                                 // size of extension
	buf.WriteString("fact")
	binary.Write(buf, le, uint32(4))
	binary.Write(buf, le, uint32(samples/channels)) // frames
	buf.WriteString("data")
	binary.Write(buf, le, uint32(bytesPerSample*samples))
}
