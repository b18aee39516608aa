package oto

import (
	"encoding/binary"
	"math"
)

// floatsToBytes writes buff as little-endian float32 values into out, which
// must hold 4*len(buff) bytes.
func floatsToBytes(out []byte, buff []float32) {
	for i, v := range buff {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
}
