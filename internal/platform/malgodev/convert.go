package malgodev

import (
	"encoding/binary"
	"math"
)

// Sample conversion between miniaudio's raw little-endian byte buffers
// and float32 slices. Both directions run on the audio thread and must
// not allocate.

func floatsToBytes(src []float32, dst []byte) {
	for i, s := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

func bytesToFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
