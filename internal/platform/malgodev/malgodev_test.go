package malgodev

import (
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexToASCII(t *testing.T) {
	t.Parallel()

	decoded, err := hexToASCII("64656661756c74")
	require.NoError(t, err)
	assert.Equal(t, "default", decoded)

	_, err = hexToASCII("not-hex")
	assert.Error(t, err)
}

func TestIsHardwareDevice(t *testing.T) {
	t.Parallel()
	// Hardware endpoints carry the ALSA ":card,device" form on Linux;
	// other platforms treat every endpoint as hardware.
	assert.True(t, isHardwareDevice(":0,0"))
	if runtime.GOOS == "linux" {
		assert.False(t, isHardwareDevice("default"))
	}
}

func TestDirectionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "playback", DirectionPlayback.String())
	assert.Equal(t, "capture", DirectionCapture.String())
}

func TestFloatByteRoundTrip(t *testing.T) {
	t.Parallel()

	src := []float32{0, 1, -1, 0.5, -0.25, float32(math.SmallestNonzeroFloat32)}
	raw := make([]byte, len(src)*4)
	floatsToBytes(src, raw)

	dst := make([]float32, len(src))
	bytesToFloats(raw, dst)
	assert.Equal(t, src, dst)
}

func TestFloatsToBytesLayout(t *testing.T) {
	t.Parallel()

	// 1.0 is 0x3F800000, stored little-endian.
	raw := make([]byte, 4)
	floatsToBytes([]float32{1.0}, raw)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, raw)
}

func TestConversionNoAllocation(t *testing.T) {
	src := make([]float32, 1024)
	raw := make([]byte, len(src)*4)
	dst := make([]float32, len(src))

	allocs := testing.AllocsPerRun(100, func() {
		floatsToBytes(src, raw)
		bytesToFloats(raw, dst)
	})
	assert.Zero(t, allocs)
}
