package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		sourceRate int
		targetRate int
		channels   int
		wantErr    bool
	}{
		{name: "valid_downsample", sourceRate: 48000, targetRate: 44100, channels: 2},
		{name: "valid_upsample", sourceRate: 44100, targetRate: 48000, channels: 1},
		{name: "same_rate", sourceRate: 48000, targetRate: 48000, channels: 8},
		{name: "zero_source_rate", sourceRate: 0, targetRate: 48000, channels: 1, wantErr: true},
		{name: "negative_target_rate", sourceRate: 48000, targetRate: -1, channels: 1, wantErr: true},
		{name: "zero_channels", sourceRate: 48000, targetRate: 44100, channels: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.sourceRate, tt.targetRate, tt.channels)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channels, r.Channels())
		})
	}
}

func TestCalculateOutputSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		sourceRate int
		targetRate int
		channels   int
		input      int
		want       int
	}{
		{name: "down_48k_to_44k1_mono", sourceRate: 48000, targetRate: 44100, channels: 1, input: 4800, want: 4410},
		{name: "up_44k1_to_48k_mono", sourceRate: 44100, targetRate: 48000, channels: 1, input: 4410, want: 4800},
		{name: "stereo_rounds_to_whole_frames", sourceRate: 48000, targetRate: 44100, channels: 2, input: 1024, want: 942},
		{name: "same_rate", sourceRate: 48000, targetRate: 48000, channels: 2, input: 512, want: 512},
		{name: "empty_input", sourceRate: 48000, targetRate: 44100, channels: 2, input: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.sourceRate, tt.targetRate, tt.channels)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.CalculateOutputSize(tt.input))
		})
	}
}

// TestOutputSizeMatchesProduction verifies the sizing formula agrees with
// the samples actually produced by a fresh resampler, exactly.
func TestOutputSizeMatchesProduction(t *testing.T) {
	t.Parallel()
	pairs := []struct {
		sourceRate, targetRate, channels, frames int
	}{
		{48000, 44100, 1, 4800},
		{48000, 44100, 2, 512},
		{44100, 48000, 2, 441},
		{48000, 16000, 1, 480},
		{16000, 48000, 4, 160},
	}

	for _, p := range pairs {
		r, err := New(p.sourceRate, p.targetRate, p.channels)
		require.NoError(t, err)

		in := make([]float32, p.frames*p.channels)
		want := r.CalculateOutputSize(len(in))
		out := make([]float32, want)

		n, err := r.Resample(in, out)
		require.NoError(t, err)
		assert.Equal(t, want, n, "rates %d->%d channels %d", p.sourceRate, p.targetRate, p.channels)
	}
}

// dominantFrequency estimates the frequency of a clean sine via zero
// crossing counting.
func dominantFrequency(samples []float32, sampleRate int) float64 {
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			crossings++
		}
	}
	duration := float64(len(samples)) / float64(sampleRate)
	return float64(crossings) / 2 / duration
}

func sineBlock(freq float64, sampleRate, frames int) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

// TestSineRoundTrip resamples a 440 Hz sine from 48 kHz to 44.1 kHz and
// back; the dominant frequency must survive within 1%.
func TestSineRoundTrip(t *testing.T) {
	t.Parallel()
	const (
		freq   = 440.0
		frames = 48000 // one second
	)

	in := sineBlock(freq, 48000, frames)

	down, err := New(48000, 44100, 1)
	require.NoError(t, err)
	mid := make([]float32, down.CalculateOutputSize(len(in)))
	n, err := down.Resample(in, mid)
	require.NoError(t, err)
	mid = mid[:n]

	up, err := New(44100, 48000, 1)
	require.NoError(t, err)
	out := make([]float32, up.CalculateOutputSize(len(mid)))
	n, err = up.Resample(mid, out)
	require.NoError(t, err)
	out = out[:n]

	got := dominantFrequency(out, 48000)
	assert.InDelta(t, freq, got, freq*0.01)
}

// TestStreamContinuity feeds a sine block-by-block and verifies no
// audible discontinuity appears at block boundaries.
func TestStreamContinuity(t *testing.T) {
	t.Parallel()
	const blockFrames = 480

	r, err := New(48000, 44100, 1)
	require.NoError(t, err)

	signal := sineBlock(1000, 48000, blockFrames*20)
	var out []float32
	scratch := make([]float32, r.CalculateOutputSize(blockFrames))

	for off := 0; off < len(signal); off += blockFrames {
		n, err := r.Resample(signal[off:off+blockFrames], scratch)
		require.NoError(t, err)
		out = append(out, scratch[:n]...)
	}

	// A 1 kHz sine at 44.1 kHz moves at most ~0.15 per sample; a glitch
	// at a block seam would show up as a much larger jump.
	for i := 1; i < len(out); i++ {
		assert.Less(t, math.Abs(float64(out[i]-out[i-1])), 0.2,
			"discontinuity at sample %d", i)
	}

	got := dominantFrequency(out, 44100)
	assert.InDelta(t, 1000.0, got, 1000.0*0.01)
}

func TestSameRatePassthrough(t *testing.T) {
	t.Parallel()
	r, err := New(48000, 48000, 2)
	require.NoError(t, err)

	in := []float32{1, 2, 3, 4, 5, 6}
	out := make([]float32, len(in))
	n, err := r.Resample(in, out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, in, out)
}

func TestResampleValidation(t *testing.T) {
	t.Parallel()
	r, err := New(48000, 44100, 2)
	require.NoError(t, err)

	// Input not a whole number of frames.
	_, err = r.Resample(make([]float32, 3), make([]float32, 16))
	assert.Error(t, err)

	// Output too small.
	_, err = r.Resample(make([]float32, 512), make([]float32, 16))
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	t.Parallel()
	r, err := New(48000, 44100, 1)
	require.NoError(t, err)

	in := make([]float32, 480)
	out := make([]float32, r.CalculateOutputSize(len(in)))

	n1, err := r.Resample(in, out)
	require.NoError(t, err)

	// After a reset the first block behaves exactly like a fresh
	// resampler again.
	r.Reset()
	n2, err := r.Resample(in, out)
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
	assert.Equal(t, r.CalculateOutputSize(len(in)), n2)
}
