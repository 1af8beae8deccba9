// Package resample converts interleaved float32 PCM between sample rates
// using linear interpolation. Quality is sufficient for voice and general
// playback bridging; it is not an audiophile-grade converter.
package resample

import (
	"github.com/pcmflow/pcmflow/internal/errors"
)

// Resampler is a streaming sample-rate converter for interleaved
// multi-channel float32 blocks. The fractional read position persists
// across calls so consecutive blocks stay phase-continuous. A Resampler
// is not safe for concurrent use.
type Resampler struct {
	sourceRate int
	targetRate int
	channels   int

	// step is the source-frame advance per output frame.
	step float64

	// pos is the fractional read position into the current input block,
	// carried over between calls. Always in [0, step).
	pos float64
}

// New creates a resampler converting sourceRate to targetRate for the
// given interleaved channel count.
func New(sourceRate, targetRate, channels int) (*Resampler, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, errors.Newf("invalid resample rates: %d -> %d", sourceRate, targetRate).
			Component("resample").
			Category(errors.CategoryValidation).
			Context("source_rate", sourceRate).
			Context("target_rate", targetRate).
			Build()
	}
	if channels <= 0 {
		return nil, errors.Newf("invalid channel count: %d", channels).
			Component("resample").
			Category(errors.CategoryValidation).
			Context("channels", channels).
			Build()
	}

	return &Resampler{
		sourceRate: sourceRate,
		targetRate: targetRate,
		channels:   channels,
		step:       float64(sourceRate) / float64(targetRate),
	}, nil
}

// SourceRate returns the configured input sample rate.
func (r *Resampler) SourceRate() int { return r.sourceRate }

// TargetRate returns the configured output sample rate.
func (r *Resampler) TargetRate() int { return r.targetRate }

// Channels returns the configured interleaved channel count.
func (r *Resampler) Channels() int { return r.channels }

// CalculateOutputSize returns the number of output samples produced for
// inputSamples interleaved input samples: ceil(frames*target/source) for
// a freshly reset resampler, and an upper bound mid-stream. Callers use
// it to size the output buffer before calling Resample.
func (r *Resampler) CalculateOutputSize(inputSamples int) int {
	if inputSamples <= 0 {
		return 0
	}
	frames := inputSamples / r.channels
	outFrames := (frames*r.targetRate + r.sourceRate - 1) / r.sourceRate
	return outFrames * r.channels
}

// Resample converts in (at the source rate) into out (at the target
// rate) and returns the number of samples written. Both slices must hold
// whole interleaved frames and out must be at least
// CalculateOutputSize(len(in)) long.
func (r *Resampler) Resample(in, out []float32) (int, error) {
	if len(in)%r.channels != 0 || len(out)%r.channels != 0 {
		return 0, errors.Newf("buffer length not a multiple of channel count %d", r.channels).
			Component("resample").
			Category(errors.CategoryValidation).
			Context("input_len", len(in)).
			Context("output_len", len(out)).
			Build()
	}
	if len(in) == 0 {
		return 0, nil
	}
	if need := r.CalculateOutputSize(len(in)); len(out) < need {
		return 0, errors.Newf("output buffer too small: %d < %d", len(out), need).
			Component("resample").
			Category(errors.CategoryBuffer).
			Context("output_len", len(out)).
			Context("required", need).
			Build()
	}

	if r.sourceRate == r.targetRate {
		copy(out, in)
		return len(in), nil
	}

	inFrames := len(in) / r.channels
	written := 0

	for r.pos < float64(inFrames) {
		idx := int(r.pos)
		frac := float32(r.pos - float64(idx))

		base := idx * r.channels
		next := base
		if idx+1 < inFrames {
			next = base + r.channels
		}

		for c := range r.channels {
			s0 := in[base+c]
			s1 := in[next+c]
			out[written] = s0 + (s1-s0)*frac
			written++
		}

		r.pos += r.step
	}

	// Carry the fractional remainder into the next block.
	r.pos -= float64(inFrames)

	return written, nil
}

// Reset zeroes the fractional position accumulator. Call after a seek or
// flush so stale phase does not bleed into unrelated audio.
func (r *Resampler) Reset() {
	r.pos = 0
}
