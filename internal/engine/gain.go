package engine

import (
	"math"
	"sync/atomic"

	"github.com/pcmflow/pcmflow/internal/errors"
)

// MaxGain bounds the amplification a GainProcessor accepts.
const MaxGain = 2.0

// GainProcessor scales samples in place. The gain value is updated
// atomically so a control goroutine can change it while Process runs on
// the streaming path.
type GainProcessor struct {
	gainBits atomic.Uint64 // float64 bits
	enabled  atomic.Bool
}

// NewGainProcessor returns a processor with the given initial gain.
func NewGainProcessor(gain float64) (*GainProcessor, error) {
	p := &GainProcessor{}
	if err := p.SetGain(gain); err != nil {
		return nil, err
	}
	p.enabled.Store(true)
	return p, nil
}

// SetGain updates the gain, rejecting values outside [0, MaxGain].
func (p *GainProcessor) SetGain(gain float64) error {
	if gain < 0 || gain > MaxGain {
		return errors.Newf("gain out of range").
			Component(Component).
			Category(errors.CategoryValidation).
			Context("gain", gain).
			Context("max", MaxGain).
			Build()
	}
	p.gainBits.Store(math.Float64bits(gain))
	return nil
}

// Gain returns the current gain.
func (p *GainProcessor) Gain() float64 {
	return math.Float64frombits(p.gainBits.Load())
}

// SetEnabled toggles whether Process applies the gain.
func (p *GainProcessor) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// Process implements Processor. Samples are clamped to [-1, 1] after
// scaling so upstream clipping cannot overflow the device range.
func (p *GainProcessor) Process(buf []float32, frameCount int) {
	gain := float32(p.Gain())
	if gain == 1.0 {
		return
	}
	for i, s := range buf {
		s *= gain
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf[i] = s
	}
}

// Initialize implements Processor. Gain has no per-stream state.
func (p *GainProcessor) Initialize(cfg Config) error {
	return nil
}

// Reset implements Processor.
func (p *GainProcessor) Reset() {}

// Enabled implements Processor.
func (p *GainProcessor) Enabled() bool {
	return p.enabled.Load()
}
