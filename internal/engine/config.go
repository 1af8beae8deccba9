package engine

import (
	"github.com/pcmflow/pcmflow/internal/errors"
)

// Hardware period bounds. Requested buffer sizes are clamped into this
// range rather than rejected.
const (
	MinBufferFrames = 32
	MaxBufferFrames = 8192
)

// MaxChannels is the highest interleaved channel count the engine
// accepts.
const MaxChannels = 8

// DefaultRingPeriods is the ring buffer capacity expressed in hardware
// periods when the config does not override it.
const DefaultRingPeriods = 8

// Config describes one engine instance. It is bound at Initialize and
// immutable while the engine is active; changing devices or rates
// requires Stop, reconfigure, Initialize.
type Config struct {
	// SampleRate is the application-side rate in Hz.
	SampleRate int

	// Channels is the interleaved channel count, 1..MaxChannels.
	Channels int

	// BufferFrames is the hardware period size in frames. Clamped to
	// [MinBufferFrames, MaxBufferFrames].
	BufferFrames int

	// EnableOutput and EnableInput select the active directions. At
	// least one must be set.
	EnableOutput bool
	EnableInput  bool

	// OutputDevice and InputDevice are opaque platform device
	// identifiers; empty selects the system default.
	OutputDevice string
	InputDevice  string

	// DeviceSampleRate is the rate requested from the hardware. When it
	// differs from SampleRate the engine bridges the two with a
	// resampler per direction. Zero means same as SampleRate.
	DeviceSampleRate int

	// RingPeriods sizes each ring buffer in hardware periods. Zero
	// means DefaultRingPeriods.
	RingPeriods int
}

// Normalize applies defaults and clamps bounded fields. Called by
// Initialize after Validate.
func (c *Config) Normalize() {
	if c.BufferFrames < MinBufferFrames {
		c.BufferFrames = MinBufferFrames
	}
	if c.BufferFrames > MaxBufferFrames {
		c.BufferFrames = MaxBufferFrames
	}
	if c.DeviceSampleRate == 0 {
		c.DeviceSampleRate = c.SampleRate
	}
	if c.RingPeriods <= 0 {
		c.RingPeriods = DefaultRingPeriods
	}
}

// Validate checks the config without touching any native resource.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New(ErrInvalidConfiguration).
			Component(Component).
			Category(errors.CategoryValidation).
			Context("field", "sample_rate").
			Context("value", c.SampleRate).
			Build()
	}
	if c.Channels < 1 || c.Channels > MaxChannels {
		return errors.New(ErrInvalidConfiguration).
			Component(Component).
			Category(errors.CategoryValidation).
			Context("field", "channels").
			Context("value", c.Channels).
			Context("max", MaxChannels).
			Build()
	}
	if c.DeviceSampleRate < 0 {
		return errors.New(ErrInvalidConfiguration).
			Component(Component).
			Category(errors.CategoryValidation).
			Context("field", "device_sample_rate").
			Context("value", c.DeviceSampleRate).
			Build()
	}
	if !c.EnableOutput && !c.EnableInput {
		return errors.New(ErrInvalidConfiguration).
			Component(Component).
			Category(errors.CategoryValidation).
			Context("field", "enable_output/enable_input").
			Context("error", "at least one direction must be enabled").
			Build()
	}
	return nil
}

// ringCapacity returns the per-direction ring buffer size in samples.
func (c *Config) ringCapacity() int {
	return c.BufferFrames * c.Channels * c.RingPeriods
}

// periodSamples returns the hardware period size in samples.
func (c *Config) periodSamples() int {
	return c.BufferFrames * c.Channels
}
