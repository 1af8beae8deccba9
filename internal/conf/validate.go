package conf

import (
	"net"

	"github.com/pcmflow/pcmflow/internal/engine"
	"github.com/pcmflow/pcmflow/internal/errors"
)

// ValidateSettings checks a loaded Settings for mistakes the engine
// would otherwise reject much later, at stream open time.
func ValidateSettings(settings *Settings) error {
	if err := validateAudio(&settings.Audio); err != nil {
		return err
	}
	if settings.Telemetry.Enabled {
		if _, _, err := net.SplitHostPort(settings.Telemetry.Listen); err != nil {
			return errors.New(err).
				Category(errors.CategoryValidation).
				Context("field", "telemetry.listen").
				Context("value", settings.Telemetry.Listen).
				Build()
		}
	}
	return nil
}

func validateAudio(audio *AudioConfig) error {
	if audio.SampleRate <= 0 {
		return errors.Newf("audio sample rate must be positive").
			Category(errors.CategoryValidation).
			Context("field", "audio.samplerate").
			Context("value", audio.SampleRate).
			Build()
	}
	if audio.Channels < 1 || audio.Channels > engine.MaxChannels {
		return errors.Newf("audio channel count out of range").
			Category(errors.CategoryValidation).
			Context("field", "audio.channels").
			Context("value", audio.Channels).
			Context("max", engine.MaxChannels).
			Build()
	}
	if audio.DeviceSampleRate < 0 {
		return errors.Newf("device sample rate cannot be negative").
			Category(errors.CategoryValidation).
			Context("field", "audio.devicesamplerate").
			Context("value", audio.DeviceSampleRate).
			Build()
	}
	if !audio.Output.Enabled && !audio.Input.Enabled {
		return errors.Newf("at least one of audio.output and audio.input must be enabled").
			Category(errors.CategoryValidation).
			Context("field", "audio.output.enabled/audio.input.enabled").
			Build()
	}
	if audio.Gain < 0 || audio.Gain > engine.MaxGain {
		return errors.Newf("audio gain out of range").
			Category(errors.CategoryValidation).
			Context("field", "audio.gain").
			Context("value", audio.Gain).
			Context("max", engine.MaxGain).
			Build()
	}
	return nil
}
