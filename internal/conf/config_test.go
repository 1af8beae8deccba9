package conf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcmflow/pcmflow/internal/engine"
)

func validSettings() *Settings {
	return &Settings{
		Main: MainConfig{Name: "pcmflow"},
		Audio: AudioConfig{
			SampleRate:   48000,
			Channels:     2,
			BufferFrames: 512,
			Gain:         1.0,
			Output:       DirectionConfig{Enabled: true},
		},
		Telemetry: TelemetryConfig{Listen: "0.0.0.0:8090"},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateSettings(validSettings()))

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{name: "zero_sample_rate", mutate: func(s *Settings) { s.Audio.SampleRate = 0 }},
		{name: "too_many_channels", mutate: func(s *Settings) { s.Audio.Channels = engine.MaxChannels + 1 }},
		{name: "negative_device_rate", mutate: func(s *Settings) { s.Audio.DeviceSampleRate = -1 }},
		{name: "no_direction", mutate: func(s *Settings) {
			s.Audio.Output.Enabled = false
			s.Audio.Input.Enabled = false
		}},
		{name: "excessive_gain", mutate: func(s *Settings) { s.Audio.Gain = engine.MaxGain + 1 }},
		{name: "bad_telemetry_listen", mutate: func(s *Settings) {
			s.Telemetry.Enabled = true
			s.Telemetry.Listen = "no-port"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			assert.Error(t, ValidateSettings(s))
		})
	}
}

func TestEngineConfigMapping(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Audio.Input = DirectionConfig{Enabled: true, Device: "hw:1,0"}
	s.Audio.Output.Device = "Speakers"
	s.Audio.DeviceSampleRate = 44100
	s.Audio.RingPeriods = 4

	cfg := s.EngineConfig()
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 2, cfg.Channels)
	assert.Equal(t, 512, cfg.BufferFrames)
	assert.True(t, cfg.EnableOutput)
	assert.True(t, cfg.EnableInput)
	assert.Equal(t, "Speakers", cfg.OutputDevice)
	assert.Equal(t, "hw:1,0", cfg.InputDevice)
	assert.Equal(t, 44100, cfg.DeviceSampleRate)
	assert.Equal(t, 4, cfg.RingPeriods)
	require.NoError(t, cfg.Validate())
}

func TestEmbeddedDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	raw := getDefaultConfig()
	require.NotEmpty(t, raw)
	assert.Contains(t, raw, "samplerate")
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	s := validSettings()
	s.Audio.SampleRate = 44100
	require.NoError(t, SaveYAMLConfig(path, s))

	assert.FileExists(t, path)
}
