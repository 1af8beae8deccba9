// Package run implements the streaming subcommand.
package run

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pcmflow/pcmflow/internal/conf"
	"github.com/pcmflow/pcmflow/internal/diagnostics"
	"github.com/pcmflow/pcmflow/internal/engine"
	"github.com/pcmflow/pcmflow/internal/logging"
	"github.com/pcmflow/pcmflow/internal/observability"
	"github.com/pcmflow/pcmflow/internal/platform/malgodev"
)

// toneFrequency is the test tone produced when only output is enabled.
const toneFrequency = 440.0

// receivePollInterval paces the Receive loop when the input buffer runs
// dry.
const receivePollInterval = 2 * time.Millisecond

// runLogger returns the command's service logger, falling back to the
// default logger when file logging is not initialized.
func runLogger() *slog.Logger {
	if logger := logging.ForService("run"); logger != nil {
		return logger
	}
	return slog.Default().With("service", "run")
}

// Command creates the streaming command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the audio stream",
		Long: "Open the configured audio devices and stream until interrupted. " +
			"With both directions enabled the input is looped back to the output; " +
			"output alone plays a test tone, input alone meters the signal level.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Audio.Output.Device, "output-device", viper.GetString("audio.output.device"), "Playback device name or ID (empty for system default)")
	cmd.Flags().StringVar(&settings.Audio.Input.Device, "input-device", viper.GetString("audio.input.device"), "Capture device name or ID (empty for system default)")
	cmd.Flags().IntVar(&settings.Audio.SampleRate, "samplerate", viper.GetInt("audio.samplerate"), "Application sample rate in Hz")
	cmd.Flags().IntVar(&settings.Audio.BufferFrames, "bufferframes", viper.GetInt("audio.bufferframes"), "Hardware period size in frames")
	cmd.Flags().Float64Var(&settings.Audio.Gain, "gain", viper.GetFloat64("audio.gain"), "Output gain, 0.0 to 2.0")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}

func runStream(settings *conf.Settings) error {
	logger := runLogger()

	eng := engine.New(malgodev.NewBackend())
	gain, err := engine.NewGainProcessor(settings.Audio.Gain)
	if err != nil {
		return err
	}

	eng.SetDeviceStateHandler(func(deviceID string, state engine.DeviceState) {
		if state != engine.DeviceStateLost {
			return
		}
		logger.Error("audio device lost", "device_id", deviceID)
		diagnostics.CaptureSystemInfo("audio device lost: " + deviceID)
	})

	cfg := settings.EngineConfig()
	if err := eng.Initialize(cfg); err != nil {
		return fmt.Errorf("error initializing engine: %w", err)
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Start(); err != nil {
		return fmt.Errorf("error starting stream: %w", err)
	}

	info := eng.StreamInfo()
	fmt.Printf("Streaming on: %s (%s), %d Hz device rate, %d frame periods\n",
		info.DeviceName, info.DeviceID, info.DeviceSampleRate, info.BufferFrames)

	quitChan := make(chan struct{})
	var wg sync.WaitGroup

	if settings.Telemetry.Enabled {
		metrics, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("error creating metrics: %w", err)
		}
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return err
		}
		endpoint.Start(&wg, quitChan)
		watcher := observability.NewEngineWatcher(eng, metrics, 0)
		watcher.SetFaultBurstHook(func(reason string) {
			diagnostics.CaptureSystemInfo(reason)
		})
		watcher.Start(&wg, quitChan)
	}

	switch {
	case cfg.EnableOutput && cfg.EnableInput:
		wg.Go(func() { loopback(eng, gain, quitChan) })
	case cfg.EnableOutput:
		wg.Go(func() { playTone(eng, gain, cfg, quitChan) })
	default:
		wg.Go(func() { meterInput(eng, cfg, quitChan) })
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("Shutting down")
	close(quitChan)
	wg.Wait()

	if err := eng.Stop(); err != nil {
		return fmt.Errorf("error stopping stream: %w", err)
	}

	stats := eng.Stats()
	fmt.Printf("Stream stats: %d frames rendered, %d captured, %d underruns, %d overflows\n",
		stats.FramesRendered, stats.FramesCaptured, stats.Underruns, stats.Overruns)
	return nil
}

// loopback moves captured samples back out through the engine, applying
// the output gain on the application thread.
func loopback(eng *engine.Engine, gain *engine.GainProcessor, quitChan <-chan struct{}) {
	logger := runLogger()
	channels := eng.Config().Channels

	for {
		select {
		case <-quitChan:
			return
		default:
		}

		samples, err := eng.Receive()
		if err != nil {
			logger.Error("receive failed", "error", err)
			return
		}
		if len(samples) == 0 {
			time.Sleep(receivePollInterval)
			continue
		}

		if gain.Enabled() {
			gain.Process(samples, len(samples)/channels)
		}
		if err := eng.Send(samples); err != nil {
			logger.Error("send failed", "error", err)
			return
		}
	}
}

// playTone synthesizes a sine test tone at the application rate.
func playTone(eng *engine.Engine, gain *engine.GainProcessor, cfg engine.Config, quitChan <-chan struct{}) {
	logger := runLogger()
	cfg.Normalize()

	block := make([]float32, cfg.BufferFrames*cfg.Channels)
	step := 2 * math.Pi * toneFrequency / float64(cfg.SampleRate)
	var phase float64

	for {
		select {
		case <-quitChan:
			return
		default:
		}

		for frame := 0; frame < cfg.BufferFrames; frame++ {
			sample := float32(0.2 * math.Sin(phase))
			phase += step
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
			for ch := range cfg.Channels {
				block[frame*cfg.Channels+ch] = sample
			}
		}

		if gain.Enabled() {
			gain.Process(block, cfg.BufferFrames)
		}
		if err := eng.Send(block); err != nil {
			logger.Error("send failed", "error", err)
			return
		}
	}
}

// meterInput drains the capture path and reports the signal level once
// per second.
func meterInput(eng *engine.Engine, cfg engine.Config, quitChan <-chan struct{}) {
	logger := runLogger()

	var sumSquares float64
	var count int
	lastReport := time.Now()

	for {
		select {
		case <-quitChan:
			return
		default:
		}

		samples, err := eng.Receive()
		if err != nil {
			logger.Error("receive failed", "error", err)
			return
		}
		if len(samples) == 0 {
			time.Sleep(receivePollInterval)
			continue
		}

		for _, s := range samples {
			sumSquares += float64(s) * float64(s)
		}
		count += len(samples)

		if time.Since(lastReport) >= time.Second && count > 0 {
			rms := math.Sqrt(sumSquares / float64(count))
			db := 20 * math.Log10(math.Max(rms, 1e-9))
			fmt.Printf("Input level: %.1f dBFS\n", db)
			sumSquares, count = 0, 0
			lastReport = time.Now()
		}
	}
}
