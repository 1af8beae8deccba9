// Package malgodev adapts the miniaudio library to the engine's backend
// contract: it opens native playback, capture or duplex devices in
// 32-bit float format and forwards their callbacks.
package malgodev

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/pcmflow/pcmflow/internal/engine"
	"github.com/pcmflow/pcmflow/internal/errors"
	"github.com/pcmflow/pcmflow/internal/logging"
)

// Component name used in telemetry and error reports.
const Component = "malgodev"

// restartDelay spaces out restart attempts after an unrequested device
// stop, avoiding a tight restart loop on a flapping device.
const restartDelay = 100 * time.Millisecond

// Backend drives one native audio device through malgo. It implements
// engine.Backend; create one per engine with NewBackend.
type Backend struct {
	logger *slog.Logger

	mu       sync.Mutex
	device   *malgo.Device
	handler  engine.StreamHandler
	cfg      engine.Config
	ctxHeld  bool
	stopping bool

	// Callback staging buffers for the byte/float32 boundary. Sized at
	// Open; the callback grows them only if the OS delivers a larger
	// period than negotiated.
	renderStage  []float32
	captureStage []float32
}

// NewBackend returns an unopened backend.
func NewBackend() *Backend {
	b := &Backend{logger: logging.ForService(Component)}
	if b.logger == nil {
		b.logger = slog.Default().With("service", Component)
	}
	return b
}

// Open resolves the configured devices, initializes the native device in
// float32 format and registers the stream handler. The granted sample
// rate is reported back and may differ from the requested one.
func (b *Backend) Open(cfg engine.Config, handler engine.StreamHandler) (engine.StreamInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		return engine.StreamInfo{}, errors.Newf("backend already open").
			Component(Component).
			Category(errors.CategoryState).
			Build()
	}

	mctx, err := acquireContext()
	if err != nil {
		return engine.StreamInfo{}, err
	}
	b.ctxHeld = true

	var deviceType malgo.DeviceType
	switch {
	case cfg.EnableOutput && cfg.EnableInput:
		deviceType = malgo.Duplex
	case cfg.EnableOutput:
		deviceType = malgo.Playback
	default:
		deviceType = malgo.Capture
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.SampleRate = uint32(cfg.DeviceSampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BufferFrames)
	deviceConfig.Alsa.NoMMap = 1

	info := engine.StreamInfo{BufferFrames: cfg.BufferFrames}

	if cfg.EnableOutput {
		selected, err := b.resolveDevice(mctx, DirectionPlayback, cfg.OutputDevice)
		if err != nil {
			b.releaseLocked()
			return engine.StreamInfo{}, err
		}
		deviceConfig.Playback.Format = malgo.FormatF32
		deviceConfig.Playback.Channels = uint32(cfg.Channels)
		deviceConfig.Playback.DeviceID = selected.ID.Pointer()
		info.DeviceName = selected.Name()
		if decoded, derr := hexToASCII(selected.ID.String()); derr == nil {
			info.DeviceID = decoded
		}
	}
	if cfg.EnableInput {
		selected, err := b.resolveDevice(mctx, DirectionCapture, cfg.InputDevice)
		if err != nil {
			b.releaseLocked()
			return engine.StreamInfo{}, err
		}
		deviceConfig.Capture.Format = malgo.FormatF32
		deviceConfig.Capture.Channels = uint32(cfg.Channels)
		deviceConfig.Capture.DeviceID = selected.ID.Pointer()
		if info.DeviceName == "" {
			info.DeviceName = selected.Name()
			if decoded, derr := hexToASCII(selected.ID.String()); derr == nil {
				info.DeviceID = decoded
			}
		}
	}

	b.handler = handler
	b.cfg = cfg
	b.renderStage = make([]float32, cfg.BufferFrames*cfg.Channels*2)
	b.captureStage = make([]float32, cfg.BufferFrames*cfg.Channels*2)

	callbacks := malgo.DeviceCallbacks{
		Data: b.onData,
		Stop: b.onStop,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		b.releaseLocked()
		return engine.StreamInfo{}, errors.New(err).
			Component(Component).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_device").
			Context("device", info.DeviceName).
			Build()
	}
	b.device = device

	info.DeviceSampleRate = int(device.SampleRate())
	if info.DeviceSampleRate == 0 {
		info.DeviceSampleRate = cfg.DeviceSampleRate
	}

	b.logger.Info("device opened",
		"device", info.DeviceName,
		"device_id", info.DeviceID,
		"sample_rate", info.DeviceSampleRate,
		"channels", cfg.Channels,
		"period_frames", cfg.BufferFrames,
		"duplex", deviceType == malgo.Duplex)
	return info, nil
}

func (b *Backend) resolveDevice(mctx *malgo.AllocatedContext, dir Direction, query string) (*malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(dir.deviceType())
	if err != nil {
		return nil, errors.New(err).
			Component(Component).
			Category(errors.CategoryAudio).
			Context("operation", "enumerate_devices").
			Context("direction", dir.String()).
			Build()
	}
	return selectDevice(infos, query)
}

// Start arms the native stream.
func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return errors.Newf("backend not open").
			Component(Component).
			Category(errors.CategoryState).
			Build()
	}
	b.stopping = false

	if err := b.device.Start(); err != nil {
		return errors.New(err).
			Component(Component).
			Category(errors.CategoryAudioDevice).
			Context("operation", "start_device").
			Build()
	}
	return nil
}

// Stop halts the native stream. The stop is marked as requested so the
// device stop callback does not treat it as a failure.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return nil
	}
	b.stopping = true

	if err := b.device.Stop(); err != nil {
		return errors.New(err).
			Component(Component).
			Category(errors.CategoryAudioDevice).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}

// Close tears down the device and releases the shared context reference.
// Safe to call repeatedly.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
	return nil
}

// releaseLocked uninitializes the device and drops all per-open state.
// Caller holds b.mu.
func (b *Backend) releaseLocked() {
	b.stopping = true
	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	if b.ctxHeld {
		releaseContext()
		b.ctxHeld = false
	}
	b.handler = nil
	b.renderStage = nil
	b.captureStage = nil
}

// onData runs on the native audio thread. It bridges the byte buffers
// miniaudio delivers to the handler's float32 contract. No locks, no
// logging, no allocation on the steady path.
func (b *Backend) onData(pOutput, pInput []byte, frameCount uint32) {
	handler := b.handler
	if handler == nil {
		return
	}
	samples := int(frameCount) * b.cfg.Channels

	if len(pOutput) > 0 {
		stage := b.renderStage
		if samples > len(stage) {
			stage = make([]float32, samples)
			b.renderStage = stage
		}
		stage = stage[:samples]
		handler.Render(stage)
		floatsToBytes(stage, pOutput)
	}

	if len(pInput) > 0 {
		stage := b.captureStage
		if samples > len(stage) {
			stage = make([]float32, samples)
			b.captureStage = stage
		}
		stage = stage[:samples]
		bytesToFloats(pInput, stage)
		handler.Capture(stage)
	}
}

// onStop fires on every device stop, requested or not. For unrequested
// stops it tries one restart off the callback thread and reports the
// loss to the handler if that fails.
func (b *Backend) onStop() {
	b.mu.Lock()
	stopping := b.stopping
	handler := b.handler
	b.mu.Unlock()
	if stopping || handler == nil {
		return
	}

	go func() {
		time.Sleep(restartDelay)

		b.mu.Lock()
		device := b.device
		requested := b.stopping
		b.mu.Unlock()
		if requested || device == nil {
			return
		}

		if err := device.Start(); err != nil {
			b.logger.Error("device restart failed", "error", err)
			handler.DeviceStopped(errors.New(err).
				Component(Component).
				Category(errors.CategoryAudioDevice).
				Context("operation", "restart_device").
				Build())
			return
		}
		b.logger.Warn("device stopped unexpectedly, restarted")
	}()
}
