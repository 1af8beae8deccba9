package engine

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pcmflow/pcmflow/internal/errors"
	"github.com/pcmflow/pcmflow/internal/logging"
	"github.com/pcmflow/pcmflow/internal/resample"
	"github.com/pcmflow/pcmflow/internal/ringbuf"
)

// State is the engine lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateIdle
	StateActive
	StateError
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateDisposed:
		return "disposed"
	default:
		return "invalid"
	}
}

// Send backoff escalation. A full output ring is usually drained within
// one hardware period, so the cheap spin tier covers the common case.
const (
	sendSpinLimit     = 128
	sendYieldLimit    = 128
	sendSleepInterval = 500 * time.Microsecond
)

// Stats is a snapshot of the engine's transport counters.
type Stats struct {
	State            State
	Underruns        uint64
	Overruns         uint64
	SlowSends        uint64
	SendBlockedNanos uint64
	FramesRendered   uint64
	FramesCaptured   uint64
}

// Engine moves interleaved float32 PCM between the application and a
// platform audio backend. Send must be called from a single goroutine,
// and likewise Receive; the two may be different goroutines. All
// lifecycle methods are safe for concurrent use.
type Engine struct {
	id      string
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex // guards lifecycle transitions and resource swaps
	state atomic.Int32
	cfg   Config
	info  StreamInfo

	// running is the sole cancellation signal shared between the
	// blocking Send loop and the real-time callbacks.
	running atomic.Bool
	opened  bool

	// gen counts resource acquisitions. A blocked Send compares it
	// against the value it captured so a Stop/Start cycle that swapped
	// the rings underneath cannot leave the Send spinning on a buffer
	// nothing drains.
	gen atomic.Uint64

	// faultCause records why the engine entered the error state.
	// Guarded by mu.
	faultCause error

	outRing *ringbuf.RingBuffer[float32]
	inRing  *ringbuf.RingBuffer[float32]

	sendRes *resample.Resampler // app rate -> device rate
	recvRes *resample.Resampler // device rate -> app rate
	pool    *BufferPool

	// Staging buffers, allocated at acquisition time. sendScratch is
	// touched only by the Send goroutine, recvScratch only by the
	// Receive goroutine.
	sendScratch []float32
	recvScratch []float32

	underruns        atomic.Uint64
	overruns         atomic.Uint64
	slowSends        atomic.Uint64
	sendBlockedNanos atomic.Uint64
	framesRendered   atomic.Uint64
	framesCaptured   atomic.Uint64

	deviceHandler atomic.Value // holds DeviceStateHandler
}

// New creates an engine bound to the given platform backend. The engine
// starts in the uninitialized state.
func New(backend Backend) *Engine {
	e := &Engine{
		id:      uuid.NewString(),
		backend: backend,
	}
	e.logger = logging.ForService("engine")
	if e.logger == nil {
		e.logger = slog.Default().With("service", "engine")
	}
	e.logger = e.logger.With("engine_id", e.id)
	return e
}

// ID returns the unique identifier of this engine instance.
func (e *Engine) ID() string {
	return e.id
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Config returns the config bound by the last successful Initialize.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// StreamInfo returns what the platform granted at acquisition time.
func (e *Engine) StreamInfo() StreamInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

// SetDeviceStateHandler registers the handler invoked on device
// availability changes. Events fire from a non-real-time goroutine.
func (e *Engine) SetDeviceStateHandler(h DeviceStateHandler) {
	e.deviceHandler.Store(h)
}

// Initialize validates cfg and acquires all transport resources. On
// failure no partial state is left behind and the engine reverts to the
// uninitialized state, so a re-initialize from idle that fails must be
// initialized again before use. Valid from the uninitialized, idle and
// error states.
func (e *Engine) Initialize(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case StateDisposed:
		return errors.New(ErrDisposed).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "initialize").
			Build()
	case StateActive:
		return errors.New(ErrAlreadyRunning).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "initialize").
			Context("hint", "stop before reinitializing").
			Build()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Normalize()

	// A re-initialize from idle/error starts from a clean slate.
	e.releaseLocked()

	e.cfg = cfg
	if err := e.acquireLocked(); err != nil {
		e.state.Store(int32(StateUninitialized))
		return err
	}

	e.state.Store(int32(StateIdle))
	e.logger.Info("engine initialized",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_frames", cfg.BufferFrames,
		"device_sample_rate", e.info.DeviceSampleRate,
		"output", cfg.EnableOutput,
		"input", cfg.EnableInput,
		"device", e.info.DeviceName)
	return nil
}

// acquireLocked creates ring buffers, resamplers and the receive pool
// from e.cfg and opens the backend. Caller holds e.mu.
func (e *Engine) acquireLocked() error {
	cfg := e.cfg

	var err error
	if cfg.EnableOutput {
		e.outRing, err = ringbuf.New[float32](cfg.ringCapacity())
		if err != nil {
			return err
		}
	}
	if cfg.EnableInput {
		e.inRing, err = ringbuf.New[float32](cfg.ringCapacity())
		if err != nil {
			e.outRing = nil
			return err
		}
	}

	info, err := e.backend.Open(cfg, e)
	if err != nil {
		e.outRing = nil
		e.inRing = nil
		return errors.New(errors.Join(ErrResourceUnavailable, err)).
			Component(Component).
			Category(errors.CategoryResource).
			Context("operation", "open_backend").
			Context("output_device", cfg.OutputDevice).
			Context("input_device", cfg.InputDevice).
			Build()
	}
	e.info = info

	// Rate bridging between the application and whatever rate the
	// device actually granted.
	devRate := info.DeviceSampleRate
	if devRate == 0 {
		devRate = cfg.DeviceSampleRate
	}
	if devRate != cfg.SampleRate {
		if cfg.EnableOutput {
			e.sendRes, err = resample.New(cfg.SampleRate, devRate, cfg.Channels)
			if err != nil {
				e.releaseLocked()
				return err
			}
		}
		if cfg.EnableInput {
			e.recvRes, err = resample.New(devRate, cfg.SampleRate, cfg.Channels)
			if err != nil {
				e.releaseLocked()
				return err
			}
		}
	}

	if cfg.EnableInput {
		slotSize := cfg.periodSamples() * 2
		if e.recvRes != nil {
			slotSize = e.recvRes.CalculateOutputSize(slotSize)
		}
		e.pool, err = NewBufferPool(slotSize, DefaultPoolSlots)
		if err != nil {
			e.releaseLocked()
			return err
		}
		e.recvScratch = make([]float32, cfg.periodSamples()*2)
	}
	if cfg.EnableOutput && e.sendRes != nil {
		e.sendScratch = make([]float32, e.sendRes.CalculateOutputSize(cfg.periodSamples())+cfg.Channels)
	}

	e.gen.Add(1)
	e.opened = true
	return nil
}

// releaseLocked closes the backend and discards all transport
// resources. They are recreated, never reused, on the next acquisition.
// Caller holds e.mu.
func (e *Engine) releaseLocked() {
	if e.opened {
		if err := e.backend.Close(); err != nil {
			e.logger.Warn("backend close failed", "error", err)
		}
	}
	e.opened = false
	e.faultCause = nil
	e.outRing = nil
	e.inRing = nil
	e.sendRes = nil
	e.recvRes = nil
	e.pool = nil
	e.sendScratch = nil
	e.recvScratch = nil
}

// Start arms the native callback and transitions to the active state.
// Calling Start on an already active engine is a no-op returning nil.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case StateActive:
		return nil
	case StateUninitialized:
		return errors.New(ErrNotInitialized).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "start").
			Build()
	case StateDisposed:
		return errors.New(ErrDisposed).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "start").
			Build()
	case StateError:
		return errors.New(e.faultLocked()).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "start").
			Build()
	}

	// A stop/start cycle gets fresh buffers, never the previous ones.
	if !e.opened {
		if err := e.acquireLocked(); err != nil {
			return err
		}
	}

	if e.outRing != nil {
		e.outRing.Clear()
		// Pre-fill one hardware period of silence so the very first
		// callback does not count as an underrun burst.
		e.outRing.Write(make([]float32, e.cfg.periodSamples()))
	}
	if e.inRing != nil {
		e.inRing.Clear()
	}
	if e.sendRes != nil {
		e.sendRes.Reset()
	}
	if e.recvRes != nil {
		e.recvRes.Reset()
	}

	e.running.Store(true)
	if err := e.backend.Start(); err != nil {
		e.running.Store(false)
		return errors.New(errors.Join(ErrResourceUnavailable, err)).
			Component(Component).
			Category(errors.CategoryResource).
			Context("operation", "start_backend").
			Build()
	}

	e.state.Store(int32(StateActive))
	e.logger.Info("engine started")
	e.notifyDeviceState(DeviceStateStarted)
	return nil
}

// Stop halts the stream and releases all transport resources. Idempotent:
// stopping an idle engine returns nil without side effects. Valid from
// the error state as the first half of the Stop+Initialize recovery
// path.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case StateIdle, StateUninitialized:
		return nil
	case StateDisposed:
		return nil
	}

	// Clearing the running flag first unblocks any Send loop and makes
	// further callbacks output silence while the stream winds down.
	e.running.Store(false)

	var stopErr error
	if e.opened {
		stopErr = e.backend.Stop()
		if stopErr != nil {
			e.logger.Warn("backend stop reported error", "error", stopErr)
		}
	}
	e.releaseLocked()

	e.state.Store(int32(StateIdle))
	e.logger.Info("engine stopped",
		"underruns", e.underruns.Load(),
		"overruns", e.overruns.Load())
	e.notifyDeviceState(DeviceStateStopped)

	if stopErr != nil {
		return errors.New(errors.Join(ErrTimeout, stopErr)).
			Component(Component).
			Category(errors.CategoryTimeout).
			Context("operation", "stop_backend").
			Build()
	}
	return nil
}

// Close disposes the engine. Valid from any state, idempotent, and
// always safe to call twice.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateDisposed {
		return nil
	}

	e.running.Store(false)
	if e.opened && e.State() == StateActive {
		if err := e.backend.Stop(); err != nil {
			e.logger.Warn("backend stop failed during dispose", "error", err)
		}
	}
	e.releaseLocked()
	e.state.Store(int32(StateDisposed))
	e.logger.Info("engine disposed")
	return nil
}

// Send writes application samples (at the configured application rate)
// into the output ring buffer. It blocks until every sample is written
// or the engine stops, escalating from spinning through yielding to
// sleeping while the ring is full. It never silently drops samples;
// an interrupting Stop surfaces as ErrStopped.
func (e *Engine) Send(samples []float32) error {
	ring, res, gen, err := e.sendTransport()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	if res == nil {
		return e.writeAll(ring, samples, gen)
	}

	// Resample in period-sized chunks on the application thread so the
	// ring carries device-rate samples and the callback never touches
	// the resampler.
	chunk := e.cfg.periodSamples()
	for off := 0; off < len(samples); off += chunk {
		end := min(off+chunk, len(samples))
		n, rerr := res.Resample(samples[off:end], e.sendScratch)
		if rerr != nil {
			return rerr
		}
		if werr := e.writeAll(ring, e.sendScratch[:n], gen); werr != nil {
			return werr
		}
	}
	return nil
}

// sendTransport snapshots the output transport under the lifecycle
// lock, rejecting states in which Send is not legal.
func (e *Engine) sendTransport() (*ringbuf.RingBuffer[float32], *resample.Resampler, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transportError("send"); err != nil {
		return nil, nil, 0, err
	}
	if !e.cfg.EnableOutput {
		return nil, nil, 0, errors.New(ErrOutputDisabled).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "send").
			Build()
	}
	if e.outRing == nil {
		return nil, nil, 0, errors.New(ErrInternal).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "send").
			Context("detail", "active with no output ring").
			Build()
	}
	return e.outRing, e.sendRes, e.gen.Load(), nil
}

// faultLocked returns the error-state sentinel, joined with the
// recorded cause so callers can also match ErrDisconnected after a
// device loss. Caller holds e.mu.
func (e *Engine) faultLocked() error {
	if e.faultCause != nil {
		return errors.Join(ErrEngineFault, e.faultCause)
	}
	return ErrEngineFault
}

// transportError maps non-active states to the error Send and Receive return.
// Caller holds e.mu.
func (e *Engine) transportError(operation string) error {
	switch e.State() {
	case StateActive:
		return nil
	case StateUninitialized:
		return errors.New(ErrNotInitialized).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", operation).
			Build()
	case StateDisposed:
		return errors.New(ErrDisposed).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", operation).
			Build()
	case StateError:
		return errors.New(e.faultLocked()).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", operation).
			Build()
	default: // idle
		return errors.New(ErrStopped).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", operation).
			Build()
	}
}

// writeAll loops until p is fully written, the running flag clears, or
// a Stop/Start cycle replaces the transport the caller captured.
func (e *Engine) writeAll(ring *ringbuf.RingBuffer[float32], p []float32, gen uint64) error {
	spins := 0
	var blockedSince time.Time
	defer func() {
		if !blockedSince.IsZero() {
			e.sendBlockedNanos.Add(uint64(time.Since(blockedSince)))
		}
	}()
	for len(p) > 0 {
		if !e.running.Load() || e.gen.Load() != gen {
			return errors.New(ErrStopped).
				Component(Component).
				Category(errors.CategoryCancellation).
				Context("operation", "send").
				Context("unwritten_samples", len(p)).
				Build()
		}

		n := ring.Write(p)
		if n > 0 {
			p = p[n:]
			spins = 0
			continue
		}

		switch {
		case spins < sendSpinLimit:
			spins++
		case spins < sendSpinLimit+sendYieldLimit:
			spins++
			runtime.Gosched()
		default:
			if blockedSince.IsZero() {
				blockedSince = time.Now()
				e.slowSends.Add(1)
			}
			time.Sleep(sendSleepInterval)
		}
	}
	return nil
}

// Receive polls the input ring buffer and returns captured samples (at
// the application rate) in a pooled buffer, or an empty slice when
// nothing is buffered. The returned slice is only valid until the
// rotation hands it out again; callers must finish with it before the
// next few Receive calls. Receiving on an idle engine returns an empty
// result, not an error.
func (e *Engine) Receive() ([]float32, error) {
	e.mu.Lock()
	state := e.State()
	if state == StateIdle {
		e.mu.Unlock()
		return nil, nil
	}
	if err := e.transportError("receive"); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !e.cfg.EnableInput {
		e.mu.Unlock()
		return nil, errors.New(ErrInputDisabled).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "receive").
			Build()
	}
	ring, res, pool, scratch := e.inRing, e.recvRes, e.pool, e.recvScratch
	if ring == nil || pool == nil {
		e.mu.Unlock()
		return nil, errors.New(ErrInternal).
			Component(Component).
			Category(errors.CategoryState).
			Context("operation", "receive").
			Context("detail", "active with no input transport").
			Build()
	}
	e.mu.Unlock()

	if res == nil {
		buf := pool.Rent(pool.SlotSize())
		n := ring.Read(buf)
		return buf[:n], nil
	}

	// Read whole device-rate frames into scratch, then resample into
	// the pooled buffer.
	n := ring.Read(scratch)
	n -= n % e.cfg.Channels
	if n == 0 {
		return nil, nil
	}
	buf := pool.Rent(res.CalculateOutputSize(n))
	written, err := res.Resample(scratch[:n], buf)
	if err != nil {
		return nil, err
	}
	return buf[:written], nil
}

// PoolStats returns the receive pool counters. ok is false when no
// input direction is configured or the engine holds no resources.
func (e *Engine) PoolStats() (BufferPoolStats, bool) {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()
	if pool == nil {
		return BufferPoolStats{}, false
	}
	return pool.GetStats(), true
}

// Stats returns a snapshot of the transport counters.
func (e *Engine) Stats() Stats {
	return Stats{
		State:            e.State(),
		Underruns:        e.underruns.Load(),
		Overruns:         e.overruns.Load(),
		SlowSends:        e.slowSends.Load(),
		SendBlockedNanos: e.sendBlockedNanos.Load(),
		FramesRendered:   e.framesRendered.Load(),
		FramesCaptured:   e.framesCaptured.Load(),
	}
}

// Render implements StreamHandler. Real-time context: reads what the
// output ring has and substitutes silence for the remainder. An
// underrun bumps a counter; it is never an error.
func (e *Engine) Render(out []float32) {
	if !e.running.Load() {
		zeroFill(out)
		return
	}

	n := e.outRing.Read(out)
	if n < len(out) {
		zeroFill(out[n:])
		e.underruns.Add(1)
	}
	e.framesRendered.Add(uint64(len(out) / e.cfg.Channels))
}

// Capture implements StreamHandler. Real-time context: writes what fits
// into the input ring and drops the newest remainder when full, bumping
// the overflow counter. It never blocks the callback thread. Drops
// happen on frame boundaries so the interleaving never desyncs.
func (e *Engine) Capture(in []float32) {
	if !e.running.Load() {
		return
	}

	writable := e.inRing.Free()
	writable -= writable % e.cfg.Channels
	if writable > len(in) {
		writable = len(in)
	}

	e.inRing.Write(in[:writable])
	if writable < len(in) {
		e.overruns.Add(1)
	}
	e.framesCaptured.Add(uint64(len(in) / e.cfg.Channels))
}

// DeviceStopped implements StreamHandler. Fired by the backend from a
// non-real-time context when the stream stops without a Stop request;
// a stop the engine asked for is ignored here.
func (e *Engine) DeviceStopped(err error) {
	if !e.running.Load() {
		return
	}
	go e.handleDeviceLoss(err)
}

// handleDeviceLoss transitions to the error state and notifies the
// device state handler. Recovery is the caller's responsibility via
// Stop + Initialize; attempting it from the callback path would violate
// the real-time contract.
func (e *Engine) handleDeviceLoss(cause error) {
	e.mu.Lock()
	if e.State() != StateActive {
		e.mu.Unlock()
		return
	}
	e.running.Store(false)
	e.faultCause = errors.Join(ErrDisconnected, cause)
	e.state.Store(int32(StateError))
	e.mu.Unlock()

	e.logger.Error("audio device lost", "device", e.info.DeviceName, "cause", cause)
	e.notifyDeviceState(DeviceStateLost)
}

// notifyDeviceState fires the registered handler, if any, on a separate
// goroutine so a slow handler cannot stall a lifecycle transition.
func (e *Engine) notifyDeviceState(state DeviceState) {
	h, _ := e.deviceHandler.Load().(DeviceStateHandler)
	if h == nil {
		return
	}
	deviceID := e.info.DeviceID
	go h(deviceID, state)
}

func zeroFill(p []float32) {
	for i := range p {
		p[i] = 0
	}
}
