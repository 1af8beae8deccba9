package engine

// StreamInfo reports what the platform actually granted after Open. The
// device rate may differ from the requested rate; the engine bridges
// the difference with resamplers.
type StreamInfo struct {
	DeviceID         string
	DeviceName       string
	DeviceSampleRate int
	BufferFrames     int
}

// StreamHandler is implemented by the engine and invoked by the
// platform backend. Render and Capture run on the platform's real-time
// callback thread once per hardware period: they must not lock, must
// not allocate, must not block, and must complete in bounded time.
// DeviceStopped is called from a non-real-time context when the stream
// dies outside a requested Stop.
type StreamHandler interface {
	// Render fills out with interleaved samples at the device rate.
	// Shortfall is the handler's problem (silence substitution), never
	// the backend's.
	Render(out []float32)

	// Capture consumes interleaved input samples at the device rate.
	// The slice is only valid for the duration of the call.
	Capture(in []float32)

	// DeviceStopped reports an unrequested stream stop. err describes
	// the cause when known; nil means the platform gave no reason.
	DeviceStopped(err error)
}

// Backend is the platform callback adapter boundary. Implementations
// own all native-API binding and must keep their callback trampolines
// alive for the whole open-close window. All methods are called from
// ordinary goroutines and must be bounded-time; Stop and Close must be
// idempotent.
type Backend interface {
	// Open acquires native resources for the configured directions and
	// registers handler's callbacks. It must fully roll back partial
	// acquisition on failure.
	Open(cfg Config, handler StreamHandler) (StreamInfo, error)

	// Start arms the native stream; the platform begins invoking the
	// handler once per hardware period.
	Start() error

	// Stop halts callback delivery and waits (bounded) for the native
	// stream to reach a stopped state.
	Stop() error

	// Close releases all native resources.
	Close() error
}

// DeviceState describes a device availability transition reported
// through the DeviceStateChanged event.
type DeviceState int

const (
	DeviceStateUnknown DeviceState = iota
	DeviceStateStarted
	DeviceStateStopped
	DeviceStateLost
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStateStarted:
		return "started"
	case DeviceStateStopped:
		return "stopped"
	case DeviceStateLost:
		return "lost"
	default:
		return "unknown"
	}
}

// DeviceStateHandler receives device availability events on a
// non-real-time goroutine.
type DeviceStateHandler func(deviceID string, state DeviceState)

// Processor transforms an interleaved sample buffer in place. Effect
// implementations (gain, EQ, compressors) satisfy this; the engine core
// never composes or invokes processors itself, it only moves buffers.
type Processor interface {
	// Process mutates buf in place. frameCount is len(buf)/channels.
	Process(buf []float32, frameCount int)

	// Initialize binds the processor to a stream configuration.
	Initialize(cfg Config) error

	// Reset clears internal state after a seek or flush.
	Reset()

	// Enabled reports whether Process should be applied.
	Enabled() bool
}

// DecodedFrame is one timestamped block of samples produced by a
// Decoder.
type DecodedFrame struct {
	Samples    []float32
	PTSSeconds float64
}

// Decoder is an external producer feeding Send. The engine treats
// decoded frames purely as sample payloads; container parsing and
// seeking live entirely behind this boundary.
type Decoder interface {
	// DecodeNextFrame returns the next frame, io.EOF at end of stream,
	// or a decode error.
	DecodeNextFrame() (DecodedFrame, error)

	// Seek moves the decode position to the given offset in seconds
	// and reports whether the seek succeeded.
	Seek(seconds float64) bool
}
