package engine

import (
	"github.com/pcmflow/pcmflow/internal/errors"
)

// Component identifier for engine errors
const Component = "engine"

// Sentinel errors forming the engine's result taxonomy. Callers match
// them with errors.Is; the engine wraps them with component, category
// and call-site context before returning.
var (
	// ErrInvalidConfiguration is returned by Initialize when the config
	// fails validation. No resource has been acquired.
	ErrInvalidConfiguration = errors.NewStd("invalid configuration")

	// ErrAlreadyRunning is returned by operations that need a stopped
	// engine, such as Initialize, while the stream is active. Start
	// itself is idempotent and returns nil on an active engine.
	ErrAlreadyRunning = errors.NewStd("engine already running")

	// ErrNotInitialized is returned when an operation requires a bound
	// config and there is none.
	ErrNotInitialized = errors.NewStd("engine not initialized")

	// ErrResourceUnavailable is returned when a native device or stream
	// cannot be acquired.
	ErrResourceUnavailable = errors.NewStd("audio resource unavailable")

	// ErrDisconnected is returned after the device vanished while the
	// engine was active.
	ErrDisconnected = errors.NewStd("audio device disconnected")

	// ErrTimeout is returned when a native stream fails to reach the
	// expected state within its bound.
	ErrTimeout = errors.NewStd("audio stream state change timed out")

	// ErrStopped is returned from a blocking Send that was interrupted
	// by Stop before all samples were written.
	ErrStopped = errors.NewStd("engine stopped")

	// ErrDisposed is returned for operations on a disposed engine.
	ErrDisposed = errors.NewStd("engine disposed")

	// ErrEngineFault is returned while the engine sits in the Error
	// state after a fatal native failure. When the failure was a device
	// loss the returned error also matches ErrDisconnected.
	ErrEngineFault = errors.NewStd("engine in error state")

	// ErrInternal is returned when an engine invariant does not hold,
	// such as an active state with no transport resources behind it.
	ErrInternal = errors.NewStd("internal engine fault")

	// ErrOutputDisabled and ErrInputDisabled guard Send/Receive against
	// directions the config did not enable.
	ErrOutputDisabled = errors.NewStd("output direction not enabled")
	ErrInputDisabled  = errors.NewStd("input direction not enabled")
)
